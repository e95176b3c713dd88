package main

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prn-tf/deltaglider/internal/config"
	"github.com/prn-tf/deltaglider/internal/engine"
	"github.com/prn-tf/deltaglider/internal/store"
)

func TestParseS3URL(t *testing.T) {
	u, err := parseS3URL("s3://releases/stable/v1.zip")
	require.NoError(t, err)
	assert.Equal(t, "releases", u.Bucket)
	assert.Equal(t, "stable/v1.zip", u.Key)
	assert.False(t, u.isPrefix())
}

func TestParseS3URL_Prefix(t *testing.T) {
	u, err := parseS3URL("s3://releases/stable/")
	require.NoError(t, err)
	assert.True(t, u.isPrefix())
	assert.Equal(t, "stable/v1.zip", u.join("v1.zip"))

	bucketOnly, err := parseS3URL("s3://releases")
	require.NoError(t, err)
	assert.True(t, bucketOnly.isPrefix())
	assert.Equal(t, "v1.zip", bucketOnly.join("v1.zip"))
}

func TestParseS3URL_Invalid(t *testing.T) {
	_, err := parseS3URL("http://releases/x")
	var usage *usageError
	assert.True(t, errors.As(err, &usage))

	_, err = parseS3URL("s3://")
	assert.Error(t, err)
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, exitUsage, exitCode(usagef("bad args")))
	assert.Equal(t, exitConfig, exitCode(config.ErrInvalid))
	assert.Equal(t, exitNotFound, exitCode(engine.ErrObjectNotFound))
	assert.Equal(t, exitNotFound, exitCode(store.ErrNotFound))
	assert.Equal(t, exitIntegrity, exitCode(engine.ErrIntegrityFailure))
	assert.Equal(t, exitIntegrity, exitCode(engine.ErrReferenceCorrupt))
	assert.Equal(t, exitStore, exitCode(engine.ErrStorageInconsistency))
	assert.Equal(t, exitStore, exitCode(store.ErrTransient))
	assert.Equal(t, exitOther, exitCode(errors.New("boom")))
}
