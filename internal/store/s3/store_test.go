package s3

import (
	"context"
	"fmt"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"

	"github.com/prn-tf/deltaglider/internal/store"
)

func TestClassify_NotFound(t *testing.T) {
	assert.ErrorIs(t, classify(&types.NoSuchKey{}), store.ErrNotFound)
	assert.ErrorIs(t, classify(&types.NotFound{}), store.ErrNotFound)
	assert.ErrorIs(t, classify(&smithy.GenericAPIError{Code: "NoSuchKey"}), store.ErrNotFound)
	assert.ErrorIs(t, classify(&smithy.GenericAPIError{Code: "NoSuchBucket"}), store.ErrNotFound)
}

func TestClassify_Precondition(t *testing.T) {
	assert.ErrorIs(t, classify(&smithy.GenericAPIError{Code: "PreconditionFailed"}), store.ErrPreconditionFailed)
}

func TestClassify_Transient(t *testing.T) {
	for _, code := range []string{"SlowDown", "Throttling", "RequestTimeout", "InternalError", "ServiceUnavailable"} {
		assert.ErrorIs(t, classify(&smithy.GenericAPIError{Code: code}), store.ErrTransient, code)
	}
	assert.ErrorIs(t, classify(context.DeadlineExceeded), store.ErrTransient)
}

func TestClassify_Permanent(t *testing.T) {
	assert.ErrorIs(t, classify(&smithy.GenericAPIError{Code: "AccessDenied"}), store.ErrPermanent)
	assert.ErrorIs(t, classify(&smithy.GenericAPIError{Code: "InvalidRequest"}), store.ErrPermanent)
}

func TestClassify_Wrapped(t *testing.T) {
	err := fmt.Errorf("operation failed: %w", &types.NoSuchKey{})
	assert.ErrorIs(t, classify(err), store.ErrNotFound)
}

func TestCleanETag(t *testing.T) {
	etag := `"abc123"`
	assert.Equal(t, "abc123", cleanETag(&etag))
	assert.Equal(t, "", cleanETag(nil))
}

func TestLowerKeys(t *testing.T) {
	out := lowerKeys(map[string]string{"Dg-Kind": "delta", "dg-size": "5"})
	assert.Equal(t, "delta", out["dg-kind"])
	assert.Equal(t, "5", out["dg-size"])
	assert.Nil(t, lowerKeys(nil))
}

func TestConfigDefaults(t *testing.T) {
	cfg := (&Config{}).withDefaults()
	assert.Equal(t, defaultMetaTimeout, cfg.MetaTimeout)
	assert.Equal(t, defaultTransferTimeout, cfg.TransferTimeout)
	assert.Equal(t, defaultMaxAttempts, cfg.MaxAttempts)
}

func TestIsTransient(t *testing.T) {
	assert.True(t, isTransient(&smithy.GenericAPIError{Code: "SlowDown"}))
	assert.False(t, isTransient(&smithy.GenericAPIError{Code: "AccessDenied"}))
	assert.False(t, isTransient(&types.NoSuchKey{}))
}
