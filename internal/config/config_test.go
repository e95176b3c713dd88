package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "INFO", cfg.LogLevel)
	assert.InDelta(t, 0.5, cfg.MaxRatio, 1e-9)
	assert.Equal(t, BackendFilesystem, cfg.CacheBackend)
	assert.Equal(t, 2048, cfg.CacheSizeMB)
	assert.Equal(t, 100, cfg.CacheMemorySizeMB)
	assert.NotEmpty(t, cfg.CacheDir)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("DG_MAX_RATIO", "0.8")
	t.Setenv("DG_CACHE_BACKEND", "memory")
	t.Setenv("DG_CACHE_MEMORY_SIZE_MB", "250")
	t.Setenv("DG_LOG_LEVEL", "debug")
	t.Setenv("AWS_ENDPOINT_URL", "http://localhost:9000")
	t.Setenv("AWS_DEFAULT_REGION", "eu-west-1")

	cfg, err := Load()
	require.NoError(t, err)

	assert.InDelta(t, 0.8, cfg.MaxRatio, 1e-9)
	assert.Equal(t, BackendMemory, cfg.CacheBackend)
	assert.Equal(t, 250, cfg.CacheMemorySizeMB)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "http://localhost:9000", cfg.Endpoint)
	assert.Equal(t, "eu-west-1", cfg.Region)
}

func TestLoad_InvalidRatio(t *testing.T) {
	t.Setenv("DG_MAX_RATIO", "1.5")

	_, err := Load()
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestLoad_UnknownBackend(t *testing.T) {
	t.Setenv("DG_CACHE_BACKEND", "redis")

	_, err := Load()
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestValidate_RatioBounds(t *testing.T) {
	cfg := &Config{MaxRatio: 1.0, CacheBackend: BackendMemory, CacheSizeMB: 1, CacheMemorySizeMB: 1}
	assert.NoError(t, cfg.Validate())

	cfg.MaxRatio = 0
	assert.ErrorIs(t, cfg.Validate(), ErrInvalid)
}
