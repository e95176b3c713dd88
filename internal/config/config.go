// Package config loads DeltaGlider configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// ErrInvalid indicates unusable configuration. Fatal at startup.
var ErrInvalid = errors.New("invalid configuration")

// Cache backend names accepted by DG_CACHE_BACKEND.
const (
	BackendFilesystem = "filesystem"
	BackendMemory     = "memory"
)

// Config is the resolved process configuration.
type Config struct {
	// LogLevel is the zerolog verbosity floor (DG_LOG_LEVEL).
	LogLevel string

	// MaxRatio is the delta/original cutoff; deltas larger than
	// MaxRatio x original are downgraded to direct storage (DG_MAX_RATIO).
	MaxRatio float64

	// CacheBackend selects the reference cache backend (DG_CACHE_BACKEND).
	CacheBackend string

	// CacheDir is the filesystem cache directory (DG_CACHE_DIR).
	CacheDir string

	// CacheSizeMB bounds the filesystem cache (DG_CACHE_SIZE_MB).
	CacheSizeMB int

	// CacheMemorySizeMB bounds the memory cache (DG_CACHE_MEMORY_SIZE_MB).
	CacheMemorySizeMB int

	// CacheEncryptionKey enables at-rest cache encryption when set
	// (DG_CACHE_ENCRYPTION_KEY). Never persisted.
	CacheEncryptionKey string

	// Endpoint overrides the S3 endpoint (AWS_ENDPOINT_URL).
	Endpoint string

	// Region is the S3 region (AWS_DEFAULT_REGION).
	Region string

	// AccessKeyID / SecretAccessKey override the SDK credential chain
	// when both are set (AWS_ACCESS_KEY_ID / AWS_SECRET_ACCESS_KEY).
	AccessKeyID     string
	SecretAccessKey string
}

// Load reads configuration from the environment with spec defaults.
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("log_level", "INFO")
	v.SetDefault("max_ratio", 0.5)
	v.SetDefault("cache_backend", BackendFilesystem)
	v.SetDefault("cache_size_mb", 2048)
	v.SetDefault("cache_memory_size_mb", 100)

	for key, env := range map[string]string{
		"log_level":            "DG_LOG_LEVEL",
		"max_ratio":            "DG_MAX_RATIO",
		"cache_backend":        "DG_CACHE_BACKEND",
		"cache_dir":            "DG_CACHE_DIR",
		"cache_size_mb":        "DG_CACHE_SIZE_MB",
		"cache_memory_size_mb": "DG_CACHE_MEMORY_SIZE_MB",
		"cache_encryption_key": "DG_CACHE_ENCRYPTION_KEY",
		"endpoint":             "AWS_ENDPOINT_URL",
		"region":               "AWS_DEFAULT_REGION",
		"access_key_id":        "AWS_ACCESS_KEY_ID",
		"secret_access_key":    "AWS_SECRET_ACCESS_KEY",
	} {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
		}
	}

	cfg := &Config{
		LogLevel:           v.GetString("log_level"),
		MaxRatio:           v.GetFloat64("max_ratio"),
		CacheBackend:       strings.ToLower(v.GetString("cache_backend")),
		CacheDir:           v.GetString("cache_dir"),
		CacheSizeMB:        v.GetInt("cache_size_mb"),
		CacheMemorySizeMB:  v.GetInt("cache_memory_size_mb"),
		CacheEncryptionKey: v.GetString("cache_encryption_key"),
		Endpoint:           v.GetString("endpoint"),
		Region:             v.GetString("region"),
		AccessKeyID:        v.GetString("access_key_id"),
		SecretAccessKey:    v.GetString("secret_access_key"),
	}

	if cfg.CacheDir == "" {
		base, err := os.UserCacheDir()
		if err != nil {
			return nil, fmt.Errorf("%w: no usable cache directory: %v", ErrInvalid, err)
		}
		cfg.CacheDir = filepath.Join(base, "deltaglider")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if c.MaxRatio <= 0 || c.MaxRatio > 1 {
		return fmt.Errorf("%w: max_ratio must be in (0, 1], got %g", ErrInvalid, c.MaxRatio)
	}
	if c.CacheBackend != BackendFilesystem && c.CacheBackend != BackendMemory {
		return fmt.Errorf("%w: unknown cache backend %q", ErrInvalid, c.CacheBackend)
	}
	if c.CacheSizeMB <= 0 {
		return fmt.Errorf("%w: cache_size_mb must be positive, got %d", ErrInvalid, c.CacheSizeMB)
	}
	if c.CacheMemorySizeMB <= 0 {
		return fmt.Errorf("%w: cache_memory_size_mb must be positive, got %d", ErrInvalid, c.CacheMemorySizeMB)
	}
	return nil
}
