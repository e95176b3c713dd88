package main

import (
	"context"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/prn-tf/deltaglider/internal/cache"
	"github.com/prn-tf/deltaglider/internal/codec"
	"github.com/prn-tf/deltaglider/internal/config"
	"github.com/prn-tf/deltaglider/internal/engine"
	"github.com/prn-tf/deltaglider/internal/store"
	"github.com/prn-tf/deltaglider/internal/store/s3"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "deltaglider",
		Short:         "Delta-compressed artifact storage on S3-compatible buckets",
		Long:          "DeltaGlider stores collections of near-identical versioned artifacts\nas one full reference per group plus binary deltas, behind ordinary\nobject PUT/GET semantics.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return usagef("%v", err)
	})

	root.AddCommand(
		newPutCmd(),
		newGetCmd(),
		newLsCmd(),
		newRmCmd(),
		newStatsCmd(),
		newAnalyzeCmd(),
		newCpCmd(),
	)
	return root
}

// app bundles the wired runtime of one CLI invocation.
type app struct {
	cfg    *config.Config
	logger zerolog.Logger
	store  store.BucketService
	engine *engine.Engine
}

// newApp loads configuration and wires store, cache, codec and engine.
func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	level, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil {
		level = zerolog.InfoLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).
		With().Timestamp().Logger()

	svc, err := s3.NewStore(ctx, s3.Config{
		Endpoint:        cfg.Endpoint,
		Region:          cfg.Region,
		AccessKeyID:     cfg.AccessKeyID,
		SecretAccessKey: cfg.SecretAccessKey,
	}, logger)
	if err != nil {
		return nil, err
	}

	var refCache cache.RefCache
	switch cfg.CacheBackend {
	case config.BackendMemory:
		refCache = cache.NewMemory(cache.MemConfig{
			QuotaBytes: int64(cfg.CacheMemorySizeMB) << 20,
		}, logger)
	default:
		refCache, err = cache.NewFS(cache.FSConfig{
			Dir:              cfg.CacheDir,
			QuotaBytes:       int64(cfg.CacheSizeMB) << 20,
			EncryptionSecret: cfg.CacheEncryptionKey,
		}, logger)
		if err != nil {
			return nil, err
		}
	}

	eng := engine.New(svc, refCache, codec.NewBsdiff(), engine.Options{
		MaxRatio: cfg.MaxRatio,
	}, logger)

	return &app{cfg: cfg, logger: logger, store: svc, engine: eng}, nil
}
