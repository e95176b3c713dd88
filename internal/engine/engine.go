// Package engine implements the DeltaGlider storage engine: the
// reference-and-delta object model behind a boto3-shaped object API.
// Uploads and downloads look like ordinary PUT/GET; grouping, delta
// encoding, integrity verification and reconstruction happen here.
package engine

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/prn-tf/deltaglider/internal/cache"
	"github.com/prn-tf/deltaglider/internal/codec"
	"github.com/prn-tf/deltaglider/internal/metrics"
	"github.com/prn-tf/deltaglider/internal/store"
)

// ToolVersion is written as dg-tool-version on every stored object.
const ToolVersion = "1.2.0"

// DefaultMaxRatio is the delta/original cutoff beyond which a delta
// candidate is downgraded to direct storage.
const DefaultMaxRatio = 0.5

// Options tunes the engine.
type Options struct {
	// MaxRatio overrides DefaultMaxRatio when positive. Equality is
	// accepted: a delta of exactly MaxRatio x original is kept.
	MaxRatio float64

	// Metrics receives engine instrumentation when non-nil.
	Metrics *metrics.Metrics
}

// Engine is the core orchestrator. It is stateless aside from the
// reference cache and configuration; operations may run concurrently
// from multiple goroutines.
type Engine struct {
	store    store.BucketService
	cache    cache.RefCache
	codec    codec.Codec
	maxRatio float64
	metrics  *metrics.Metrics
	logger   zerolog.Logger
}

// New creates a storage engine over the given bucket service, reference
// cache and delta codec.
func New(svc store.BucketService, refCache cache.RefCache, cdc codec.Codec, opts Options, logger zerolog.Logger) *Engine {
	maxRatio := opts.MaxRatio
	if maxRatio <= 0 {
		maxRatio = DefaultMaxRatio
	}
	return &Engine{
		store:    svc,
		cache:    refCache,
		codec:    cdc,
		maxRatio: maxRatio,
		metrics:  opts.Metrics,
		logger:   logger.With().Str("component", "engine").Logger(),
	}
}

// opLogger tags log entries of one operation with a correlation id.
func (e *Engine) opLogger(op, bucket, key string) zerolog.Logger {
	return e.logger.With().
		Str("op", op).
		Str("op_id", uuid.NewString()).
		Str("bucket", bucket).
		Str("key", key).
		Logger()
}

// observe records operation metrics.
func (e *Engine) observe(op string, start time.Time, err error) {
	if e.metrics == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	e.metrics.OperationsTotal.WithLabelValues(op, status).Inc()
	e.metrics.OperationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	if err != nil && (errors.Is(err, ErrIntegrityFailure) || errors.Is(err, ErrReferenceCorrupt)) {
		e.metrics.IntegrityFailures.Inc()
	}
}

// headMeta HEADs a key and decodes its dg- metadata. A missing key
// returns (nil, zero, nil) so callers can branch without error plumbing.
func (e *Engine) headMeta(ctx context.Context, bucket, key string) (*store.ObjectInfo, ObjectMeta, error) {
	info, err := e.store.Head(ctx, bucket, key)
	if err != nil {
		if store.IsNotFound(err) {
			return nil, ObjectMeta{}, nil
		}
		return nil, ObjectMeta{}, err
	}
	return info, decodeMeta(info), nil
}

// fetchReference returns the decoded reference bytes through the cache.
func (e *Engine) fetchReference(ctx context.Context, bucket, refKey, refSHA string) ([]byte, error) {
	key := cache.Key{Bucket: bucket, RefKey: refKey, SHA256: refSHA}
	data, err := e.cache.Fetch(ctx, key, func(ctx context.Context) ([]byte, error) {
		body, _, err := e.store.Get(ctx, bucket, refKey)
		if err != nil {
			return nil, err
		}
		if e.metrics != nil {
			e.metrics.BytesDownloaded.Add(float64(len(body)))
		}
		return body, nil
	})
	if err != nil {
		if errors.Is(err, cache.ErrContentMismatch) {
			// The store copy itself is bad; the single re-download
			// already happened inside the cache.
			return nil, errors.Join(ErrIntegrityFailure, ErrReferenceCorrupt, err)
		}
		return nil, err
	}
	return data, nil
}

// CacheStats exposes reference cache effectiveness counters.
func (e *Engine) CacheStats() cache.Stats {
	return e.cache.Stats()
}

// ClearCache drops every local reference cache entry. Reconstruction
// correctness is unaffected; the next GET re-downloads.
func (e *Engine) ClearCache() error {
	return e.cache.Clear()
}
