// Package cache provides the process-local reference cache. Decoded
// reference blobs are cached keyed by (bucket, reference key, content
// hash); population is coalesced per key so concurrent readers share a
// single download.
package cache

import (
	"context"
	"errors"
	"fmt"

	"github.com/prn-tf/deltaglider/internal/hash"
)

// ErrContentMismatch indicates the reference body failed SHA-256
// verification after the automatic re-download.
var ErrContentMismatch = errors.New("reference content hash mismatch")

// Key identifies a cached reference blob. Entries are a pure function of
// the content hash; bucket and reference key only scope invalidation.
type Key struct {
	Bucket string
	RefKey string
	SHA256 string
}

// String renders the coalescing key for single-flight population.
func (k Key) String() string {
	return k.Bucket + "/" + k.RefKey + "@" + k.SHA256
}

// FetchFunc downloads the reference body from the store on a cache miss.
type FetchFunc func(ctx context.Context) ([]byte, error)

// Stats reports cache effectiveness counters.
type Stats struct {
	Hits      uint64
	Misses    uint64
	Evictions uint64
	Bytes     int64
}

// RefCache is the reference cache capability used by the engine.
type RefCache interface {
	// Fetch returns the reference bytes for key, populating the cache
	// through fetch on a miss. The returned bytes are verified against
	// key.SHA256; a cached entry that fails verification is evicted and
	// re-fetched once before ErrContentMismatch surfaces.
	Fetch(ctx context.Context, key Key, fetch FetchFunc) ([]byte, error)

	// Evict drops the entry for key if present.
	Evict(key Key)

	// Clear drops every entry.
	Clear() error

	// Stats returns a snapshot of the effectiveness counters.
	Stats() Stats
}

// fetchVerified downloads the reference and verifies it against the key,
// re-downloading once on mismatch. The second mismatch is the store's
// problem, not ours; it surfaces as ErrContentMismatch.
func fetchVerified(ctx context.Context, key Key, fetch FetchFunc) ([]byte, error) {
	var lastSum string
	for attempt := 0; attempt < 2; attempt++ {
		data, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		lastSum = hash.Bytes(data)
		if lastSum == key.SHA256 {
			return data, nil
		}
	}
	return nil, fmt.Errorf("%w: want %s, got %s", ErrContentMismatch, key.SHA256, lastSum)
}
