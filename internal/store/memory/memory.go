// Package memory provides an in-process store.BucketService used by tests
// and the analyzer's dry runs. Semantics mirror an S3-compatible service:
// lexically ordered listing, delimiter roll-up, idempotent delete, and
// first-writer-wins conditional create.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/prn-tf/deltaglider/internal/hash"
	"github.com/prn-tf/deltaglider/internal/store"
)

type object struct {
	body         []byte
	metadata     map[string]string
	etag         string
	lastModified time.Time
}

// Store is an in-memory bucket service.
type Store struct {
	mu      sync.RWMutex
	buckets map[string]map[string]*object
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		buckets: make(map[string]map[string]*object),
	}
}

// Head implements store.BucketService.
func (s *Store) Head(ctx context.Context, bucket, key string) (*store.ObjectInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	obj, ok := s.buckets[bucket][key]
	if !ok {
		return nil, &store.Error{Op: "head", Bucket: bucket, Key: key, Err: store.ErrNotFound}
	}
	return obj.info(key), nil
}

// Get implements store.BucketService.
func (s *Store) Get(ctx context.Context, bucket, key string) ([]byte, *store.ObjectInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	obj, ok := s.buckets[bucket][key]
	if !ok {
		return nil, nil, &store.Error{Op: "get", Bucket: bucket, Key: key, Err: store.ErrNotFound}
	}
	body := append([]byte(nil), obj.body...)
	return body, obj.info(key), nil
}

// Put implements store.BucketService.
func (s *Store) Put(ctx context.Context, bucket, key string, body []byte, metadata map[string]string) (*store.ObjectInfo, error) {
	return s.put(ctx, bucket, key, body, metadata, false)
}

// PutIfAbsent implements store.BucketService.
func (s *Store) PutIfAbsent(ctx context.Context, bucket, key string, body []byte, metadata map[string]string) (*store.ObjectInfo, error) {
	return s.put(ctx, bucket, key, body, metadata, true)
}

func (s *Store) put(ctx context.Context, bucket, key string, body []byte, metadata map[string]string, ifAbsent bool) (*store.ObjectInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	objects, ok := s.buckets[bucket]
	if !ok {
		objects = make(map[string]*object)
		s.buckets[bucket] = objects
	}

	if ifAbsent {
		if _, exists := objects[key]; exists {
			return nil, &store.Error{Op: "put", Bucket: bucket, Key: key, Err: store.ErrPreconditionFailed}
		}
	}

	obj := &object{
		body:         append([]byte(nil), body...),
		metadata:     copyMap(metadata),
		etag:         hash.Bytes(body),
		lastModified: time.Now().UTC(),
	}
	objects[key] = obj
	return obj.info(key), nil
}

// List implements store.BucketService.
func (s *Store) List(ctx context.Context, in store.ListInput) (*store.ListOutput, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	maxKeys := in.MaxKeys
	if maxKeys <= 0 {
		maxKeys = 1000
	}

	keys := make([]string, 0, len(s.buckets[in.Bucket]))
	for k := range s.buckets[in.Bucket] {
		if strings.HasPrefix(k, in.Prefix) && k > in.ContinuationToken {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	out := &store.ListOutput{}
	prefixSeen := make(map[string]bool)
	for _, k := range keys {
		if int32(len(out.Objects))+int32(len(out.CommonPrefixes)) >= maxKeys {
			out.IsTruncated = true
			out.NextContinuationToken = lastEmitted(out)
			break
		}
		if in.Delimiter != "" {
			rest := k[len(in.Prefix):]
			if i := strings.Index(rest, in.Delimiter); i >= 0 {
				cp := in.Prefix + rest[:i+len(in.Delimiter)]
				if !prefixSeen[cp] {
					prefixSeen[cp] = true
					out.CommonPrefixes = append(out.CommonPrefixes, cp)
				}
				continue
			}
		}
		obj := s.buckets[in.Bucket][k]
		out.Objects = append(out.Objects, *obj.info(k))
	}
	return out, nil
}

// Delete implements store.BucketService. Missing keys are ignored.
func (s *Store) Delete(ctx context.Context, bucket, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.buckets[bucket], key)
	return nil
}

// Copy implements store.BucketService.
func (s *Store) Copy(ctx context.Context, srcBucket, srcKey, dstBucket, dstKey string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	src, ok := s.buckets[srcBucket][srcKey]
	if !ok {
		return &store.Error{Op: "copy", Bucket: srcBucket, Key: srcKey, Err: store.ErrNotFound}
	}

	objects, ok := s.buckets[dstBucket]
	if !ok {
		objects = make(map[string]*object)
		s.buckets[dstBucket] = objects
	}
	objects[dstKey] = &object{
		body:         append([]byte(nil), src.body...),
		metadata:     copyMap(src.metadata),
		etag:         src.etag,
		lastModified: time.Now().UTC(),
	}
	return nil
}

// Corrupt overwrites a stored body in place without touching metadata.
// Test hook for integrity failure scenarios.
func (s *Store) Corrupt(bucket, key string, body []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	obj, ok := s.buckets[bucket][key]
	if !ok {
		return false
	}
	obj.body = append([]byte(nil), body...)
	return true
}

func (o *object) info(key string) *store.ObjectInfo {
	return &store.ObjectInfo{
		Key:          key,
		Size:         int64(len(o.body)),
		ETag:         o.etag,
		LastModified: o.lastModified,
		Metadata:     copyMap(o.metadata),
	}
}

func copyMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func lastEmitted(out *store.ListOutput) string {
	if n := len(out.Objects); n > 0 {
		last := out.Objects[n-1].Key
		if m := len(out.CommonPrefixes); m > 0 && out.CommonPrefixes[m-1] > last {
			return out.CommonPrefixes[m-1]
		}
		return last
	}
	if m := len(out.CommonPrefixes); m > 0 {
		return out.CommonPrefixes[m-1]
	}
	return ""
}

var _ store.BucketService = (*Store)(nil)
