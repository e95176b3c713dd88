package engine

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/prn-tf/deltaglider/internal/cache"
	"github.com/prn-tf/deltaglider/internal/hash"
	"github.com/prn-tf/deltaglider/internal/naming"
	"github.com/prn-tf/deltaglider/internal/store"
)

// GetObjectInput identifies one logical object.
type GetObjectInput struct {
	Bucket string
	Key    string
}

// GetObjectOutput mirrors the standard S3 get response shape. Body holds
// the fully reconstructed logical bytes.
type GetObjectOutput struct {
	Body          io.ReadCloser
	ContentLength int64
	ETag          string
	LastModified  time.Time
	Metadata      map[string]string
}

// GetObject retrieves and, for deltas, reconstructs a logical object.
// Returned bytes are verified against the recorded dg-sha256; objects
// written by other tools carry none and are returned unverified.
func (e *Engine) GetObject(ctx context.Context, in *GetObjectInput) (out *GetObjectOutput, err error) {
	start := time.Now()
	defer func() { e.observe("get", start, err) }()

	key := naming.LogicalKey(in.Key)
	id := naming.Identify(key)

	plainInfo, plainMeta, err := e.headMeta(ctx, in.Bucket, id.Key)
	if err != nil {
		return nil, err
	}
	deltaInfo, deltaMeta, err := e.headMeta(ctx, in.Bucket, id.DeltaKey)
	if err != nil {
		return nil, err
	}

	switch {
	case plainInfo == nil && deltaInfo == nil:
		return nil, fmt.Errorf("%w: %s/%s", ErrObjectNotFound, in.Bucket, key)
	case plainInfo != nil && deltaInfo != nil:
		// Never silently pick one.
		return nil, fmt.Errorf("%w: %s/%s", ErrStorageInconsistency, in.Bucket, key)
	case plainInfo != nil:
		return e.getVerbatim(ctx, in.Bucket, id.Key, plainMeta)
	default:
		return e.getDelta(ctx, in.Bucket, id, deltaMeta)
	}
}

// getVerbatim serves direct and reference objects: body equals the
// logical bytes.
func (e *Engine) getVerbatim(ctx context.Context, bucket, key string, meta ObjectMeta) (*GetObjectOutput, error) {
	body, info, err := e.store.Get(ctx, bucket, key)
	if err != nil {
		return nil, err
	}
	if e.metrics != nil {
		e.metrics.BytesDownloaded.Add(float64(len(body)))
	}

	if meta.SHA256 != "" && hash.Bytes(body) != meta.SHA256 {
		return nil, fmt.Errorf("%w: %s body does not match recorded hash", ErrIntegrityFailure, key)
	}
	return shapeGet(body, info, meta), nil
}

// getDelta reconstructs a logical object from its reference and delta.
func (e *Engine) getDelta(ctx context.Context, bucket string, id naming.Identity, meta ObjectMeta) (*GetObjectOutput, error) {
	refBytes, err := e.fetchReference(ctx, bucket, meta.RefKey, meta.RefSHA256)
	if err != nil {
		return nil, err
	}

	deltaBody, info, err := e.store.Get(ctx, bucket, id.DeltaKey)
	if err != nil {
		return nil, err
	}
	if e.metrics != nil {
		e.metrics.BytesDownloaded.Add(float64(len(deltaBody)))
	}

	var reconstructed []byte
	if len(deltaBody) == 0 {
		// Anchor of the file whose bytes seeded the reference.
		reconstructed = refBytes
	} else {
		reconstructed, err = e.codec.Patch(refBytes, deltaBody)
		if err != nil {
			e.evictReference(bucket, meta)
			return nil, fmt.Errorf("%w: failed to apply delta for %s: %v", ErrIntegrityFailure, id.Key, err)
		}
	}

	if int64(len(reconstructed)) != meta.Size || hash.Bytes(reconstructed) != meta.SHA256 {
		e.evictReference(bucket, meta)
		return nil, fmt.Errorf("%w: reconstructed %s does not match recorded hash or size", ErrIntegrityFailure, id.Key)
	}
	return shapeGet(reconstructed, info, meta), nil
}

func (e *Engine) evictReference(bucket string, meta ObjectMeta) {
	e.cache.Evict(cache.Key{Bucket: bucket, RefKey: meta.RefKey, SHA256: meta.RefSHA256})
}

func shapeGet(body []byte, info *store.ObjectInfo, meta ObjectMeta) *GetObjectOutput {
	etag := meta.SHA256
	if etag == "" {
		etag = info.ETag
	}
	return &GetObjectOutput{
		Body:          io.NopCloser(bytes.NewReader(body)),
		ContentLength: int64(len(body)),
		ETag:          etag,
		LastModified:  info.LastModified,
		Metadata:      meta.shape(info.Metadata),
	}
}
