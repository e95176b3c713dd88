package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/prn-tf/deltaglider/internal/naming"
)

// HeadObjectInput identifies one logical object.
type HeadObjectInput struct {
	Bucket string
	Key    string
}

// HeadObjectOutput mirrors the standard S3 head response shape.
// ContentLength is the logical size and ETag the logical content hash;
// no reconstruction occurs.
type HeadObjectOutput struct {
	ContentLength int64
	ETag          string
	LastModified  time.Time
	Metadata      map[string]string
}

// HeadObject returns logical metadata for a key without touching bodies.
func (e *Engine) HeadObject(ctx context.Context, in *HeadObjectInput) (out *HeadObjectOutput, err error) {
	start := time.Now()
	defer func() { e.observe("head", start, err) }()

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
		return nil, fmt.Errorf("%w: %s/%s", ErrStorageInconsistency, in.Bucket, key)
	case plainInfo != nil:
		return headOutput(plainInfo.LastModified, plainMeta, plainInfo.Metadata, plainInfo.ETag), nil
	default:
		return headOutput(deltaInfo.LastModified, deltaMeta, deltaInfo.Metadata, deltaInfo.ETag), nil
	}
}

func headOutput(lastModified time.Time, meta ObjectMeta, raw map[string]string, fallbackETag string) *HeadObjectOutput {
	etag := meta.SHA256
	if etag == "" {
		etag = fallbackETag
	}
	return &HeadObjectOutput{
		ContentLength: meta.Size,
		ETag:          etag,
		LastModified:  lastModified,
		Metadata:      meta.shape(raw),
	}
}
