package engine

import (
	"context"
	"time"
)

// CopyObjectInput identifies a logical source and destination.
type CopyObjectInput struct {
	SrcBucket string
	SrcKey    string
	DstBucket string
	DstKey    string
	Metadata  map[string]string
}

// CopyObjectOutput mirrors the standard S3 copy response shape.
type CopyObjectOutput struct {
	ETag         string
	LastModified time.Time
}

// CopyObject copies a logical object. The source is reconstructed and
// re-uploaded through the normal put path so the destination joins its
// own group: a delta in one prefix may become a reference, a delta
// against a different base, or a direct object in another.
func (e *Engine) CopyObject(ctx context.Context, in *CopyObjectInput) (out *CopyObjectOutput, err error) {
	start := time.Now()
	defer func() { e.observe("copy", start, err) }()

	src, err := e.GetObject(ctx, &GetObjectInput{Bucket: in.SrcBucket, Key: in.SrcKey})
	if err != nil {
		return nil, err
	}
	defer src.Body.Close()

	metadata := in.Metadata
	if metadata == nil {
		metadata = userMetadata(src.Metadata)
	}

	put, err := e.PutObject(ctx, &PutObjectInput{
		Bucket:   in.DstBucket,
		Key:      in.DstKey,
		Body:     src.Body,
		Metadata: metadata,
	})
	if err != nil {
		return nil, err
	}
	return &CopyObjectOutput{ETag: put.ETag, LastModified: time.Now().UTC()}, nil
}
