package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/prn-tf/deltaglider/internal/classify"
	"github.com/prn-tf/deltaglider/internal/hash"
	"github.com/prn-tf/deltaglider/internal/naming"
	"github.com/prn-tf/deltaglider/internal/store"
)

// PutObjectInput carries one upload.
type PutObjectInput struct {
	Bucket   string
	Key      string
	Body     io.Reader
	Metadata map[string]string
}

// PutObjectOutput mirrors the standard S3 put response shape.
type PutObjectOutput struct {
	ETag     string
	Metadata map[string]string
}

// PutObject stores a logical object. Delta candidates are encoded
// against their group reference; the first candidate in a group becomes
// the reference itself. Reconstruction materializes whole objects, so
// the body is read fully before any network call.
func (e *Engine) PutObject(ctx context.Context, in *PutObjectInput) (out *PutObjectOutput, err error) {
	start := time.Now()
	defer func() { e.observe("put", start, err) }()

	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}

	id := naming.Identify(in.Key)
	sha := hash.Bytes(data)
	user := userMetadata(in.Metadata)
	logger := e.opLogger("put", in.Bucket, id.Key)

	verdict := classify.File(id.Filename, int64(len(data)))
	if verdict != classify.DeltaCandidate {
		logger.Debug().Str("verdict", string(verdict)).Msg("storing verbatim")
		return e.putDirect(ctx, in.Bucket, id, data, sha, user)
	}

	// The loser of the reference-creation race sees the winner on the
	// next HEAD and proceeds as a delta writer. No lock is held.
	for attempt := 0; attempt < 2; attempt++ {
		refInfo, refMeta, err := e.headMeta(ctx, in.Bucket, id.ReferenceKey)
		if err != nil {
			return nil, err
		}

		if refInfo == nil {
			out, err := e.createReference(ctx, in.Bucket, id, data, sha, user)
			if errors.Is(err, store.ErrPreconditionFailed) {
				logger.Debug().Msg("lost reference creation race, retrying as delta")
				continue
			}
			return out, err
		}

		if refMeta.Kind != KindReference || refMeta.SHA256 == "" {
			// Something that is not a DeltaGlider reference occupies the
			// reference key; leave it alone and store verbatim.
			logger.Warn().Str("ref_key", id.ReferenceKey).Msg("reference key occupied by foreign object")
			return e.putDirect(ctx, in.Bucket, id, data, sha, user)
		}

		return e.putDelta(ctx, in.Bucket, id, data, sha, refMeta, user)
	}
	return nil, fmt.Errorf("reference creation race did not settle for %s/%s", in.Bucket, id.ReferenceKey)
}

// putDirect stores the logical bytes verbatim under the plain key.
func (e *Engine) putDirect(ctx context.Context, bucket string, id naming.Identity, data []byte, sha string, user map[string]string) (*PutObjectOutput, error) {
	meta := ObjectMeta{
		Kind:        KindDirect,
		ToolVersion: ToolVersion,
		SHA256:      sha,
		Size:        int64(len(data)),
	}

	info, err := e.store.Put(ctx, bucket, id.Key, data, merged(meta.encode(), user))
	if err != nil {
		return nil, err
	}
	// A reader observes exactly one variant of the logical key.
	if err := e.store.Delete(ctx, bucket, id.DeltaKey); err != nil {
		return nil, err
	}

	if e.metrics != nil {
		e.metrics.BytesUploaded.WithLabelValues(string(KindDirect)).Add(float64(len(data)))
	}
	return &PutObjectOutput{ETag: info.ETag, Metadata: meta.shape(user)}, nil
}

// createReference materializes the first accepted candidate of a group:
// its bytes become the group reference, and a zero-byte anchor keeps the
// original filename individually addressable.
func (e *Engine) createReference(ctx context.Context, bucket string, id naming.Identity, data []byte, sha string, user map[string]string) (*PutObjectOutput, error) {
	refMeta := ObjectMeta{
		Kind:        KindReference,
		ToolVersion: ToolVersion,
		SHA256:      sha,
		Size:        int64(len(data)),
		GroupID:     id.GroupID,
	}
	if _, err := e.store.PutIfAbsent(ctx, bucket, id.ReferenceKey, data, refMeta.encode()); err != nil {
		return nil, err
	}

	anchorMeta := ObjectMeta{
		Kind:        KindDelta,
		ToolVersion: ToolVersion,
		SHA256:      sha,
		Size:        int64(len(data)),
		RefKey:      id.ReferenceKey,
		RefSHA256:   sha,
		DeltaSize:   0,
		Ratio:       1,
	}
	info, err := e.store.Put(ctx, bucket, id.DeltaKey, nil, merged(anchorMeta.encode(), user))
	if err != nil {
		return nil, err
	}
	if err := e.store.Delete(ctx, bucket, id.Key); err != nil {
		return nil, err
	}

	if e.metrics != nil {
		e.metrics.ReferencesCreated.Inc()
		e.metrics.BytesUploaded.WithLabelValues(string(KindReference)).Add(float64(len(data)))
	}
	e.logger.Info().
		Str("bucket", bucket).
		Str("group_id", id.GroupID).
		Str("ref_key", id.ReferenceKey).
		Int("size", len(data)).
		Msg("group reference created")

	return &PutObjectOutput{ETag: info.ETag, Metadata: anchorMeta.shape(user)}, nil
}

// putDelta encodes data against the group reference, falling back to
// direct storage when the delta exceeds the ratio cutoff.
func (e *Engine) putDelta(ctx context.Context, bucket string, id naming.Identity, data []byte, sha string, refMeta ObjectMeta, user map[string]string) (*PutObjectOutput, error) {
	refBytes, err := e.fetchReference(ctx, bucket, id.ReferenceKey, refMeta.SHA256)
	if err != nil {
		return nil, err
	}

	delta, err := e.codec.Diff(refBytes, data)
	if err != nil {
		return nil, fmt.Errorf("failed to compute delta: %w", err)
	}

	if float64(len(delta)) > e.maxRatio*float64(len(data)) {
		if e.metrics != nil {
			e.metrics.DeltaDowngrades.Inc()
		}
		e.logger.Debug().
			Str("key", id.Key).
			Int("delta_size", len(delta)).
			Int("size", len(data)).
			Msg("delta exceeds ratio cutoff, storing verbatim")
		return e.putDirect(ctx, bucket, id, data, sha, user)
	}

	ratio := 1 - float64(len(delta))/float64(len(data))
	meta := ObjectMeta{
		Kind:        KindDelta,
		ToolVersion: ToolVersion,
		SHA256:      sha,
		Size:        int64(len(data)),
		RefKey:      id.ReferenceKey,
		RefSHA256:   refMeta.SHA256,
		DeltaSize:   int64(len(delta)),
		Ratio:       ratio,
	}

	info, err := e.store.Put(ctx, bucket, id.DeltaKey, delta, merged(meta.encode(), user))
	if err != nil {
		return nil, err
	}
	if err := e.store.Delete(ctx, bucket, id.Key); err != nil {
		return nil, err
	}

	if e.metrics != nil {
		e.metrics.DeltasWritten.Inc()
		e.metrics.BytesUploaded.WithLabelValues(string(KindDelta)).Add(float64(len(delta)))
		e.metrics.CompressionRatio.Observe(ratio)
	}
	return &PutObjectOutput{ETag: info.ETag, Metadata: meta.shape(user)}, nil
}

// merged overlays user metadata onto the dg- vocabulary.
func merged(meta, user map[string]string) map[string]string {
	if len(user) == 0 {
		return meta
	}
	out := make(map[string]string, len(meta)+len(user))
	for k, v := range user {
		out[k] = v
	}
	for k, v := range meta {
		out[k] = v
	}
	return out
}
