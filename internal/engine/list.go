package engine

import (
	"context"
	"sort"
	"time"

	"github.com/prn-tf/deltaglider/internal/naming"
	"github.com/prn-tf/deltaglider/internal/store"
)

// ListObjectsV2Input mirrors the standard v2 listing parameters, plus
// IncludeReferences for administrative tooling.
type ListObjectsV2Input struct {
	Bucket            string
	Prefix            string
	Delimiter         string
	ContinuationToken string
	MaxKeys           int32

	// IncludeReferences exposes group reference objects, which the
	// default listing hides.
	IncludeReferences bool
}

// ObjectSummary is one listing entry. Size is the logical size, never
// the on-disk delta size.
type ObjectSummary struct {
	Key          string
	Size         int64
	ETag         string
	LastModified time.Time
	Metadata     map[string]string
}

// ListObjectsV2Output mirrors the standard v2 listing response shape.
type ListObjectsV2Output struct {
	Name                  string
	Prefix                string
	Delimiter             string
	KeyCount              int32
	MaxKeys               int32
	IsTruncated           bool
	ContinuationToken     string
	NextContinuationToken string
	Contents              []ObjectSummary
	CommonPrefixes        []string
}

// ListObjectsV2 lists logical objects: delta suffixes are stripped,
// sizes report original bytes, and the group reference stays hidden
// unless asked for. Anchors and deltas are deduplicated so one logical
// name never yields two entries.
func (e *Engine) ListObjectsV2(ctx context.Context, in *ListObjectsV2Input) (out *ListObjectsV2Output, err error) {
	start := time.Now()
	defer func() { e.observe("list", start, err) }()

	page, err := e.store.List(ctx, store.ListInput{
		Bucket:            in.Bucket,
		Prefix:            in.Prefix,
		Delimiter:         in.Delimiter,
		ContinuationToken: in.ContinuationToken,
		MaxKeys:           in.MaxKeys,
	})
	if err != nil {
		return nil, err
	}

	entries := make(map[string]ObjectSummary)
	for _, obj := range page.Objects {
		if naming.IsReferenceKey(obj.Key) && !in.IncludeReferences {
			continue
		}

		isDelta := naming.IsDeltaKey(obj.Key)
		logical := naming.LogicalKey(obj.Key)
		if _, ok := entries[logical]; ok && !isDelta {
			// The delta/anchor variant already claimed this name.
			continue
		}

		summary, err := e.summarize(ctx, in.Bucket, obj, logical)
		if err != nil {
			return nil, err
		}
		entries[logical] = summary
	}

	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out = &ListObjectsV2Output{
		Name:                  in.Bucket,
		Prefix:                in.Prefix,
		Delimiter:             in.Delimiter,
		MaxKeys:               in.MaxKeys,
		IsTruncated:           page.IsTruncated,
		ContinuationToken:     in.ContinuationToken,
		NextContinuationToken: page.NextContinuationToken,
		CommonPrefixes:        page.CommonPrefixes,
	}
	for _, k := range keys {
		out.Contents = append(out.Contents, entries[k])
	}
	out.KeyCount = int32(len(out.Contents) + len(out.CommonPrefixes))
	return out, nil
}

// summarize resolves one stored object into its logical listing entry.
// Delta and reference entries need a HEAD to recover the dg- metadata
// the bare listing does not carry.
func (e *Engine) summarize(ctx context.Context, bucket string, obj store.ObjectInfo, logical string) (ObjectSummary, error) {
	info, meta, err := e.headMeta(ctx, bucket, obj.Key)
	if err != nil {
		return ObjectSummary{}, err
	}
	if info == nil {
		// Deleted between LIST and HEAD; surface what the listing saw.
		return ObjectSummary{
			Key:          logical,
			Size:         obj.Size,
			ETag:         obj.ETag,
			LastModified: obj.LastModified,
		}, nil
	}

	etag := meta.SHA256
	if etag == "" {
		etag = info.ETag
	}
	return ObjectSummary{
		Key:          logical,
		Size:         meta.Size,
		ETag:         etag,
		LastModified: info.LastModified,
		Metadata:     meta.shape(info.Metadata),
	}, nil
}
