package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/prn-tf/deltaglider/internal/naming"
	"github.com/prn-tf/deltaglider/internal/store"
)

// DeleteObjectInput identifies one logical object.
type DeleteObjectInput struct {
	Bucket string
	Key    string
}

// DeleteObjectOutput mirrors the standard S3 delete response shape.
type DeleteObjectOutput struct{}

// DeleteObject removes a logical object: both the plain key and its
// delta sibling are deleted, whichever exists. Group references are
// never deleted by a caller-facing delete; use PurgeGroup.
func (e *Engine) DeleteObject(ctx context.Context, in *DeleteObjectInput) (out *DeleteObjectOutput, err error) {
	start := time.Now()
	defer func() { e.observe("delete", start, err) }()

	key := naming.LogicalKey(in.Key)
	if naming.IsReferenceKey(key) {
		return nil, fmt.Errorf("%w: %s is a group reference, use purge-group", ErrReferencedByDeltas, key)
	}

	id := naming.Identify(key)
	if err := e.store.Delete(ctx, in.Bucket, id.Key); err != nil {
		return nil, err
	}
	if err := e.store.Delete(ctx, in.Bucket, id.DeltaKey); err != nil {
		return nil, err
	}
	return &DeleteObjectOutput{}, nil
}

// ObjectIdentifier names one object in a batch delete.
type ObjectIdentifier struct {
	Key string
}

// DeletedObject reports one successful batch deletion.
type DeletedObject struct {
	Key string
}

// DeleteError reports one failed batch deletion.
type DeleteError struct {
	Key     string
	Message string
}

// DeleteObjectsInput mirrors the standard S3 batch delete request.
type DeleteObjectsInput struct {
	Bucket  string
	Objects []ObjectIdentifier
}

// DeleteObjectsOutput mirrors the standard S3 batch delete response.
type DeleteObjectsOutput struct {
	Deleted []DeletedObject
	Errors  []DeleteError
}

// DeleteObjects removes a batch of logical objects. Failures are
// reported per key; the batch continues past them.
func (e *Engine) DeleteObjects(ctx context.Context, in *DeleteObjectsInput) (out *DeleteObjectsOutput, err error) {
	start := time.Now()
	defer func() { e.observe("delete_objects", start, err) }()

	out = &DeleteObjectsOutput{}
	for _, obj := range in.Objects {
		if _, err := e.DeleteObject(ctx, &DeleteObjectInput{Bucket: in.Bucket, Key: obj.Key}); err != nil {
			out.Errors = append(out.Errors, DeleteError{Key: obj.Key, Message: err.Error()})
			continue
		}
		out.Deleted = append(out.Deleted, DeletedObject{Key: obj.Key})
	}
	return out, nil
}

// PurgeGroup deletes a group's reference, but only after verifying no
// delta still names it. groupID accepts either the "{prefix}::{family}"
// form or a bare prefix.
func (e *Engine) PurgeGroup(ctx context.Context, bucket, groupID string) (err error) {
	start := time.Now()
	defer func() { e.observe("purge_group", start, err) }()

	prefix := groupID
	if i := strings.Index(groupID, "::"); i >= 0 {
		prefix = groupID[:i]
	}
	id := naming.Identify(strings.TrimSuffix(prefix, "/") + "/" + naming.ReferenceName)
	refKey := id.Key

	listPrefix := ""
	if p := id.Prefix; p != "" {
		listPrefix = p + "/"
	}

	token := ""
	for {
		page, err := e.store.List(ctx, store.ListInput{Bucket: bucket, Prefix: listPrefix, ContinuationToken: token})
		if err != nil {
			return err
		}
		for _, obj := range page.Objects {
			if !naming.IsDeltaKey(obj.Key) {
				continue
			}
			_, meta, err := e.headMeta(ctx, bucket, obj.Key)
			if err != nil {
				return err
			}
			if meta.RefKey == refKey {
				return fmt.Errorf("%w: %s still references %s", ErrReferencedByDeltas, naming.LogicalKey(obj.Key), refKey)
			}
		}
		if !page.IsTruncated {
			break
		}
		token = page.NextContinuationToken
	}

	if _, err := e.store.Head(ctx, bucket, refKey); err != nil {
		if store.IsNotFound(err) {
			return nil
		}
		return err
	}
	if err := e.store.Delete(ctx, bucket, refKey); err != nil {
		return err
	}
	e.logger.Info().Str("bucket", bucket).Str("ref_key", refKey).Msg("group reference purged")
	return nil
}

// IsNotFound reports whether err is the engine's not-found condition.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrObjectNotFound)
}
