package s3

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/prn-tf/deltaglider/internal/store"
)

// Store implements store.BucketService over an S3-compatible endpoint.
type Store struct {
	client *awss3.Client
	cfg    Config
	logger zerolog.Logger
}

// New wraps an SDK client into a bucket service.
func New(client *awss3.Client, cfg Config, logger zerolog.Logger) *Store {
	return &Store{
		client: client,
		cfg:    cfg.withDefaults(),
		logger: logger.With().Str("component", "s3").Logger(),
	}
}

// Head implements store.BucketService.
func (s *Store) Head(ctx context.Context, bucket, key string) (*store.ObjectInfo, error) {
	var out *awss3.HeadObjectOutput
	err := s.retry(ctx, s.cfg.MetaTimeout, func(ctx context.Context) error {
		var err error
		out, err = s.client.HeadObject(ctx, &awss3.HeadObjectInput{
			Bucket: aws.String(bucket),
			Key:    aws.String(key),
		})
		return err
	})
	if err != nil {
		return nil, &store.Error{Op: "head", Bucket: bucket, Key: key, Err: classify(err)}
	}
	return headInfo(key, out), nil
}

// Get implements store.BucketService.
func (s *Store) Get(ctx context.Context, bucket, key string) ([]byte, *store.ObjectInfo, error) {
	var body []byte
	var info *store.ObjectInfo
	err := s.retry(ctx, s.cfg.TransferTimeout, func(ctx context.Context) error {
		out, err := s.client.GetObject(ctx, &awss3.GetObjectInput{
			Bucket: aws.String(bucket),
			Key:    aws.String(key),
		})
		if err != nil {
			return err
		}
		defer out.Body.Close()

		body, err = io.ReadAll(out.Body)
		if err != nil {
			return err
		}
		info = &store.ObjectInfo{
			Key:          key,
			Size:         int64(len(body)),
			ETag:         cleanETag(out.ETag),
			LastModified: aws.ToTime(out.LastModified),
			Metadata:     lowerKeys(out.Metadata),
		}
		return nil
	})
	if err != nil {
		return nil, nil, &store.Error{Op: "get", Bucket: bucket, Key: key, Err: classify(err)}
	}
	return body, info, nil
}

// Put implements store.BucketService.
func (s *Store) Put(ctx context.Context, bucket, key string, body []byte, metadata map[string]string) (*store.ObjectInfo, error) {
	return s.put(ctx, bucket, key, body, metadata, false)
}

// PutIfAbsent implements store.BucketService. The conditional write is
// expressed with If-None-Match so the first writer wins server-side;
// both modern S3 and MinIO honor it.
func (s *Store) PutIfAbsent(ctx context.Context, bucket, key string, body []byte, metadata map[string]string) (*store.ObjectInfo, error) {
	return s.put(ctx, bucket, key, body, metadata, true)
}

func (s *Store) put(ctx context.Context, bucket, key string, body []byte, metadata map[string]string, ifAbsent bool) (*store.ObjectInfo, error) {
	in := &awss3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentLength: aws.Int64(int64(len(body))),
		Metadata:      metadata,
	}
	if ifAbsent {
		in.IfNoneMatch = aws.String("*")
	}

	var out *awss3.PutObjectOutput
	err := s.retry(ctx, s.cfg.TransferTimeout, func(ctx context.Context) error {
		// The reader must be rewound for each attempt.
		in.Body = bytes.NewReader(body)
		var err error
		out, err = s.client.PutObject(ctx, in)
		return err
	})
	if err != nil {
		return nil, &store.Error{Op: "put", Bucket: bucket, Key: key, Err: classify(err)}
	}

	s.logger.Debug().
		Str("bucket", bucket).
		Str("key", key).
		Int("size", len(body)).
		Bool("conditional", ifAbsent).
		Msg("object stored")

	return &store.ObjectInfo{
		Key:          key,
		Size:         int64(len(body)),
		ETag:         cleanETag(out.ETag),
		LastModified: time.Now().UTC(),
		Metadata:     metadata,
	}, nil
}

// List implements store.BucketService.
func (s *Store) List(ctx context.Context, in store.ListInput) (*store.ListOutput, error) {
	input := &awss3.ListObjectsV2Input{
		Bucket: aws.String(in.Bucket),
	}
	if in.Prefix != "" {
		input.Prefix = aws.String(in.Prefix)
	}
	if in.Delimiter != "" {
		input.Delimiter = aws.String(in.Delimiter)
	}
	if in.ContinuationToken != "" {
		input.ContinuationToken = aws.String(in.ContinuationToken)
	}
	if in.MaxKeys > 0 {
		input.MaxKeys = aws.Int32(in.MaxKeys)
	}

	var out *awss3.ListObjectsV2Output
	err := s.retry(ctx, s.cfg.MetaTimeout, func(ctx context.Context) error {
		var err error
		out, err = s.client.ListObjectsV2(ctx, input)
		return err
	})
	if err != nil {
		return nil, &store.Error{Op: "list", Bucket: in.Bucket, Err: classify(err)}
	}

	result := &store.ListOutput{
		IsTruncated:           aws.ToBool(out.IsTruncated),
		NextContinuationToken: aws.ToString(out.NextContinuationToken),
	}
	for _, obj := range out.Contents {
		result.Objects = append(result.Objects, store.ObjectInfo{
			Key:          aws.ToString(obj.Key),
			Size:         aws.ToInt64(obj.Size),
			ETag:         cleanETag(obj.ETag),
			LastModified: aws.ToTime(obj.LastModified),
		})
	}
	for _, cp := range out.CommonPrefixes {
		result.CommonPrefixes = append(result.CommonPrefixes, aws.ToString(cp.Prefix))
	}
	return result, nil
}

// Delete implements store.BucketService. S3 DELETE is idempotent; a
// missing key is success.
func (s *Store) Delete(ctx context.Context, bucket, key string) error {
	err := s.retry(ctx, s.cfg.MetaTimeout, func(ctx context.Context) error {
		_, err := s.client.DeleteObject(ctx, &awss3.DeleteObjectInput{
			Bucket: aws.String(bucket),
			Key:    aws.String(key),
		})
		return err
	})
	if err != nil {
		mapped := classify(err)
		if errors.Is(mapped, store.ErrNotFound) {
			return nil
		}
		return &store.Error{Op: "delete", Bucket: bucket, Key: key, Err: mapped}
	}
	return nil
}

// Copy implements store.BucketService.
func (s *Store) Copy(ctx context.Context, srcBucket, srcKey, dstBucket, dstKey string) error {
	err := s.retry(ctx, s.cfg.TransferTimeout, func(ctx context.Context) error {
		_, err := s.client.CopyObject(ctx, &awss3.CopyObjectInput{
			Bucket:            aws.String(dstBucket),
			Key:               aws.String(dstKey),
			CopySource:        aws.String(srcBucket + "/" + srcKey),
			MetadataDirective: types.MetadataDirectiveCopy,
		})
		return err
	})
	if err != nil {
		return &store.Error{Op: "copy", Bucket: dstBucket, Key: dstKey, Err: classify(err)}
	}
	return nil
}

// retry runs fn under a per-operation deadline, retrying transient
// failures with jittered exponential backoff up to the attempt budget.
func (s *Store) retry(ctx context.Context, timeout time.Duration, fn func(ctx context.Context) error) error {
	opCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(s.cfg.MaxAttempts-1)),
		opCtx,
	)
	return backoff.Retry(func() error {
		err := fn(opCtx)
		if err == nil {
			return nil
		}
		if isTransient(err) {
			s.logger.Warn().Err(err).Msg("transient store error, retrying")
			return err
		}
		return backoff.Permanent(err)
	}, policy)
}

// classify maps a provider error onto the store taxonomy.
func classify(err error) error {
	if err == nil {
		return nil
	}

	var noSuchKey *types.NoSuchKey
	var notFound *types.NotFound
	if errors.As(err, &noSuchKey) || errors.As(err, &notFound) {
		return errors.Join(store.ErrNotFound, err)
	}

	var respErr *awshttp.ResponseError
	if errors.As(err, &respErr) {
		switch code := respErr.HTTPStatusCode(); {
		case code == 404:
			return errors.Join(store.ErrNotFound, err)
		case code == 412:
			return errors.Join(store.ErrPreconditionFailed, err)
		case code == 429 || code >= 500:
			return errors.Join(store.ErrTransient, err)
		case code >= 400:
			return errors.Join(store.ErrPermanent, err)
		}
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound", "NoSuchBucket":
			return errors.Join(store.ErrNotFound, err)
		case "PreconditionFailed":
			return errors.Join(store.ErrPreconditionFailed, err)
		case "SlowDown", "Throttling", "ThrottlingException", "RequestTimeout", "InternalError", "ServiceUnavailable":
			return errors.Join(store.ErrTransient, err)
		default:
			return errors.Join(store.ErrPermanent, err)
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return errors.Join(store.ErrTransient, err)
	}
	return errors.Join(store.ErrTransient, err)
}

// isTransient decides retryability before taxonomy wrapping.
func isTransient(err error) bool {
	return errors.Is(classify(err), store.ErrTransient)
}

func headInfo(key string, out *awss3.HeadObjectOutput) *store.ObjectInfo {
	return &store.ObjectInfo{
		Key:          key,
		Size:         aws.ToInt64(out.ContentLength),
		ETag:         cleanETag(out.ETag),
		LastModified: aws.ToTime(out.LastModified),
		Metadata:     lowerKeys(out.Metadata),
	}
}

// cleanETag strips the surrounding quotes S3 puts on entity tags.
func cleanETag(etag *string) string {
	return strings.Trim(aws.ToString(etag), `"`)
}

// lowerKeys normalizes user metadata keys; providers differ in casing.
func lowerKeys(m map[string]string) map[string]string {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[strings.ToLower(k)] = v
	}
	return out
}

var _ store.BucketService = (*Store)(nil)
