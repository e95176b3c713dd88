// Package s3 implements the store.BucketService port on top of any
// S3-compatible service (AWS S3, MinIO, R2) via the AWS SDK v2.
package s3

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
)

// Config holds connection settings for the S3 adapter.
type Config struct {
	// Endpoint overrides the provider endpoint (MinIO, R2). Empty uses AWS.
	Endpoint string

	// Region is the bucket region. Empty falls back to the SDK default chain.
	Region string

	// AccessKeyID and SecretAccessKey override the default credential
	// chain when both are set.
	AccessKeyID     string
	SecretAccessKey string

	// MetaTimeout bounds HEAD/LIST/DELETE.
	MetaTimeout time.Duration

	// TransferTimeout bounds every PUT, GET and COPY. Body size is not
	// considered: small blobs get the same deadline as large transfers.
	TransferTimeout time.Duration

	// MaxAttempts is the retry budget for transient failures.
	MaxAttempts int
}

// defaults per the operation deadline contract.
const (
	defaultMetaTimeout     = 60 * time.Second
	defaultTransferTimeout = 30 * time.Minute
	defaultMaxAttempts     = 5
)

func (c *Config) withDefaults() Config {
	out := *c
	if out.MetaTimeout <= 0 {
		out.MetaTimeout = defaultMetaTimeout
	}
	if out.TransferTimeout <= 0 {
		out.TransferTimeout = defaultTransferTimeout
	}
	if out.MaxAttempts <= 0 {
		out.MaxAttempts = defaultMaxAttempts
	}
	return out
}

// NewClient builds the underlying SDK client. SDK-level retries are
// disabled; the adapter owns retry policy so transient classification
// stays in one place.
func NewClient(ctx context.Context, cfg Config) (*awss3.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRetryMaxAttempts(1),
	}
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := awss3.NewFromConfig(awsCfg, func(o *awss3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			// Custom endpoints are typically MinIO-style path addressed.
			o.UsePathStyle = true
		}
	})
	return client, nil
}

// NewStore builds a ready-to-use bucket service.
func NewStore(ctx context.Context, cfg Config, logger zerolog.Logger) (*Store, error) {
	client, err := NewClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return New(client, cfg, logger), nil
}
