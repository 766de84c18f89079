// Package snapshot periodically archives the watcher's watched-order set to
// S3-compatible object storage using the AWS SDK v2, so the watched set can
// be inspected after the fact. Nothing in this module reads a snapshot back.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// ClientConfig holds the configuration for connecting to an S3-compatible
// object store. Endpoint, when set, targets any provider that speaks the S3
// API (MinIO, R2, iDrive e2, ...) rather than AWS itself.
type ClientConfig struct {
	Endpoint       string
	Region         string
	Bucket         string
	AccessKey      string
	SecretKey      string
	UseSSL         bool
	ForcePathStyle bool
}

func (cfg ClientConfig) validate() error {
	switch {
	case cfg.Bucket == "":
		return fmt.Errorf("snapshot: bucket name is required")
	case cfg.Region == "":
		return fmt.Errorf("snapshot: region is required")
	default:
		return nil
	}
}

func (cfg ClientConfig) s3Options() []func(*s3.Options) {
	var opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		endpoint := cfg.resolvedEndpoint()
		opts = append(opts, func(o *s3.Options) { o.BaseEndpoint = aws.String(endpoint) })
	}
	if cfg.ForcePathStyle {
		opts = append(opts, func(o *s3.Options) { o.UsePathStyle = true })
	}
	return opts
}

// resolvedEndpoint prepends a scheme to Endpoint when the operator supplied
// a bare host, using UseSSL to pick http vs https.
func (cfg ClientConfig) resolvedEndpoint() string {
	if strings.Contains(cfg.Endpoint, "://") {
		return cfg.Endpoint
	}
	scheme := "http"
	if cfg.UseSSL {
		scheme = "https"
	}
	return scheme + "://" + cfg.Endpoint
}

// Client wraps the AWS S3 SDK client and the default bucket archived
// snapshots live in.
type Client struct {
	s3     *s3.Client
	bucket string
}

// New builds a Client from cfg, resolving AWS credentials and region before
// constructing the underlying SDK client.
func New(ctx context.Context, cfg ClientConfig) (*Client, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("snapshot: load aws config: %w", err)
	}

	return &Client{
		s3:     s3.NewFromConfig(awsCfg, cfg.s3Options()...),
		bucket: cfg.Bucket,
	}, nil
}

// Health confirms the configured bucket is reachable and this client's
// credentials can see it.
func (c *Client) Health(ctx context.Context) error {
	_, err := c.s3.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(c.bucket)})
	if err != nil {
		return fmt.Errorf("snapshot: head bucket %s: %w", c.bucket, err)
	}
	return nil
}

// Exists reports whether an object already sits at key in the configured
// bucket, so a writer can skip re-uploading an identical snapshot.
func (c *Client) Exists(ctx context.Context, key string) (bool, error) {
	_, err := c.s3.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		return true, nil
	}
	var notFound *types.NotFound
	if errors.As(err, &notFound) {
		return false, nil
	}
	return false, fmt.Errorf("snapshot: head object %s: %w", key, err)
}

// S3 returns the underlying AWS SDK client for Writer's own PutObject calls.
func (c *Client) S3() *s3.Client {
	return c.s3
}

// Bucket returns the configured default bucket name.
func (c *Client) Bucket() string {
	return c.bucket
}
