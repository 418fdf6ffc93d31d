package artifact

import (
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// S3Registry publishes artifacts to an S3-compatible bucket, one object per
// image reference.
type S3Registry struct {
	client *minio.Client
	bucket string
}

// S3Options configures an S3Registry connection.
type S3Options struct {
	Endpoint string
	Bucket   string
	UseSSL   bool
}

// NewS3Registry validates the credentials and connects to the endpoint.
func NewS3Registry(ctx context.Context, opts S3Options, creds Credentials) (*S3Registry, error) {
	if err := creds.Validate(); err != nil {
		return nil, err
	}

	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(creds.AccessKey, creds.SecretKey, ""),
		Secure: opts.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("artifact: connect %s: %w", opts.Endpoint, err)
	}

	exists, err := client.BucketExists(ctx, opts.Bucket)
	if err != nil {
		return nil, fmt.Errorf("artifact: bucket check %s: %w", opts.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, opts.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("artifact: make bucket %s: %w", opts.Bucket, err)
		}
	}

	return &S3Registry{client: client, bucket: opts.Bucket}, nil
}

// Push implements Registry.
func (r *S3Registry) Push(ctx context.Context, ref string, blob io.Reader, size int64) error {
	_, err := r.client.PutObject(ctx, r.bucket, ref, blob, size, minio.PutObjectOptions{
		ContentType: "application/octet-stream",
	})
	if err != nil {
		return fmt.Errorf("artifact: push %s: %w", ref, err)
	}
	return nil
}

// Pull implements Registry.
func (r *S3Registry) Pull(ctx context.Context, ref string) (io.ReadCloser, error) {
	obj, err := r.client.GetObject(ctx, r.bucket, ref, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("artifact: pull %s: %w", ref, err)
	}
	return obj, nil
}
