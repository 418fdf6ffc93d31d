package cachestore

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// S3Store stores cache blobs as objects in an S3-compatible bucket, the
// backend for fleets of runners sharing one cache namespace.
type S3Store struct {
	client *minio.Client
	bucket string
}

// S3Options configures an S3Store connection.
type S3Options struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// NewS3Store connects to the endpoint and ensures the bucket exists.
func NewS3Store(ctx context.Context, opts S3Options) (*S3Store, error) {
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("cachestore: connect %s: %w", opts.Endpoint, err)
	}

	exists, err := client.BucketExists(ctx, opts.Bucket)
	if err != nil {
		return nil, fmt.Errorf("cachestore: bucket check %s: %w", opts.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, opts.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("cachestore: make bucket %s: %w", opts.Bucket, err)
		}
	}

	return &S3Store{client: client, bucket: opts.Bucket}, nil
}

// Restore implements Store.
func (s *S3Store) Restore(ctx context.Context, key string) ([]byte, bool, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, false, fmt.Errorf("cachestore: restore %s: %w", key, err)
	}
	defer obj.Close()

	blob, err := io.ReadAll(obj)
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("cachestore: restore %s: %w", key, err)
	}
	return blob, true, nil
}

// Save implements Store. S3 object puts are atomic per key, so concurrent
// saves degrade to last-writer-wins exactly as the filesystem backend does.
func (s *S3Store) Save(ctx context.Context, key string, blob []byte) error {
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(blob), int64(len(blob)), minio.PutObjectOptions{
		ContentType: "application/octet-stream",
	})
	if err != nil {
		return fmt.Errorf("cachestore: save %s: %w", key, err)
	}
	return nil
}
