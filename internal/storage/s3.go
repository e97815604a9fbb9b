package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/jmehdipour/staffhooks/internal/config"
	"github.com/minio/minio-go/v7"
	miniocreds "github.com/minio/minio-go/v7/pkg/credentials"
)

var ErrBucketNotConfigured = errors.New("storage: bucket not configured")

// S3Uploader writes to any S3-compatible store.
type S3Uploader struct {
	client *minio.Client
	bucket string
}

var _ Uploader = (*S3Uploader)(nil)

func NewS3Uploader(cfg config.StorageConfig) (*S3Uploader, error) {
	if cfg.Bucket == "" || cfg.Endpoint == "" {
		return nil, ErrBucketNotConfigured
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  miniocreds.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("storage: s3 client: %w", err)
	}
	return &S3Uploader{client: client, bucket: cfg.Bucket}, nil
}

func (u *S3Uploader) Name() string { return "s3" }

func (u *S3Uploader) Upload(ctx context.Context, key string, content []byte, contentType string) (string, error) {
	_, err := u.client.PutObject(ctx, u.bucket, key, bytes.NewReader(content), int64(len(content)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", fmt.Errorf("storage: put s3://%s/%s: %w", u.bucket, key, err)
	}
	return fmt.Sprintf("s3://%s/%s", u.bucket, key), nil
}
