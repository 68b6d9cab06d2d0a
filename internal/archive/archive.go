// Package archive uploads rendered reports to S3 compatible object storage.
package archive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ErrNotConfigured indicates the archive endpoint or credentials are missing.
var ErrNotConfigured = errors.New("report archive not configured")

// Config describes the bucket. A non-empty Region skips the bucket location
// lookup.
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
}

// IsConfigured returns true if uploads can be attempted
func (c Config) IsConfigured() bool {
	return c.Endpoint != "" && c.AccessKey != "" && c.SecretKey != "" && c.Bucket != ""
}

type Uploader struct {
	client *minio.Client
	bucket string
}

func New(cfg Config) (*Uploader, error) {
	if !cfg.IsConfigured() {
		return nil, ErrNotConfigured
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create s3 client: %w", err)
	}
	return &Uploader{client: client, bucket: cfg.Bucket}, nil
}

// EnsureBucket creates the bucket when it does not exist yet.
func (u *Uploader) EnsureBucket(ctx context.Context) error {
	exists, err := u.client.BucketExists(ctx, u.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", u.bucket, err)
	}
	if exists {
		return nil
	}
	if err := u.client.MakeBucket(ctx, u.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("create bucket %s: %w", u.bucket, err)
	}
	return nil
}

// Upload stores data under key and returns the s3:// location.
func (u *Uploader) Upload(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	if err := u.EnsureBucket(ctx); err != nil {
		return "", err
	}
	info, err := u.client.PutObject(ctx, u.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}
	return fmt.Sprintf("s3://%s/%s", info.Bucket, info.Key), nil
}

// ObjectKey builds "<consultation>/<run>/<filename>".
func ObjectKey(consultation, runID, filename string) string {
	clean := func(part, fallback string) string {
		part = strings.Trim(strings.ReplaceAll(strings.TrimSpace(part), "/", "-"), ".")
		if part == "" {
			return fallback
		}
		return part
	}
	return path.Join(clean(consultation, "consultation"), clean(runID, "run"), clean(filename, "report"))
}
