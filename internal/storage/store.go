// Package storage moves images between the local workspace and object
// storage buckets. Google Cloud Storage is reached through its S3
// interoperability endpoint with HMAC keys; MinIO works unchanged.
package storage

import (
	"context"
	"fmt"
	"io"
	"strings"

	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Object is one listed bucket entry. A Key ending in "/" is a common
// prefix returned by a non-recursive listing.
type Object struct {
	Key  string
	Size int64
}

// ObjectStore is the subset of bucket operations the pipeline needs.
type ObjectStore interface {
	List(ctx context.Context, bucket, prefix string, recursive bool) ([]Object, error)
	Download(ctx context.Context, bucket, key, destPath string) error
	Upload(ctx context.Context, bucket, key, srcPath string) error
	Put(ctx context.Context, bucket, key string, r io.Reader, size int64, contentType string) error
}

type StorageConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Region    string
}

// MinioStore implements ObjectStore with minio-go.
type MinioStore struct {
	client *miniogo.Client
}

func NewMinioStore(cfg StorageConfig) (*MinioStore, error) {
	client, err := miniogo.New(cfg.Endpoint, &miniogo.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	return &MinioStore{client: client}, nil
}

func (s *MinioStore) List(ctx context.Context, bucket, prefix string, recursive bool) ([]Object, error) {
	var out []Object
	for info := range s.client.ListObjects(ctx, bucket, miniogo.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: recursive,
	}) {
		if info.Err != nil {
			return nil, fmt.Errorf("list %s/%s: %w", bucket, prefix, info.Err)
		}
		out = append(out, Object{Key: info.Key, Size: info.Size})
	}
	return out, nil
}

func (s *MinioStore) Download(ctx context.Context, bucket, key, destPath string) error {
	if err := s.client.FGetObject(ctx, bucket, key, destPath, miniogo.GetObjectOptions{}); err != nil {
		return fmt.Errorf("download %s/%s: %w", bucket, key, err)
	}
	return nil
}

func (s *MinioStore) Upload(ctx context.Context, bucket, key, srcPath string) error {
	_, err := s.client.FPutObject(ctx, bucket, key, srcPath, miniogo.PutObjectOptions{
		ContentType: contentType(key),
	})
	if err != nil {
		return fmt.Errorf("upload %s/%s: %w", bucket, key, err)
	}
	return nil
}

func (s *MinioStore) Put(ctx context.Context, bucket, key string, r io.Reader, size int64, ct string) error {
	_, err := s.client.PutObject(ctx, bucket, key, r, size, miniogo.PutObjectOptions{ContentType: ct})
	if err != nil {
		return fmt.Errorf("put %s/%s: %w", bucket, key, err)
	}
	return nil
}

func contentType(key string) string {
	lower := strings.ToLower(key)
	switch {
	case strings.HasSuffix(lower, ".jpg"), strings.HasSuffix(lower, ".jpeg"):
		return "image/jpeg"
	case strings.HasSuffix(lower, ".png"):
		return "image/png"
	case strings.HasSuffix(lower, ".txt"):
		return "text/plain"
	}
	return "application/octet-stream"
}
