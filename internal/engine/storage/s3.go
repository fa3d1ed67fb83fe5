package storage

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// S3Config holds the connection settings of an S3-compatible store.
type S3Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Region    string
}

// S3ConfigFromEnv reads MINIO_ENDPOINT, MINIO_ACCESS_KEY, MINIO_SECRET_KEY and
// MINIO_USE_SSL.
func S3ConfigFromEnv() (S3Config, error) {
	cfg := S3Config{
		Endpoint:  os.Getenv("MINIO_ENDPOINT"),
		AccessKey: os.Getenv("MINIO_ACCESS_KEY"),
		SecretKey: os.Getenv("MINIO_SECRET_KEY"),
		UseSSL:    os.Getenv("MINIO_USE_SSL") == "true",
		Region:    os.Getenv("MINIO_REGION"),
	}
	if cfg.Endpoint == "" || cfg.AccessKey == "" || cfg.SecretKey == "" {
		return cfg, fmt.Errorf("missing one or more required environment variables: MINIO_ENDPOINT, MINIO_ACCESS_KEY, MINIO_SECRET_KEY")
	}
	return cfg, nil
}

// S3Publisher uploads produced files to a bucket.
type S3Publisher struct {
	client *minio.Client
	bucket string
	region string
}

func NewS3Publisher(cfg S3Config, bucket string) (*S3Publisher, error) {
	if bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("creating minio client: %w", err)
	}
	return &S3Publisher{client: client, bucket: bucket, region: cfg.Region}, nil
}

// EnsureBucket creates the bucket when it does not exist.
func (p *S3Publisher) EnsureBucket(ctx context.Context) error {
	exists, err := p.client.BucketExists(ctx, p.bucket)
	if err != nil {
		return fmt.Errorf("checking bucket %s: %w", p.bucket, err)
	}
	if exists {
		return nil
	}
	if err := p.client.MakeBucket(ctx, p.bucket, minio.MakeBucketOptions{Region: p.region}); err != nil {
		return fmt.Errorf("creating bucket %s: %w", p.bucket, err)
	}
	return nil
}

// Publish uploads the file at path under prefix and returns the object key.
func (p *S3Publisher) Publish(ctx context.Context, path, prefix string) (string, error) {
	key := ObjectKey(prefix, path)
	_, err := p.client.FPutObject(ctx, p.bucket, key, path, minio.PutObjectOptions{
		ContentType: contentType(path),
	})
	if err != nil {
		return "", fmt.Errorf("uploading %s: %w", path, err)
	}
	return key, nil
}

// ObjectKey joins prefix and the base name of path with forward slashes.
func ObjectKey(prefix, path string) string {
	base := filepath.Base(path)
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return base
	}
	return prefix + "/" + base
}

func contentType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return "text/csv"
	case ".geojson":
		return "application/geo+json"
	}
	if t := mime.TypeByExtension(filepath.Ext(path)); t != "" {
		return t
	}
	return "application/octet-stream"
}
