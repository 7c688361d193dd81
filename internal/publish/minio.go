package publish

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Region    string
	UseSSL    bool
	Bucket    string
	// CreateBucket makes the bucket when it does not exist yet.
	CreateBucket bool
}

func (c MinIOConfig) Validate() error {
	if strings.TrimSpace(c.Endpoint) == "" {
		return errors.New("endpoint is required")
	}
	if strings.Contains(c.Endpoint, "://") {
		return fmt.Errorf("endpoint must not include scheme: %q", c.Endpoint)
	}
	if strings.TrimSpace(c.Bucket) == "" {
		return errors.New("bucket is required")
	}
	return nil
}

type minioAPI interface {
	BucketExists(ctx context.Context, bucket string) (bool, error)
	MakeBucket(ctx context.Context, bucket string, opts minio.MakeBucketOptions) error
	FPutObject(ctx context.Context, bucket, key, filePath string, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

type MinIO struct {
	cfg    MinIOConfig
	client minioAPI
}

func NewMinIO(cfg MinIOConfig) (*MinIO, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, err
	}
	return &MinIO{cfg: cfg, client: client}, nil
}

func (m *MinIO) Backend() string {
	return "minio"
}

// Prepare checks, and optionally creates, the bucket.
func (m *MinIO) Prepare(ctx context.Context) error {
	exists, err := m.client.BucketExists(ctx, m.cfg.Bucket)
	if err != nil {
		return fmt.Errorf("bucket exists: %w", err)
	}
	if exists {
		return nil
	}
	if !m.cfg.CreateBucket {
		return fmt.Errorf("bucket missing: %s", m.cfg.Bucket)
	}
	return m.client.MakeBucket(ctx, m.cfg.Bucket, minio.MakeBucketOptions{Region: m.cfg.Region})
}

func (m *MinIO) Upload(ctx context.Context, key, filename, contentType string) error {
	_, err := m.client.FPutObject(ctx, m.cfg.Bucket, key, filename, minio.PutObjectOptions{ContentType: contentType})
	return err
}
