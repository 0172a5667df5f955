package objectstore

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"assetstore/internal/models"
)

type Minio struct {
	client  *minio.Client
	bucket  string
	baseURL string
}

func NewMinio(cfg models.StorageConfig) (*Minio, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	return &Minio{client: client, bucket: cfg.Bucket, baseURL: cfg.PublicBaseURL}, nil
}

func minioIsNotFound(err error) bool {
	resp := minio.ToErrorResponse(err)
	return resp.Code == "NoSuchKey" || resp.StatusCode == http.StatusNotFound
}

func (m *Minio) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	_, err := m.client.PutObject(ctx, m.bucket, key, r, size, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("put minio object %s: %w", key, err)
	}
	return nil
}

func (m *Minio) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	// GetObject is lazy; Stat surfaces a missing key before the caller reads.
	obj, err := m.client.GetObject(ctx, m.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get minio object %s: %w", key, err)
	}
	if _, err := obj.Stat(); err != nil {
		_ = obj.Close()
		if minioIsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("stat minio object %s: %w", key, err)
	}
	return obj, nil
}

func (m *Minio) Delete(ctx context.Context, key string) error {
	if err := m.client.RemoveObject(ctx, m.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		if minioIsNotFound(err) {
			return ErrNotFound
		}
		return fmt.Errorf("remove minio object %s: %w", key, err)
	}
	return nil
}

func (m *Minio) URL(key string) string {
	return joinURL(m.baseURL, key)
}
