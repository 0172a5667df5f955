package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"assetstore/internal/models"
)

type GCS struct {
	client  *storage.Client
	bucket  string
	baseURL string
}

func NewGCS(ctx context.Context, cfg models.StorageConfig) (*GCS, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create gcs client: %w", err)
	}
	baseURL := cfg.PublicBaseURL
	if baseURL == "" {
		baseURL = "https://storage.googleapis.com/" + cfg.Bucket
	}
	return &GCS{client: client, bucket: cfg.Bucket, baseURL: baseURL}, nil
}

func (g *GCS) Put(ctx context.Context, key string, r io.Reader, _ int64, contentType string) error {
	w := g.client.Bucket(g.bucket).Object(key).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return fmt.Errorf("write gcs object %s: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close gcs object %s: %w", key, err)
	}
	return nil
}

func (g *GCS) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	rc, err := g.client.Bucket(g.bucket).Object(key).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read gcs object %s: %w", key, err)
	}
	return rc, nil
}

func (g *GCS) Delete(ctx context.Context, key string) error {
	if err := g.client.Bucket(g.bucket).Object(key).Delete(ctx); err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return ErrNotFound
		}
		return fmt.Errorf("delete gcs object %s: %w", key, err)
	}
	return nil
}

func (g *GCS) URL(key string) string {
	return joinURL(g.baseURL, key)
}
