package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"assetstore/internal/models"
)

// ErrNotFound is returned when the requested object does not exist.
// Delete callers treat it as success: the object is absent either way.
var ErrNotFound = errors.New("object not found")

// Store is the object-storage backend holding image bytes.
type Store interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	// Delete removes the object at key. It returns ErrNotFound if the backend
	// reports the object as already absent.
	Delete(ctx context.Context, key string) error
	URL(key string) string
}

func New(ctx context.Context, cfg *models.Config) (Store, error) {
	const op = "objectstore.New"

	var (
		st  Store
		err error
	)
	switch cfg.Storage.Backend {
	case "", "local":
		st, err = NewLocal(cfg.StoragePath, cfg.Storage.PublicBaseURL)
	case "s3":
		st, err = NewS3(ctx, cfg.Storage)
		st = WithTimeout(st, cfg.Storage.RequestTimeout)
	case "minio":
		st, err = NewMinio(cfg.Storage)
		st = WithTimeout(st, cfg.Storage.RequestTimeout)
	case "gcs":
		st, err = NewGCS(ctx, cfg.Storage)
		st = WithTimeout(st, cfg.Storage.RequestTimeout)
	default:
		err = fmt.Errorf("unsupported backend %q", cfg.Storage.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return st, nil
}

// CleanKey normalizes an object key and rejects keys escaping the root.
func CleanKey(key string) (string, error) {
	key = strings.TrimSpace(strings.ReplaceAll(key, "\\", "/"))
	if key == "" {
		return "", errors.New("empty object key")
	}
	cleaned := path.Clean("/" + key)[1:]
	if cleaned == "" || cleaned == "." {
		return "", fmt.Errorf("invalid object key %q", key)
	}
	for _, part := range strings.Split(key, "/") {
		if part == ".." {
			return "", fmt.Errorf("invalid object key %q", key)
		}
	}
	return cleaned, nil
}

func joinURL(base, key string) string {
	if base == "" {
		return ""
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(key, "/")
}

type timeoutStore struct {
	Store
	timeout time.Duration
}

// WithTimeout bounds Put and Delete on st. Get is left unbounded because the
// returned reader outlives the call.
func WithTimeout(st Store, d time.Duration) Store {
	if st == nil || d <= 0 {
		return st
	}
	return &timeoutStore{Store: st, timeout: d}
}

func (t *timeoutStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.Store.Put(ctx, key, r, size, contentType)
}

func (t *timeoutStore) Delete(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.Store.Delete(ctx, key)
}
