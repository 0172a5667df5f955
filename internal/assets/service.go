// Package assets orchestrates image uploads and metadata changes over the
// metadata store, the object store and the deletion queue.
package assets

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"slices"
	"strings"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"assetstore/internal/models"
	"assetstore/internal/objectstore"
)

var (
	ErrClientIDRequired = errors.New("client_id is required")
	ErrUnsupportedType  = errors.New("unsupported file type")
	ErrInvalidImage     = errors.New("file is not a valid image")
	ErrTooLarge         = errors.New("file exceeds the upload size limit")
)

const keyPrefix = "images/"

type MetadataStore interface {
	CreateAsset(ctx context.Context, a *models.Asset) error
	GetAsset(ctx context.Context, id int64) (*models.Asset, error)
	ListAssets(ctx context.Context, q models.ListQuery) ([]models.Asset, int64, error)
	UpdateAsset(ctx context.Context, id int64, u models.AssetUpdate) (*models.Asset, error)
	DeleteAsset(ctx context.Context, id int64) (models.DeletionRequest, error)
	DeleteAssets(ctx context.Context, ids []int64) ([]models.DeletionRequest, error)
	DeleteAssetsByClient(ctx context.Context, clientID string) ([]models.DeletionRequest, error)
	AssetStats(ctx context.Context) (models.AssetStats, error)
	ListClients(ctx context.Context) ([]models.ClientStat, error)
}

// Enqueuer hands storage keys of removed records to the deletion queue.
type Enqueuer interface {
	Enqueue(ctx context.Context, reqs []models.DeletionRequest) int
}

type ClientValidator interface {
	Validate(ctx context.Context, clientID string) error
}

type Service struct {
	meta    MetadataStore
	objects objectstore.Store
	queue   Enqueuer
	clients ClientValidator
	cfg     models.UploadConfig
}

func NewService(meta MetadataStore, objects objectstore.Store, queue Enqueuer, clients ClientValidator, cfg models.UploadConfig) *Service {
	return &Service{meta: meta, objects: objects, queue: queue, clients: clients, cfg: cfg}
}

type UploadInput struct {
	Filename    string
	ClientID    string
	Name        string
	Description string
	Body        io.Reader
}

// DeleteResult reports how many records were removed and how many of their
// objects were queued for cleanup.
type DeleteResult struct {
	Deleted          int `json:"deleted"`
	QueuedForCleanup int `json:"queued_for_cleanup"`
}

func (s *Service) Upload(ctx context.Context, in UploadInput) (*models.Asset, error) {
	const op = "assets.Upload"

	clientID := strings.TrimSpace(in.ClientID)
	if clientID == "" {
		return nil, ErrClientIDRequired
	}
	if err := s.validateClient(ctx, clientID); err != nil {
		return nil, err
	}

	ext := strings.ToLower(filepath.Ext(in.Filename))
	if !slices.Contains(s.cfg.AllowedExtensions, ext) {
		return nil, fmt.Errorf("%w: %q, allowed: %s", ErrUnsupportedType, ext, strings.Join(s.cfg.AllowedExtensions, ", "))
	}

	limit := s.cfg.MaxUploadBytes()
	data, err := io.ReadAll(io.LimitReader(in.Body, limit+1))
	if err != nil {
		return nil, fmt.Errorf("%s: read upload: %w", op, err)
	}
	if int64(len(data)) > limit {
		return nil, ErrTooLarge
	}

	img, err := processImage(data, ext, s.cfg.CompressAboveBytes(), s.cfg.JPEGQuality)
	if err != nil {
		return nil, err
	}

	filename := uuid.NewString() + ext
	key := keyPrefix + filename
	contentType := contentTypeFor(ext)

	if err := s.objects.Put(ctx, key, bytes.NewReader(img.data), int64(len(img.data)), contentType); err != nil {
		return nil, fmt.Errorf("%s: store object: %w", op, err)
	}

	asset := &models.Asset{
		Filename:         filename,
		StoragePath:      key,
		OriginalFilename: filepath.Base(in.Filename),
		ClientID:         clientID,
		Name:             strings.TrimSpace(in.Name),
		Description:      strings.TrimSpace(in.Description),
		Size:             int64(len(img.data)),
		ContentType:      contentType,
		Width:            img.width,
		Height:           img.height,
		Compressed:       img.compressed,
	}
	if err := s.meta.CreateAsset(ctx, asset); err != nil {
		// the object has no record now; let the worker remove it
		s.queue.Enqueue(ctx, []models.DeletionRequest{{StoragePath: key, ClientID: clientID}})
		return nil, fmt.Errorf("%s: save metadata: %w", op, err)
	}
	asset.URL = s.objects.URL(key)

	log.WithFields(log.Fields{
		"asset_id":   asset.ID,
		"client_id":  clientID,
		"size":       asset.Size,
		"compressed": asset.Compressed,
	}).Info("image uploaded")
	return asset, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*models.Asset, error) {
	asset, err := s.meta.GetAsset(ctx, id)
	if err != nil {
		return nil, err
	}
	asset.URL = s.objects.URL(asset.StoragePath)
	return asset, nil
}

// Open returns the stored bytes of an asset. The caller closes the reader.
func (s *Service) Open(ctx context.Context, id int64) (io.ReadCloser, *models.Asset, error) {
	asset, err := s.meta.GetAsset(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if asset.StoragePath == "" {
		return nil, nil, objectstore.ErrNotFound
	}
	rc, err := s.objects.Get(ctx, asset.StoragePath)
	if err != nil {
		return nil, nil, err
	}
	return rc, asset, nil
}

func (s *Service) List(ctx context.Context, q models.ListQuery) (models.AssetPage, error) {
	q.ClientID = strings.TrimSpace(q.ClientID)
	q.Search = strings.TrimSpace(q.Search)
	q = q.Normalize()

	assets, total, err := s.meta.ListAssets(ctx, q)
	if err != nil {
		return models.AssetPage{}, err
	}
	for i := range assets {
		assets[i].URL = s.objects.URL(assets[i].StoragePath)
	}
	return models.NewAssetPage(assets, q, total), nil
}

func (s *Service) Update(ctx context.Context, id int64, u models.AssetUpdate) (*models.Asset, error) {
	if u.ClientID != nil {
		clientID := strings.TrimSpace(*u.ClientID)
		if clientID == "" {
			return nil, ErrClientIDRequired
		}
		if err := s.validateClient(ctx, clientID); err != nil {
			return nil, err
		}
		u.ClientID = &clientID
	}
	asset, err := s.meta.UpdateAsset(ctx, id, u)
	if err != nil {
		return nil, err
	}
	asset.URL = s.objects.URL(asset.StoragePath)
	return asset, nil
}

// Delete removes the record first and queues its object afterwards, so a
// failed enqueue can only leave an orphaned object behind.
func (s *Service) Delete(ctx context.Context, id int64) (DeleteResult, error) {
	req, err := s.meta.DeleteAsset(ctx, id)
	if err != nil {
		return DeleteResult{}, err
	}
	queued := s.queue.Enqueue(ctx, []models.DeletionRequest{req})
	return DeleteResult{Deleted: 1, QueuedForCleanup: queued}, nil
}

func (s *Service) BulkDelete(ctx context.Context, ids []int64) (DeleteResult, error) {
	reqs, err := s.meta.DeleteAssets(ctx, ids)
	if err != nil {
		return DeleteResult{}, err
	}
	return s.enqueueRemoved(ctx, reqs), nil
}

func (s *Service) DeleteByClient(ctx context.Context, clientID string) (DeleteResult, error) {
	clientID = strings.TrimSpace(clientID)
	if clientID == "" {
		return DeleteResult{}, ErrClientIDRequired
	}
	reqs, err := s.meta.DeleteAssetsByClient(ctx, clientID)
	if err != nil {
		return DeleteResult{}, err
	}
	res := s.enqueueRemoved(ctx, reqs)
	log.WithFields(log.Fields{
		"client_id": clientID,
		"deleted":   res.Deleted,
		"queued":    res.QueuedForCleanup,
	}).Info("deleted client images")
	return res, nil
}

func (s *Service) enqueueRemoved(ctx context.Context, reqs []models.DeletionRequest) DeleteResult {
	res := DeleteResult{Deleted: len(reqs)}
	if len(reqs) > 0 {
		res.QueuedForCleanup = s.queue.Enqueue(ctx, reqs)
	}
	return res
}

func (s *Service) Stats(ctx context.Context) (models.AssetStats, error) {
	return s.meta.AssetStats(ctx)
}

func (s *Service) Clients(ctx context.Context) ([]models.ClientStat, error) {
	clients, err := s.meta.ListClients(ctx)
	if err != nil {
		return nil, err
	}
	if clients == nil {
		clients = []models.ClientStat{}
	}
	return clients, nil
}

func (s *Service) validateClient(ctx context.Context, clientID string) error {
	if s.clients == nil {
		return nil
	}
	return s.clients.Validate(ctx, clientID)
}
