package assets

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"io"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"assetstore/internal/clientid"
	"assetstore/internal/models"
	"assetstore/internal/objectstore"
)

type memMeta struct {
	mu        sync.Mutex
	nextID    int64
	assets    map[int64]models.Asset
	createErr error
}

func newMemMeta() *memMeta {
	return &memMeta{assets: map[int64]models.Asset{}}
}

func (m *memMeta) CreateAsset(_ context.Context, a *models.Asset) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	m.nextID++
	a.ID = m.nextID
	a.UploadedAt = time.Now()
	m.assets[a.ID] = *a
	return nil
}

func (m *memMeta) GetAsset(_ context.Context, id int64) (*models.Asset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.assets[id]
	if !ok {
		return nil, models.ErrAssetNotFound
	}
	return &a, nil
}

func (m *memMeta) ListAssets(_ context.Context, q models.ListQuery) ([]models.Asset, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Asset
	for _, a := range m.assets {
		out = append(out, a)
	}
	return out, int64(len(out)), nil
}

func (m *memMeta) UpdateAsset(_ context.Context, id int64, u models.AssetUpdate) (*models.Asset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.assets[id]
	if !ok {
		return nil, models.ErrAssetNotFound
	}
	if u.Name != nil {
		a.Name = *u.Name
	}
	if u.Description != nil {
		a.Description = *u.Description
	}
	if u.ClientID != nil {
		a.ClientID = *u.ClientID
	}
	m.assets[id] = a
	return &a, nil
}

func (m *memMeta) DeleteAsset(_ context.Context, id int64) (models.DeletionRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.assets[id]
	if !ok {
		return models.DeletionRequest{}, models.ErrAssetNotFound
	}
	delete(m.assets, id)
	return models.DeletionRequest{StoragePath: a.StoragePath, ClientID: a.ClientID}, nil
}

func (m *memMeta) DeleteAssets(_ context.Context, ids []int64) ([]models.DeletionRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var reqs []models.DeletionRequest
	for _, id := range ids {
		if a, ok := m.assets[id]; ok {
			delete(m.assets, id)
			reqs = append(reqs, models.DeletionRequest{StoragePath: a.StoragePath, ClientID: a.ClientID})
		}
	}
	return reqs, nil
}

func (m *memMeta) DeleteAssetsByClient(_ context.Context, clientID string) ([]models.DeletionRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var reqs []models.DeletionRequest
	for id, a := range m.assets {
		if a.ClientID == clientID {
			delete(m.assets, id)
			reqs = append(reqs, models.DeletionRequest{StoragePath: a.StoragePath, ClientID: a.ClientID})
		}
	}
	return reqs, nil
}

func (m *memMeta) AssetStats(context.Context) (models.AssetStats, error) {
	return models.AssetStats{}, nil
}

func (m *memMeta) ListClients(context.Context) ([]models.ClientStat, error) {
	return nil, nil
}

type recordingQueue struct {
	calls [][]models.DeletionRequest
}

func (q *recordingQueue) Enqueue(_ context.Context, reqs []models.DeletionRequest) int {
	q.calls = append(q.calls, reqs)
	n := 0
	for _, r := range reqs {
		if r.StoragePath != "" {
			n++
		}
	}
	return n
}

type denyAll struct{}

func (denyAll) Validate(context.Context, string) error { return clientid.ErrNotRegistered }

func testUploadConfig() models.UploadConfig {
	return models.UploadConfig{
		MaxUploadMB:       5,
		CompressAboveMB:   1,
		JPEGQuality:       80,
		AllowedExtensions: []string{".jpg", ".jpeg", ".png", ".gif", ".webp", ".bmp"},
	}
}

func newTestService(t *testing.T) (*Service, *memMeta, *objectstore.Local, *recordingQueue) {
	t.Helper()
	store, err := objectstore.NewLocal(t.TempDir(), "/files")
	require.NoError(t, err)
	meta := newMemMeta()
	q := &recordingQueue{}
	return NewService(meta, store, q, nil, testUploadConfig()), meta, store, q
}

func encodeImage(t *testing.T, w, h int, format imaging.Format, noisy bool) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	rng := rand.New(rand.NewSource(1))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := color.NRGBA{R: uint8(x), G: uint8(y), B: 128, A: 255}
			if noisy {
				c = color.NRGBA{R: uint8(rng.Intn(256)), G: uint8(rng.Intn(256)), B: uint8(rng.Intn(256)), A: 255}
			}
			img.SetNRGBA(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, img, format, imaging.JPEGQuality(100)))
	return buf.Bytes()
}

func TestUploadStoresObjectAndMetadata(t *testing.T) {
	svc, meta, store, _ := newTestService(t)
	data := encodeImage(t, 40, 30, imaging.PNG, false)

	asset, err := svc.Upload(context.Background(), UploadInput{
		Filename: "Holiday.PNG",
		ClientID: " acme ",
		Name:     "Holiday",
		Body:     bytes.NewReader(data),
	})
	require.NoError(t, err)

	assert.Equal(t, "acme", asset.ClientID)
	assert.Equal(t, "Holiday.PNG", asset.OriginalFilename)
	assert.Equal(t, 40, asset.Width)
	assert.Equal(t, 30, asset.Height)
	assert.Equal(t, "image/png", asset.ContentType)
	assert.False(t, asset.Compressed)
	assert.Regexp(t, `^images/[0-9a-f-]{36}\.png$`, asset.StoragePath)
	assert.Equal(t, "/files/"+asset.StoragePath, asset.URL)
	assert.Len(t, meta.assets, 1)

	rc, err := store.Get(context.Background(), asset.StoragePath)
	require.NoError(t, err)
	defer rc.Close()
	stored, _ := io.ReadAll(rc)
	assert.Equal(t, data, stored)
}

func TestUploadRejections(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	png := encodeImage(t, 4, 4, imaging.PNG, false)

	tests := []struct {
		name    string
		in      UploadInput
		wantErr error
	}{
		{"missing client", UploadInput{Filename: "a.png", Body: bytes.NewReader(png)}, ErrClientIDRequired},
		{"bad extension", UploadInput{Filename: "a.exe", ClientID: "c", Body: bytes.NewReader(png)}, ErrUnsupportedType},
		{"not an image", UploadInput{Filename: "a.png", ClientID: "c", Body: bytes.NewReader([]byte("hello"))}, ErrInvalidImage},
		{"too large", UploadInput{Filename: "a.png", ClientID: "c", Body: bytes.NewReader(make([]byte, 6<<20))}, ErrTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Upload(context.Background(), tt.in)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestUploadRejectsUnregisteredClient(t *testing.T) {
	store, err := objectstore.NewLocal(t.TempDir(), "")
	require.NoError(t, err)
	svc := NewService(newMemMeta(), store, &recordingQueue{}, denyAll{}, testUploadConfig())

	_, err = svc.Upload(context.Background(), UploadInput{
		Filename: "a.png",
		ClientID: "intruder",
		Body:     bytes.NewReader(encodeImage(t, 4, 4, imaging.PNG, false)),
	})
	assert.ErrorIs(t, err, clientid.ErrNotRegistered)
}

func TestUploadQueuesObjectWhenMetadataFails(t *testing.T) {
	svc, meta, _, q := newTestService(t)
	meta.createErr = errors.New("db down")

	_, err := svc.Upload(context.Background(), UploadInput{
		Filename: "a.jpg",
		ClientID: "acme",
		Body:     bytes.NewReader(encodeImage(t, 8, 8, imaging.JPEG, false)),
	})
	require.Error(t, err)
	require.Len(t, q.calls, 1)
	require.Len(t, q.calls[0], 1)
	assert.Regexp(t, `^images/.+\.jpg$`, q.calls[0][0].StoragePath)
	assert.Equal(t, "acme", q.calls[0][0].ClientID)
}

func TestUploadRecompressesLargeJPEG(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	svc.cfg.CompressAboveMB = 0.01
	data := encodeImage(t, 300, 300, imaging.JPEG, true)
	require.Greater(t, int64(len(data)), svc.cfg.CompressAboveBytes())

	asset, err := svc.Upload(context.Background(), UploadInput{
		Filename: "noise.jpg",
		ClientID: "acme",
		Body:     bytes.NewReader(data),
	})
	require.NoError(t, err)
	assert.True(t, asset.Compressed)
	assert.Less(t, asset.Size, int64(len(data)))
}

func TestDeleteQueuesStoragePath(t *testing.T) {
	svc, meta, _, q := newTestService(t)
	meta.assets[7] = models.Asset{ID: 7, StoragePath: "images/x.jpg", ClientID: "acme"}

	res, err := svc.Delete(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, DeleteResult{Deleted: 1, QueuedForCleanup: 1}, res)
	assert.Equal(t, [][]models.DeletionRequest{{{StoragePath: "images/x.jpg", ClientID: "acme"}}}, q.calls)

	_, err = svc.Delete(context.Background(), 7)
	assert.ErrorIs(t, err, models.ErrAssetNotFound)
}

func TestDeleteWithoutStoragePathQueuesNothing(t *testing.T) {
	svc, meta, _, _ := newTestService(t)
	meta.assets[1] = models.Asset{ID: 1, ClientID: "acme"}

	res, err := svc.Delete(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, DeleteResult{Deleted: 1}, res)
}

func TestDeleteByClientEnqueuesOnce(t *testing.T) {
	svc, meta, _, q := newTestService(t)
	for i := int64(1); i <= 5; i++ {
		meta.assets[i] = models.Asset{ID: i, StoragePath: "images/k.jpg", ClientID: "acme"}
	}
	meta.assets[6] = models.Asset{ID: 6, StoragePath: "images/other.jpg", ClientID: "other"}

	res, err := svc.DeleteByClient(context.Background(), "acme")
	require.NoError(t, err)
	assert.Equal(t, DeleteResult{Deleted: 5, QueuedForCleanup: 5}, res)
	assert.Len(t, q.calls, 1)
	assert.Len(t, meta.assets, 1)

	_, err = svc.DeleteByClient(context.Background(), " ")
	assert.ErrorIs(t, err, ErrClientIDRequired)
}

func TestBulkDeleteIgnoresUnknownIDs(t *testing.T) {
	svc, meta, _, q := newTestService(t)
	meta.assets[1] = models.Asset{ID: 1, StoragePath: "images/1.jpg"}

	res, err := svc.BulkDelete(context.Background(), []int64{1, 99})
	require.NoError(t, err)
	assert.Equal(t, DeleteResult{Deleted: 1, QueuedForCleanup: 1}, res)

	res, err = svc.BulkDelete(context.Background(), []int64{99})
	require.NoError(t, err)
	assert.Equal(t, DeleteResult{}, res)
	assert.Len(t, q.calls, 1)
}

func TestUpdateValidatesClientID(t *testing.T) {
	svc, meta, _, _ := newTestService(t)
	meta.assets[1] = models.Asset{ID: 1, ClientID: "acme", Name: "old"}

	name := "new"
	asset, err := svc.Update(context.Background(), 1, models.AssetUpdate{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "new", asset.Name)

	blank := "  "
	_, err = svc.Update(context.Background(), 1, models.AssetUpdate{ClientID: &blank})
	assert.ErrorIs(t, err, ErrClientIDRequired)
}

func TestOpenReturnsStoredBytes(t *testing.T) {
	svc, meta, store, _ := newTestService(t)
	require.NoError(t, store.Put(context.Background(), "images/a.png", bytes.NewReader([]byte("abc")), 3, "image/png"))
	meta.assets[1] = models.Asset{ID: 1, StoragePath: "images/a.png"}
	meta.assets[2] = models.Asset{ID: 2}

	rc, asset, err := svc.Open(context.Background(), 1)
	require.NoError(t, err)
	defer rc.Close()
	b, _ := io.ReadAll(rc)
	assert.Equal(t, "abc", string(b))
	assert.Equal(t, int64(1), asset.ID)

	_, _, err = svc.Open(context.Background(), 2)
	assert.ErrorIs(t, err, objectstore.ErrNotFound)
}
