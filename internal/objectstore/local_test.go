package objectstore

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"assetstore/internal/models"
)

func TestLocalPutGetDelete(t *testing.T) {
	ctx := context.Background()
	st, err := NewLocal(t.TempDir(), "")
	require.NoError(t, err)

	require.NoError(t, st.Put(ctx, "images/a.jpg", strings.NewReader("jpeg bytes"), 10, "image/jpeg"))

	rc, err := st.Get(ctx, "images/a.jpg")
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, rc.Close())
	require.NoError(t, err)
	assert.Equal(t, "jpeg bytes", string(data))

	require.NoError(t, st.Delete(ctx, "images/a.jpg"))
	_, err = os.Stat(filepath.Join(st.Root(), "images", "a.jpg"))
	assert.True(t, os.IsNotExist(err))
}

func TestLocalDeleteMissingReportsNotFound(t *testing.T) {
	st, err := NewLocal(t.TempDir(), "")
	require.NoError(t, err)

	err = st.Delete(context.Background(), "images/missing.jpg")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = st.Get(context.Background(), "images/missing.jpg")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLocalURL(t *testing.T) {
	st, err := NewLocal(t.TempDir(), "https://cdn.example.com/")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/images/a.jpg", st.URL("images/a.jpg"))

	st, err = NewLocal(t.TempDir(), "")
	require.NoError(t, err)
	assert.Equal(t, "/files/images/a.jpg", st.URL("images/a.jpg"))
}

func TestCleanKey(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "images/a.jpg", want: "images/a.jpg"},
		{in: "/images//a.jpg", want: "images/a.jpg"},
		{in: "images\\a.jpg", want: "images/a.jpg"},
		{in: "../etc/passwd", wantErr: true},
		{in: "images/../../x", wantErr: true},
		{in: "", wantErr: true},
		{in: "/", wantErr: true},
	}
	for _, tt := range tests {
		got, err := CleanKey(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}
}

func TestNewRejectsUnknownBackend(t *testing.T) {
	cfg := &models.Config{StoragePath: t.TempDir()}
	cfg.Storage.Backend = "ftp"
	_, err := New(context.Background(), cfg)
	assert.Error(t, err)

	cfg.Storage.Backend = "local"
	st, err := New(context.Background(), cfg)
	require.NoError(t, err)
	assert.IsType(t, &Local{}, st)
}

type deadlineStore struct {
	Store
	sawDeadline bool
}

func (d *deadlineStore) Delete(ctx context.Context, _ string) error {
	_, d.sawDeadline = ctx.Deadline()
	return nil
}

func TestWithTimeoutBoundsDelete(t *testing.T) {
	inner := &deadlineStore{}
	st := WithTimeout(inner, time.Second)
	require.NoError(t, st.Delete(context.Background(), "a.jpg"))
	assert.True(t, inner.sawDeadline)

	assert.Same(t, Store(inner), WithTimeout(inner, 0))
}
