package storage

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time { return c.t }

func newTestStore() (*MemoryStore, *fakeClock, http.Handler) {
	clock := &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	store := NewMemoryStore("http://objects.test/_objects", []byte("test-secret"), clock.Now)
	return store, clock, http.StripPrefix("/_objects", store)
}

func do(h http.Handler, method, target, contentType, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestMemoryStore_RoundTrip(t *testing.T) {
	store, _, h := newTestStore()
	ctx := context.Background()
	key := "uploads/1700000000000_my photo.png"

	putURL, err := store.PresignUpload(ctx, key, "image/png", time.Minute)
	require.NoError(t, err)
	assert.Contains(t, putURL, "my%20photo.png")

	rec := do(h, http.MethodPut, putURL, "image/png", "png-bytes")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	getURL, err := store.PresignDownload(ctx, key, 5*time.Minute)
	require.NoError(t, err)

	rec = do(h, http.MethodGet, getURL, "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "png-bytes", rec.Body.String())
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
}

func TestMemoryStore_UploadRejections(t *testing.T) {
	ctx := context.Background()
	key := "uploads/1_a.png"

	t.Run("content type mismatch", func(t *testing.T) {
		store, _, h := newTestStore()
		u, err := store.PresignUpload(ctx, key, "image/png", time.Minute)
		require.NoError(t, err)

		rec := do(h, http.MethodPut, u, "image/jpeg", "x")
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Zero(t, store.Len())
	})

	t.Run("expired", func(t *testing.T) {
		store, clock, h := newTestStore()
		u, err := store.PresignUpload(ctx, key, "image/png", 60*time.Second)
		require.NoError(t, err)

		clock.t = clock.t.Add(61 * time.Second)
		rec := do(h, http.MethodPut, u, "image/png", "x")
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("different key", func(t *testing.T) {
		store, _, h := newTestStore()
		u, err := store.PresignUpload(ctx, key, "image/png", time.Minute)
		require.NoError(t, err)

		tampered := strings.Replace(u, "1_a.png", "1_b.png", 1)
		rec := do(h, http.MethodPut, tampered, "image/png", "x")
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("replay", func(t *testing.T) {
		store, _, h := newTestStore()
		u, err := store.PresignUpload(ctx, key, "image/png", time.Minute)
		require.NoError(t, err)

		require.Equal(t, http.StatusOK, do(h, http.MethodPut, u, "image/png", "first").Code)
		assert.Equal(t, http.StatusForbidden, do(h, http.MethodPut, u, "image/png", "second").Code)

		_, data, ok := store.Object(key)
		require.True(t, ok)
		assert.Equal(t, "first", string(data))
	})

	t.Run("download url cannot upload", func(t *testing.T) {
		store, _, h := newTestStore()
		u, err := store.PresignDownload(ctx, key, time.Minute)
		require.NoError(t, err)

		assert.Equal(t, http.StatusForbidden, do(h, http.MethodPut, u, "", "x").Code)
	})
}

func TestMemoryStore_Download(t *testing.T) {
	store, clock, h := newTestStore()
	ctx := context.Background()

	u, err := store.PresignDownload(ctx, "uploads/missing.png", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, do(h, http.MethodGet, u, "", "").Code)

	require.NoError(t, store.Upload(ctx, "uploads/seeded.png", "image/png", strings.NewReader("seed")))
	u, err = store.PresignDownload(ctx, "uploads/seeded.png", time.Minute)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, do(h, http.MethodHead, u, "", "").Code)

	clock.t = clock.t.Add(2 * time.Minute)
	assert.Equal(t, http.StatusForbidden, do(h, http.MethodGet, u, "", "").Code)

	assert.Equal(t, http.StatusMethodNotAllowed, do(h, http.MethodDelete, u, "", "").Code)
}

func TestMemoryStore_UploadTooLarge(t *testing.T) {
	store := NewMemoryStore("http://objects.test", []byte("s"), nil)
	err := store.Upload(context.Background(), "big", "application/octet-stream",
		io.LimitReader(zeroReader{}, MaxMemoryObjectSize+1))
	assert.Error(t, err)
}

type zeroReader struct{}

func (zeroReader) Read(p []byte) (int, error) {
	clear(p)
	return len(p), nil
}

func TestNewStorageService_Unknown(t *testing.T) {
	_, err := NewStorageService(context.Background(), ServiceConfig{Driver: "gcs"})
	assert.Error(t, err)
}
