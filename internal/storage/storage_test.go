package storage_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lectern/internal/config"
	"lectern/internal/services"
	"lectern/internal/storage"
)

func TestLocalUploadAndUpsert(t *testing.T) {
	dir := t.TempDir()
	store := storage.NewLocal(dir, "https://cdn.example.com/media/")
	ctx := context.Background()

	url, err := store.Upload(ctx, storage.Object{Path: "runs/r1/slides/slide 1.png", Data: []byte("png"), ContentType: "image/png"})
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/media/runs/r1/slides/slide%201.png", url)

	data, err := os.ReadFile(filepath.Join(dir, "runs", "r1", "slides", "slide 1.png"))
	require.NoError(t, err)
	assert.Equal(t, "png", string(data))

	_, err = store.Upload(ctx, storage.Object{Path: "runs/r1/slides/slide 1.png", Data: []byte("again")})
	require.ErrorIs(t, err, services.ErrValidation)

	_, err = store.Upload(ctx, storage.Object{Path: "runs/r1/slides/slide 1.png", Data: []byte("again"), Upsert: true})
	require.NoError(t, err)
}

func TestLocalRejectsEscapingPaths(t *testing.T) {
	store := storage.NewLocal(t.TempDir(), "")
	_, err := store.Upload(context.Background(), storage.Object{Path: "../evil", Data: []byte("x")})
	require.ErrorIs(t, err, services.ErrValidation)
}

func TestLocalFileURLAndHealth(t *testing.T) {
	dir := t.TempDir()
	store := storage.NewLocal(dir, "")
	url, err := store.Upload(context.Background(), storage.Object{Path: "a.bin", Data: []byte("x")})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "file://"), url)
	require.NoError(t, store.HealthCheck(context.Background()))
}

func TestHTTPUpload(t *testing.T) {
	var gotPath, gotUpsert, gotAuth, gotType, gotBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		gotUpsert = r.Header.Get("x-upsert")
		gotAuth = r.Header.Get("Authorization")
		gotType = r.Header.Get("Content-Type")
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	store := storage.NewHTTP(storage.HTTPConfig{BaseURL: server.URL + "/storage/v1/", Bucket: "webinars", APIKey: "k"}, server.Client())
	url, err := store.Upload(context.Background(), storage.Object{
		Path: "runs/r1/video/webinar.mp4", Data: []byte("video"), ContentType: "video/mp4", Upsert: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "/storage/v1/object/webinars/runs/r1/video/webinar.mp4", gotPath)
	assert.Equal(t, "true", gotUpsert)
	assert.Equal(t, "Bearer k", gotAuth)
	assert.Equal(t, "video/mp4", gotType)
	assert.Equal(t, "video", gotBody)
	assert.Equal(t, server.URL+"/storage/v1/object/public/webinars/runs/r1/video/webinar.mp4", url)
}

func TestHTTPUploadFailureIsStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "2")
		http.Error(w, "slow down", http.StatusTooManyRequests)
	}))
	defer server.Close()

	store := storage.NewHTTP(storage.HTTPConfig{BaseURL: server.URL, Bucket: "b", APIKey: "k"}, server.Client())
	_, err := store.Upload(context.Background(), storage.Object{Path: "x.png", Data: []byte("x")})
	require.Error(t, err)
	code, ok := services.StatusCode(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusTooManyRequests, code)
}

func TestHTTPHealthRequiresKey(t *testing.T) {
	store := storage.NewHTTP(storage.HTTPConfig{BaseURL: "https://example.com", Bucket: "b"}, nil)
	assert.ErrorIs(t, store.HealthCheck(context.Background()), services.ErrConfiguration)
}

func TestNewSelectsBackend(t *testing.T) {
	cfg := config.Default()
	cfg.Storage.LocalDir = t.TempDir()
	store, err := storage.New(&cfg)
	require.NoError(t, err)
	assert.IsType(t, &storage.Local{}, store)

	cfg.Storage.Backend = config.StorageHTTP
	cfg.Storage.BaseURL = "https://example.com"
	store, err = storage.New(&cfg)
	require.NoError(t, err)
	assert.IsType(t, &storage.HTTP{}, store)
}

func TestObjectPath(t *testing.T) {
	assert.Equal(t, "runs/r1/slides/slide-001.png", storage.ObjectPath("r1", "slides", "slide-001.png"))
	assert.Equal(t, "runs/r1/video/x.mp4", storage.ObjectPath("r1", "/video/", "../x.mp4"))
	assert.True(t, strings.HasPrefix(storage.ObjectPath("", "a", "b"), "runs/"))
}
