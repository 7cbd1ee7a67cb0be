package storage

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/google/uuid"

	"lectern/internal/config"
)

// Object is one blob to persist.
type Object struct {
	Path        string
	Data        []byte
	ContentType string
	Upsert      bool
}

// Uploader persists blobs and returns a public URL for them.
type Uploader interface {
	Upload(ctx context.Context, obj Object) (string, error)
}

// Store is an Uploader that can report its own health.
type Store interface {
	Uploader
	HealthCheck(ctx context.Context) error
}

// New returns the configured storage backend.
func New(cfg *config.Config) (Store, error) {
	if cfg == nil {
		return nil, fmt.Errorf("storage: nil config")
	}
	switch cfg.Storage.Backend {
	case config.StorageHTTP:
		return NewHTTP(HTTPConfig{
			BaseURL:       cfg.Storage.BaseURL,
			Bucket:        cfg.Storage.Bucket,
			APIKey:        cfg.Storage.APIKey,
			PublicBaseURL: cfg.Storage.PublicBaseURL,
		}, nil), nil
	case config.StorageLocal, "":
		return NewLocal(cfg.Storage.LocalDir, cfg.Storage.PublicBaseURL), nil
	default:
		return nil, fmt.Errorf("storage: unsupported backend %q", cfg.Storage.Backend)
	}
}

// ObjectPath builds a collision-free object key under a run prefix.
func ObjectPath(runID, kind, name string) string {
	runID = cleanSegment(runID)
	if runID == "" {
		runID = uuid.NewString()
	}
	return path.Join("runs", runID, cleanSegment(kind), cleanSegment(name))
}

func cleanSegment(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, "..", "")
	return strings.Trim(strings.ReplaceAll(s, "\\", "/"), "/")
}
