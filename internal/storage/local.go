package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"lectern/internal/services"
)

// Local writes objects beneath a directory. URLs use PublicBaseURL when set
// (for a directory served over HTTPS) and file:// URLs otherwise.
type Local struct {
	Dir           string
	PublicBaseURL string
}

// NewLocal constructs a directory-backed store.
func NewLocal(dir, publicBaseURL string) *Local {
	return &Local{Dir: dir, PublicBaseURL: strings.TrimRight(publicBaseURL, "/")}
}

// Upload writes obj beneath Dir. Without Upsert an existing object is an error.
func (l *Local) Upload(ctx context.Context, obj Object) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	rel := filepath.Clean(filepath.FromSlash(obj.Path))
	if rel == "." || filepath.IsAbs(rel) || strings.HasPrefix(rel, "..") {
		return "", services.Wrap(services.ErrValidation, "", "storage upload", fmt.Sprintf("invalid object path %q", obj.Path), nil)
	}
	target := filepath.Join(l.Dir, rel)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", fmt.Errorf("storage upload: create dir: %w", err)
	}
	flags := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	if !obj.Upsert {
		flags = os.O_CREATE | os.O_WRONLY | os.O_EXCL
	}
	file, err := os.OpenFile(target, flags, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return "", services.Wrap(services.ErrValidation, "", "storage upload", fmt.Sprintf("object %q already exists", obj.Path), err)
		}
		return "", fmt.Errorf("storage upload: open: %w", err)
	}
	if _, err := file.Write(obj.Data); err != nil {
		_ = file.Close()
		return "", fmt.Errorf("storage upload: write: %w", err)
	}
	if err := file.Close(); err != nil {
		return "", fmt.Errorf("storage upload: close: %w", err)
	}
	return l.publicURL(target, filepath.ToSlash(rel)), nil
}

func (l *Local) publicURL(target, rel string) string {
	if l.PublicBaseURL != "" {
		return l.PublicBaseURL + "/" + (&url.URL{Path: rel}).EscapedPath()
	}
	abs, err := filepath.Abs(target)
	if err != nil {
		abs = target
	}
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}).String()
}

// HealthCheck verifies the directory is writable.
func (l *Local) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(l.Dir, 0o755); err != nil {
		return services.Wrap(services.ErrConfiguration, "preparing", "storage health", "storage directory unavailable", err)
	}
	probe, err := os.CreateTemp(l.Dir, ".lectern-probe-*")
	if err != nil {
		return services.Wrap(services.ErrConfiguration, "preparing", "storage health", "storage directory not writable", err)
	}
	name := probe.Name()
	_ = probe.Close()
	_ = os.Remove(name)
	return nil
}
