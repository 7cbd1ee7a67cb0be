package delivery

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"lectern/internal/fileutil"
	"lectern/internal/render"
	"lectern/internal/services"
)

// Scheme is an accepted artifact URL scheme.
type Scheme string

const (
	SchemeHTTPS Scheme = "https"
	SchemeData  Scheme = "data"
)

// ErrUnsupportedScheme is returned for any URL that is not https or data.
var ErrUnsupportedScheme = errors.New("unsupported url scheme")

// DefaultMaxBytes bounds a single download.
const DefaultMaxBytes = 4 << 30

// ValidateURL accepts https URLs with a host and base64 data URIs. Every
// other scheme, including http, file, and javascript, is rejected.
func ValidateURL(raw string) (Scheme, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", services.Wrap(services.ErrValidation, "", "validate url", "url is empty", nil)
	}
	if strings.HasPrefix(raw, "data:") {
		if _, _, err := render.DecodeDataURI(raw); err != nil {
			return "", services.Wrap(services.ErrValidation, "", "validate url", "malformed data uri", err)
		}
		return SchemeData, nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", services.Wrap(services.ErrValidation, "", "validate url", "unparseable url", err)
	}
	if !strings.EqualFold(u.Scheme, "https") {
		return "", services.Wrap(services.ErrValidation, "", "validate url", fmt.Sprintf("scheme %q", u.Scheme), ErrUnsupportedScheme)
	}
	if u.Host == "" || u.User != nil {
		return "", services.Wrap(services.ErrValidation, "", "validate url", "https url needs a host and no credentials", nil)
	}
	return SchemeHTTPS, nil
}

// HTTPDoer is the subset of *http.Client used for downloads.
type HTTPDoer interface {
	Do(*http.Request) (*http.Response, error)
}

// Saver writes validated artifacts into a directory.
type Saver struct {
	Dir      string
	Client   HTTPDoer
	MaxBytes int64
}

// NewSaver returns a saver writing beneath dir.
func NewSaver(dir string) *Saver {
	return &Saver{
		Dir:      dir,
		Client:   &http.Client{Timeout: 10 * time.Minute},
		MaxBytes: DefaultMaxBytes,
	}
}

// Save validates rawURL, fetches or decodes it, and writes it to
// Dir/SanitizeFilename(filename). It returns the written path.
func (s *Saver) Save(ctx context.Context, rawURL, filename string) (string, error) {
	scheme, err := ValidateURL(rawURL)
	if err != nil {
		return "", err
	}
	var data []byte
	switch scheme {
	case SchemeData:
		data, _, err = render.DecodeDataURI(strings.TrimSpace(rawURL))
	default:
		data, err = s.fetch(ctx, strings.TrimSpace(rawURL))
	}
	if err != nil {
		return "", err
	}
	return s.Write(filename, data)
}

// Write stores data under Dir with a sanitized name. The file appears
// atomically.
func (s *Saver) Write(filename string, data []byte) (string, error) {
	return s.place(filename, func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
}

// CopyFile copies a local file into the download directory under the
// sanitized filename, verifying the copy against the source.
func (s *Saver) CopyFile(filename, src string) (string, error) {
	return s.place(filename, func(w io.Writer) error {
		_, err := fileutil.CopyVerified(src, w)
		return err
	})
}

// place writes through a temp file in Dir and renames it over the target so
// a failed save never leaves a partial file behind.
func (s *Saver) place(filename string, write func(io.Writer) error) (string, error) {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return "", fmt.Errorf("create download dir: %w", err)
	}
	target := filepath.Join(s.Dir, SanitizeFilename(filename))
	if filepath.Dir(target) != filepath.Clean(s.Dir) {
		return "", services.Wrap(services.ErrValidation, "", "save download", "filename escapes the download directory", nil)
	}
	tmp, err := os.CreateTemp(s.Dir, ".download-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		_ = os.Remove(tmp.Name())
	}()
	if err := write(tmp); err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("write download: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close download: %w", err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return "", fmt.Errorf("finalize download: %w", err)
	}
	return target, nil
}

func (s *Saver) fetch(ctx context.Context, rawURL string) ([]byte, error) {
	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	if hc, ok := client.(*http.Client); ok {
		guarded := *hc
		guarded.CheckRedirect = httpsOnlyRedirect(hc.CheckRedirect)
		client = &guarded
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		if errors.Is(err, ErrUnsupportedScheme) {
			return nil, services.Wrap(services.ErrValidation, "", "download", "redirect left https", err)
		}
		return nil, services.Wrap(services.ErrTransient, "", "download", rawURL, err)
	}
	defer resp.Body.Close()
	if resp.Request != nil && resp.Request.URL != nil {
		if _, err := validateHop(resp.Request.URL); err != nil {
			return nil, err
		}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &services.StatusError{Service: "download", StatusCode: resp.StatusCode, Body: string(body)}
	}
	limit := s.MaxBytes
	if limit <= 0 {
		limit = DefaultMaxBytes
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "", "download", "read body", err)
	}
	if int64(len(data)) > limit {
		return nil, services.Wrap(services.ErrValidation, "", "download", fmt.Sprintf("artifact exceeds %d bytes", limit), nil)
	}
	return data, nil
}

const maxRedirects = 10

// httpsOnlyRedirect validates every redirect hop the same way as the first
// URL before chaining to next.
func httpsOnlyRedirect(next func(*http.Request, []*http.Request) error) func(*http.Request, []*http.Request) error {
	return func(req *http.Request, via []*http.Request) error {
		if len(via) >= maxRedirects {
			return fmt.Errorf("stopped after %d redirects", maxRedirects)
		}
		if _, err := validateHop(req.URL); err != nil {
			return err
		}
		if next != nil {
			return next(req, via)
		}
		return nil
	}
}

func validateHop(u *url.URL) (Scheme, error) {
	scheme, err := ValidateURL(u.String())
	if err != nil {
		return "", err
	}
	if scheme != SchemeHTTPS {
		return "", services.Wrap(services.ErrValidation, "", "validate url", "redirect to "+string(scheme), ErrUnsupportedScheme)
	}
	return scheme, nil
}
