package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"lectern/internal/services"
)

const defaultHTTPTimeout = 120 * time.Second

// HTTPDoer describes the HTTP client used by the bucket store.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// HTTPConfig configures a bucket store speaking the Supabase storage API.
type HTTPConfig struct {
	BaseURL       string
	Bucket        string
	APIKey        string
	PublicBaseURL string
}

// HTTP uploads objects to a storage bucket over HTTP.
type HTTP struct {
	cfg    HTTPConfig
	client HTTPDoer
}

// NewHTTP constructs a bucket store. A nil client uses a default with a
// generous timeout for video uploads.
func NewHTTP(cfg HTTPConfig, client HTTPDoer) *HTTP {
	if client == nil {
		client = &http.Client{Timeout: defaultHTTPTimeout}
	}
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	cfg.PublicBaseURL = strings.TrimRight(strings.TrimSpace(cfg.PublicBaseURL), "/")
	cfg.Bucket = strings.Trim(strings.TrimSpace(cfg.Bucket), "/")
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	return &HTTP{cfg: cfg, client: client}
}

// Upload posts obj to {base}/object/{bucket}/{path}.
func (h *HTTP) Upload(ctx context.Context, obj Object) (string, error) {
	key := strings.TrimLeft(obj.Path, "/")
	if key == "" {
		return "", services.Wrap(services.ErrValidation, "", "storage upload", "object path required", nil)
	}
	endpoint := h.cfg.BaseURL + "/object/" + h.cfg.Bucket + "/" + escapeKey(key)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(obj.Data))
	if err != nil {
		return "", fmt.Errorf("build storage upload request: %w", err)
	}
	contentType := obj.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	req.Header.Set("Content-Type", contentType)
	h.authorize(req)
	if obj.Upsert {
		req.Header.Set("x-upsert", "true")
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("storage upload: %w", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode >= http.StatusMultipleChoices {
		return "", services.NewStatusError("storage", resp, body)
	}
	return h.PublicURL(key), nil
}

// PublicURL returns the public object URL for key.
func (h *HTTP) PublicURL(key string) string {
	key = escapeKey(strings.TrimLeft(key, "/"))
	if h.cfg.PublicBaseURL != "" {
		return h.cfg.PublicBaseURL + "/" + key
	}
	return h.cfg.BaseURL + "/object/public/" + h.cfg.Bucket + "/" + key
}

// HealthCheck confirms the bucket exists and the key is accepted.
func (h *HTTP) HealthCheck(ctx context.Context) error {
	if h.cfg.APIKey == "" {
		return services.Wrap(services.ErrConfiguration, "preparing", "storage health", "storage.api_key is not set", nil)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.cfg.BaseURL+"/bucket/"+h.cfg.Bucket, nil)
	if err != nil {
		return fmt.Errorf("build storage health request: %w", err)
	}
	h.authorize(req)
	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("storage health: %w", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	if resp.StatusCode >= http.StatusMultipleChoices {
		return services.NewStatusError("storage", resp, body)
	}
	return nil
}

func (h *HTTP) authorize(req *http.Request) {
	if h.cfg.APIKey == "" {
		return
	}
	req.Header.Set("Authorization", "Bearer "+h.cfg.APIKey)
	req.Header.Set("apikey", h.cfg.APIKey)
}

func escapeKey(key string) string {
	parts := strings.Split(key, "/")
	for i, part := range parts {
		parts[i] = url.PathEscape(part)
	}
	return strings.Join(parts, "/")
}
