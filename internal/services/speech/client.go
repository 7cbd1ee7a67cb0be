// Package speech provides a client for an OpenAI-compatible text-to-speech
// endpoint. Each call is a single attempt; narration owns retries, pacing,
// and voice fallback.
package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"lectern/internal/services"
)

const (
	defaultBaseURL = "https://api.openai.com/v1/audio/speech"
	defaultModel   = "tts-1"
	defaultTimeout = 90 * time.Second
	// ResponseFormat is the encoded audio format requested from the provider.
	ResponseFormat = "mp3"
	// ContentType is the MIME type of synthesized audio.
	ContentType = "audio/mpeg"

	maxAudioBytes = 64 << 20
)

// Synthesizer turns text into encoded audio using a provider voice id.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, voice string) ([]byte, error)
}

// Config captures speech endpoint settings.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// Client calls the speech endpoint.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// NewClient constructs a speech client. A nil httpClient uses one with the
// configured timeout.
func NewClient(cfg Config, httpClient *http.Client) *Client {
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.BaseURL = strings.TrimSpace(cfg.BaseURL)
	cfg.Model = strings.TrimSpace(cfg.Model)
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{cfg: cfg, httpClient: httpClient}
}

type speechRequest struct {
	Model          string `json:"model"`
	Input          string `json:"input"`
	Voice          string `json:"voice"`
	ResponseFormat string `json:"response_format"`
}

// Synthesize returns encoded audio for text spoken by voice.
func (c *Client) Synthesize(ctx context.Context, text, voice string) ([]byte, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, services.Wrap(services.ErrValidation, "generating_audio", "synthesize", "text required", nil)
	}
	if c.cfg.APIKey == "" {
		return nil, services.Wrap(services.ErrConfiguration, "generating_audio", "synthesize", "speech api key required", nil)
	}
	encoded, err := json.Marshal(speechRequest{
		Model:          c.cfg.Model,
		Input:          text,
		Voice:          voice,
		ResponseFormat: ResponseFormat,
	})
	if err != nil {
		return nil, fmt.Errorf("speech request: encode body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, bytes.NewReader(encoded))
	if err != nil {
		return nil, fmt.Errorf("speech request: new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
	if id, ok := services.RequestIDFromContext(ctx); ok {
		req.Header.Set("X-Request-ID", id)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("speech request: network error (timeout=%s): %w", c.cfg.Timeout, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, services.NewStatusError("speech", resp, body)
	}
	audio, err := io.ReadAll(io.LimitReader(resp.Body, maxAudioBytes))
	if err != nil {
		return nil, fmt.Errorf("speech request: read audio: %w", err)
	}
	if len(audio) == 0 {
		return nil, services.Wrap(services.ErrTransient, "generating_audio", "synthesize", "empty audio response", nil)
	}
	return audio, nil
}

// HealthCheck verifies the client is configured with a key and a usable
// endpoint. It does not spend synthesis quota.
func (c *Client) HealthCheck(context.Context) error {
	if c.cfg.APIKey == "" {
		return services.Wrap(services.ErrConfiguration, "preparing", "speech health", "speech.api_key is not set", nil)
	}
	parsed, err := url.Parse(c.cfg.BaseURL)
	if err != nil || parsed.Host == "" || (parsed.Scheme != "https" && parsed.Scheme != "http") {
		return services.Wrap(services.ErrConfiguration, "preparing", "speech health", fmt.Sprintf("invalid speech.base_url %q", c.cfg.BaseURL), err)
	}
	return nil
}
