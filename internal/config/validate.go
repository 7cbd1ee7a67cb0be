package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateStorage(); err != nil {
		return err
	}
	if err := c.validateVideo(); err != nil {
		return err
	}
	if err := c.validateRetry(); err != nil {
		return err
	}
	if err := c.validateNarration(); err != nil {
		return err
	}
	if err := c.validateExport(); err != nil {
		return err
	}
	if err := ensurePositiveMap(map[string]int{
		"llm.timeout_seconds":           c.LLM.TimeoutSeconds,
		"speech.timeout_seconds":        c.Speech.TimeoutSeconds,
		"notifications.request_timeout": c.Notifications.RequestTimeout,
	}); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateStorage() error {
	switch c.Storage.Backend {
	case StorageLocal:
		if strings.TrimSpace(c.Storage.LocalDir) == "" {
			return errors.New("storage.local_dir must be set when storage.backend is local")
		}
	case StorageHTTP:
		if c.Storage.BaseURL == "" {
			return errors.New("storage.base_url must be set when storage.backend is http")
		}
		parsed, err := url.Parse(c.Storage.BaseURL)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return fmt.Errorf("storage.base_url %q is not an absolute URL", c.Storage.BaseURL)
		}
		if c.Storage.Bucket == "" {
			return errors.New("storage.bucket must be set when storage.backend is http")
		}
	default:
		return fmt.Errorf("storage.backend must be local or http, got %q", c.Storage.Backend)
	}
	return nil
}

func (c *Config) validateVideo() error {
	if err := oneOf("video.quality", c.Video.Quality, "low", "medium", "high"); err != nil {
		return err
	}
	if err := oneOf("video.format", c.Video.Format, "mp4", "webm"); err != nil {
		return err
	}
	if err := oneOf("video.resolution", c.Video.Resolution, "720p", "1080p", "4k"); err != nil {
		return err
	}
	if c.Video.FPS < 1 || c.Video.FPS > 60 {
		return errors.New("video.fps must be between 1 and 60")
	}
	return ensurePositiveMap(map[string]int{
		"video.slide_chunk_size": c.Video.SlideChunkSize,
		"video.max_slides":       c.Video.MaxSlides,
		"video.min_script_chars": c.Video.MinScriptChars,
	})
}

func (c *Config) validateRetry() error {
	if c.Retry.MaxRetries < 0 {
		return errors.New("retry.max_retries must be >= 0")
	}
	if c.Retry.BaseDelayMS < 0 || c.Retry.MaxDelayMS < 0 {
		return errors.New("retry delays must be >= 0")
	}
	if c.Retry.MaxDelayMS < c.Retry.BaseDelayMS {
		return errors.New("retry.max_delay_ms must be >= retry.base_delay_ms")
	}
	if c.Retry.BackoffMultiplier < 1 {
		return errors.New("retry.backoff_multiplier must be >= 1")
	}
	return nil
}

func (c *Config) validateNarration() error {
	if c.Narration.MaxChunkChars < 50 {
		return errors.New("narration.max_chunk_chars must be at least 50")
	}
	if c.Narration.ChunkConcurrency < 1 {
		return errors.New("narration.chunk_concurrency must be positive")
	}
	if c.Speech.RequestsPerSecond <= 0 {
		return errors.New("speech.requests_per_second must be positive")
	}
	return oneOf("narration.partial_policy", c.Narration.PartialPolicy, PartialBestEffort, PartialStrict)
}

func (c *Config) validateExport() error {
	if c.Export.MinBlobBytes < 0 {
		return errors.New("export.min_blob_bytes must be >= 0")
	}
	if c.Export.MemoryConstrainedSlides < 0 {
		return errors.New("export.memory_constrained_slides must be >= 0")
	}
	return nil
}

func oneOf(key, value string, allowed ...string) error {
	for _, candidate := range allowed {
		if value == candidate {
			return nil
		}
	}
	return fmt.Errorf("%s must be one of %s, got %q", key, strings.Join(allowed, "|"), value)
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
