package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeStorage(); err != nil {
		return err
	}
	c.normalizeLLM()
	c.normalizeSpeech()
	c.normalizeVideo()
	c.normalizeNarration()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.WorkDir, err = expandPath(orDefault(c.Paths.WorkDir, defaultWorkDir)); err != nil {
		return fmt.Errorf("paths.work_dir: %w", err)
	}
	if c.Paths.OutputDir, err = expandPath(orDefault(c.Paths.OutputDir, defaultOutputDir)); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(orDefault(c.Paths.LogDir, defaultLogDir)); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if c.Paths.StateDir, err = expandPath(orDefault(c.Paths.StateDir, defaultStateDir)); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeStorage() error {
	c.Storage.Backend = strings.ToLower(strings.TrimSpace(c.Storage.Backend))
	if c.Storage.Backend == "" {
		c.Storage.Backend = StorageLocal
	}
	var err error
	if c.Storage.LocalDir, err = expandPath(orDefault(c.Storage.LocalDir, defaultLocalStorageDir)); err != nil {
		return fmt.Errorf("storage.local_dir: %w", err)
	}
	c.Storage.BaseURL = strings.TrimRight(strings.TrimSpace(c.Storage.BaseURL), "/")
	c.Storage.PublicBaseURL = strings.TrimRight(strings.TrimSpace(c.Storage.PublicBaseURL), "/")
	c.Storage.Bucket = strings.Trim(strings.TrimSpace(c.Storage.Bucket), "/")
	c.Storage.APIKey = envFallback(c.Storage.APIKey, "LECTERN_STORAGE_API_KEY")
	return nil
}

func (c *Config) normalizeLLM() {
	c.LLM.BaseURL = orDefault(c.LLM.BaseURL, defaultLLMBaseURL)
	c.LLM.Model = orDefault(c.LLM.Model, defaultLLMModel)
	c.LLM.FallbackModel = strings.TrimSpace(c.LLM.FallbackModel)
	c.LLM.Referer = orDefault(c.LLM.Referer, defaultLLMReferer)
	c.LLM.Title = orDefault(c.LLM.Title, defaultLLMTitle)
	if c.LLM.TimeoutSeconds <= 0 {
		c.LLM.TimeoutSeconds = defaultLLMTimeoutSeconds
	}
	c.LLM.APIKey = envFallback(c.LLM.APIKey, "LECTERN_LLM_API_KEY", "OPENROUTER_API_KEY")
}

func (c *Config) normalizeSpeech() {
	c.Speech.BaseURL = orDefault(c.Speech.BaseURL, defaultSpeechBaseURL)
	c.Speech.Model = orDefault(c.Speech.Model, defaultSpeechModel)
	c.Speech.DefaultVoice = strings.ToLower(orDefault(c.Speech.DefaultVoice, defaultSpeechVoice))
	c.Speech.FallbackVoice = strings.ToLower(strings.TrimSpace(c.Speech.FallbackVoice))
	if c.Speech.RequestsPerSecond <= 0 {
		c.Speech.RequestsPerSecond = defaultSpeechRPS
	}
	if c.Speech.TimeoutSeconds <= 0 {
		c.Speech.TimeoutSeconds = defaultSpeechTimeoutSeconds
	}
	c.Speech.APIKey = envFallback(c.Speech.APIKey, "LECTERN_SPEECH_API_KEY", "OPENAI_API_KEY")
}

func (c *Config) normalizeVideo() {
	c.Video.FFmpegBinary = orDefault(c.Video.FFmpegBinary, defaultFFmpegBinary)
	c.Video.FFprobeBinary = orDefault(c.Video.FFprobeBinary, defaultFFprobeBinary)
	c.Video.Quality = strings.ToLower(orDefault(c.Video.Quality, defaultQuality))
	c.Video.Format = strings.ToLower(orDefault(c.Video.Format, defaultFormat))
	c.Video.Resolution = strings.ToLower(orDefault(c.Video.Resolution, defaultResolution))
	if c.Video.WorkspaceMaxAgeHours <= 0 {
		c.Video.WorkspaceMaxAgeHours = defaultWorkspaceMaxAgeHours
	}
}

func (c *Config) normalizeNarration() {
	c.Narration.PartialPolicy = strings.ToLower(orDefault(c.Narration.PartialPolicy, PartialBestEffort))
	c.Narration.PartialPolicy = strings.ReplaceAll(c.Narration.PartialPolicy, "-", "_")
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}

func orDefault(value, fallback string) string {
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		return trimmed
	}
	return fallback
}

// envFallback keeps a configured value, otherwise takes the first non-empty
// environment variable from keys.
func envFallback(value string, keys ...string) string {
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		return trimmed
	}
	for _, key := range keys {
		if env, ok := os.LookupEnv(key); ok && strings.TrimSpace(env) != "" {
			return strings.TrimSpace(env)
		}
	}
	return ""
}
