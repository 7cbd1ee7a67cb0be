package config

// Storage backends.
const (
	StorageLocal = "local"
	StorageHTTP  = "http"
)

// Narration partial failure policies.
const (
	PartialBestEffort = "best_effort"
	PartialStrict     = "strict"
)

const (
	defaultWorkDir              = "~/.cache/lectern/work"
	defaultOutputDir            = "~/lectern"
	defaultLogDir               = "~/.local/share/lectern/logs"
	defaultStateDir             = "~/.local/share/lectern"
	defaultLocalStorageDir      = "~/.local/share/lectern/storage"
	defaultLogRetentionDays     = 30
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
	defaultLLMBaseURL           = "https://openrouter.ai/api/v1/chat/completions"
	defaultLLMModel             = "openai/gpt-4o-mini"
	defaultLLMFallbackModel     = "google/gemini-2.0-flash-001"
	defaultLLMReferer           = "https://github.com/lectern/lectern"
	defaultLLMTitle             = "Lectern Script Drafting"
	defaultLLMTimeoutSeconds    = 60
	defaultSpeechBaseURL        = "https://api.openai.com/v1/audio/speech"
	defaultSpeechModel          = "tts-1"
	defaultSpeechVoice          = "professional-female"
	defaultSpeechFallbackVoice  = "neutral"
	defaultSpeechRPS            = 2.0
	defaultSpeechTimeoutSeconds = 90
	defaultFFmpegBinary         = "ffmpeg"
	defaultFFprobeBinary        = "ffprobe"
	defaultQuality              = "medium"
	defaultFormat               = "mp4"
	defaultResolution           = "1080p"
	defaultFPS                  = 30
	defaultSlideChunkSize       = 2
	defaultMaxSlides            = 50
	defaultMinScriptChars       = 50
	defaultWorkspaceMaxAgeHours = 24
	defaultMaxRetries           = 3
	defaultBaseDelayMS          = 1000
	defaultMaxDelayMS           = 10000
	defaultBackoffMultiplier    = 2.0
	defaultMaxChunkChars        = 500
	defaultChunkConcurrency     = 2
	defaultMinBlobBytes         = 1000
	defaultMemoryConstrained    = 30
	defaultNotifyTimeout        = 10
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			WorkDir:   defaultWorkDir,
			OutputDir: defaultOutputDir,
			LogDir:    defaultLogDir,
			StateDir:  defaultStateDir,
		},
		Storage: Storage{
			Backend:  StorageLocal,
			LocalDir: defaultLocalStorageDir,
		},
		LLM: LLM{
			BaseURL:        defaultLLMBaseURL,
			Model:          defaultLLMModel,
			FallbackModel:  defaultLLMFallbackModel,
			Referer:        defaultLLMReferer,
			Title:          defaultLLMTitle,
			TimeoutSeconds: defaultLLMTimeoutSeconds,
		},
		Speech: Speech{
			BaseURL:           defaultSpeechBaseURL,
			Model:             defaultSpeechModel,
			DefaultVoice:      defaultSpeechVoice,
			FallbackVoice:     defaultSpeechFallbackVoice,
			RequestsPerSecond: defaultSpeechRPS,
			TimeoutSeconds:    defaultSpeechTimeoutSeconds,
		},
		Video: Video{
			FFmpegBinary:         defaultFFmpegBinary,
			FFprobeBinary:        defaultFFprobeBinary,
			Quality:              defaultQuality,
			Format:               defaultFormat,
			Resolution:           defaultResolution,
			FPS:                  defaultFPS,
			SlideChunkSize:       defaultSlideChunkSize,
			MaxSlides:            defaultMaxSlides,
			MinScriptChars:       defaultMinScriptChars,
			WorkspaceMaxAgeHours: defaultWorkspaceMaxAgeHours,
		},
		Retry: Retry{
			MaxRetries:        defaultMaxRetries,
			BaseDelayMS:       defaultBaseDelayMS,
			MaxDelayMS:        defaultMaxDelayMS,
			BackoffMultiplier: defaultBackoffMultiplier,
		},
		Narration: Narration{
			MaxChunkChars:    defaultMaxChunkChars,
			ChunkConcurrency: defaultChunkConcurrency,
			PartialPolicy:    PartialBestEffort,
		},
		Export: Export{
			MinBlobBytes:            defaultMinBlobBytes,
			MemoryConstrainedSlides: defaultMemoryConstrained,
			EmbedImages:             true,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
