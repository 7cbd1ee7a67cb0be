package main

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"lectern/internal/assembly"
	"lectern/internal/config"
	"lectern/internal/deps"
	"lectern/internal/engine"
	"lectern/internal/history"
	"lectern/internal/logging"
	"lectern/internal/narration"
	"lectern/internal/notifications"
	"lectern/internal/progress"
	"lectern/internal/render"
	"lectern/internal/retry"
	"lectern/internal/services/llm"
	"lectern/internal/services/speech"
	"lectern/internal/stage"
	"lectern/internal/storage"
)

// pipeline owns the collaborators of one generate invocation.
type pipeline struct {
	generator *assembly.Generator
	history   *history.Store
}

func (p *pipeline) Close() error {
	var errs []error
	if p.generator != nil {
		errs = append(errs, p.generator.Close())
	}
	if p.history != nil {
		errs = append(errs, p.history.Close())
	}
	return errors.Join(errs...)
}

func retryOptions(cfg *config.Config) retry.Options {
	return retry.Options{
		MaxRetries: cfg.Retry.MaxRetries,
		BaseDelay:  cfg.Retry.BaseDelay(),
		MaxDelay:   cfg.Retry.MaxDelay(),
		Multiplier: cfg.Retry.BackoffMultiplier,
	}
}

func newSpeechClient(cfg *config.Config) *speech.Client {
	return speech.NewClient(speech.Config{
		APIKey:  cfg.Speech.APIKey,
		BaseURL: cfg.Speech.BaseURL,
		Model:   cfg.Speech.Model,
		Timeout: cfg.SpeechTimeout(),
	}, nil)
}

func newLLMClient(cfg *config.Config) *llm.Client {
	llmCfg := cfg.GetLLM()
	return llm.NewClient(llm.Config{
		APIKey:         llmCfg.APIKey,
		BaseURL:        llmCfg.BaseURL,
		Model:          llmCfg.Model,
		Referer:        llmCfg.Referer,
		Title:          llmCfg.Title,
		TimeoutSeconds: llmCfg.TimeoutSeconds,
	})
}

// probeBinary prefers an ffprobe shipped next to ffmpeg when the configured
// value is the bare default.
func probeBinary(cfg *config.Config) string {
	configured := strings.TrimSpace(cfg.Video.FFprobeBinary)
	if configured != "" && configured != "ffprobe" {
		return configured
	}
	if status := deps.ResolveFFprobe(cfg.Video.FFmpegBinary); status.Available {
		return status.Command
	}
	return "ffprobe"
}

func buildPipeline(ctx context.Context, cfg *config.Config, logger *slog.Logger, progressOpts ...progress.Option) (*pipeline, error) {
	sweep := engine.SweepStale(ctx, cfg.Paths.WorkDir, cfg.WorkspaceMaxAge(), time.Now(), logger)
	if len(sweep.Removed) > 0 {
		logger.Info("removed stale engine workspaces",
			logging.Int("removed", len(sweep.Removed)),
			logging.String(logging.FieldEventType, "workspace_sweep"),
		)
	}

	store, err := storage.New(cfg)
	if err != nil {
		return nil, err
	}
	speechClient := newSpeechClient(cfg)
	retryOpts := retryOptions(cfg)
	retryOpts.Logger = logger

	p := &pipeline{}
	collab := assembly.Deps{
		Narrator: narration.New(speechClient, narration.OptionsFromConfig(cfg), logger),
		Renderer: render.New(store, render.NewHTTPFetcher(), retryOpts, logger),
		Engine: engine.NewFFmpeg(engine.Options{
			Binary:      cfg.Video.FFmpegBinary,
			ProbeBinary: probeBinary(cfg),
			WorkDir:     cfg.Paths.WorkDir,
			Logger:      logger,
		}),
		Store: store,
		Probes: []stage.Probe{
			{Name: "speech", Checker: speechClient, Required: true},
			{Name: "storage", Checker: store, Required: true},
		},
		Notifier: notifications.NewService(cfg),
		Logger:   logger,
	}

	hist, err := history.Open(cfg)
	if err != nil {
		logging.WarnWithContext(logger, "run history unavailable", "history_unavailable",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check paths.state_dir permissions"),
			logging.String(logging.FieldImpact, "this run will not appear in lectern runs"),
		)
	} else {
		p.history = hist
		collab.Recorder = hist
	}

	opts := assembly.OptionsFromConfig(cfg)
	opts.Retry.Logger = logger
	opts.Progress = progressOpts
	gen, err := assembly.New(collab, opts)
	if err != nil {
		_ = p.Close()
		return nil, err
	}
	p.generator = gen
	return p, nil
}
