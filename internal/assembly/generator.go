package assembly

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"lectern/internal/config"
	"lectern/internal/deck"
	"lectern/internal/engine"
	"lectern/internal/history"
	"lectern/internal/logging"
	"lectern/internal/narration"
	"lectern/internal/notifications"
	"lectern/internal/progress"
	"lectern/internal/render"
	"lectern/internal/retry"
	"lectern/internal/services"
	"lectern/internal/stage"
	"lectern/internal/storage"
	"lectern/internal/templates"
)

// Narrator produces the narration track.
type Narrator interface {
	Synthesize(ctx context.Context, script, voiceStyle string, progress narration.Progress) (narration.Result, error)
}

// SlideRenderer turns one slide into an image reference.
type SlideRenderer interface {
	Render(ctx context.Context, slide deck.Slide, tpl templates.Template, number int) (render.Result, error)
}

// Recorder persists run lifecycle events.
type Recorder interface {
	Start(ctx context.Context, run *history.Run) error
	UpdateProgress(ctx context.Context, id, stage string, percent float64, message string) error
	Complete(ctx context.Context, id string, artifact history.Artifact) error
	Fail(ctx context.Context, id string, failure history.Failure) error
}

// Deps are the collaborators of a Generator. Narrator, Renderer, and Store are
// required; a nil Engine always takes the placeholder path.
type Deps struct {
	Narrator Narrator
	Renderer SlideRenderer
	Engine   engine.Engine
	Store    storage.Uploader
	Probes   []stage.Probe
	Recorder Recorder
	Notifier notifications.Service
	Logger   *slog.Logger
}

// Options tunes a Generator.
type Options struct {
	Limits         deck.Limits
	SlideChunkSize int
	ChunkDelay     time.Duration
	DefaultVoice   string
	// Retry governs the final video upload.
	Retry    retry.Options
	Progress []progress.Option
}

// OptionsFromConfig builds generator options from configuration.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Limits: deck.Limits{
			MaxSlides:      cfg.Video.MaxSlides,
			MinScriptChars: cfg.Video.MinScriptChars,
		},
		SlideChunkSize: cfg.Video.SlideChunkSize,
		DefaultVoice:   cfg.Speech.DefaultVoice,
		Retry: retry.Options{
			MaxRetries: cfg.Retry.MaxRetries,
			BaseDelay:  cfg.Retry.BaseDelay(),
			MaxDelay:   cfg.Retry.MaxDelay(),
			Multiplier: cfg.Retry.BackoffMultiplier,
		},
	}
}

// Generator runs the video assembly state machine. One Generator owns one
// engine instance; concurrent runs share it under a mutex.
type Generator struct {
	deps   Deps
	opts   Options
	logger *slog.Logger

	engineMu sync.Mutex
}

// New validates deps and constructs a Generator.
func New(deps Deps, opts Options) (*Generator, error) {
	var missing []string
	if deps.Narrator == nil {
		missing = append(missing, "narrator")
	}
	if deps.Renderer == nil {
		missing = append(missing, "renderer")
	}
	if deps.Store == nil {
		missing = append(missing, "storage")
	}
	if len(missing) > 0 {
		return nil, services.Wrap(services.ErrConfiguration, "", "assembly", "missing "+strings.Join(missing, ", "), nil)
	}
	if opts.SlideChunkSize <= 0 {
		opts.SlideChunkSize = 2
	}
	logger := deps.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	if deps.Notifier == nil {
		deps.Notifier = notifications.NewService(nil)
	}
	return &Generator{
		deps:   deps,
		opts:   opts,
		logger: logging.NewComponentLogger(logger, "assembly"),
	}, nil
}

// Close releases the engine when it holds resources.
func (g *Generator) Close() error {
	if closer, ok := g.deps.Engine.(io.Closer); ok {
		g.engineMu.Lock()
		defer g.engineMu.Unlock()
		return closer.Close()
	}
	return nil
}

// Generate runs preparing, generating_audio, creating_slides,
// assembling_video, and finalizing in order and returns exactly one artifact
// or an error. Progress events go to sink, which may be nil.
func (g *Generator) Generate(ctx context.Context, d deck.Deck, opts deck.GenerationOptions, sink progress.Sink) (Artifact, error) {
	id := uuid.NewString()
	ctx = services.WithRunID(ctx, id)
	r := &run{
		g:      g,
		id:     id,
		deck:   d,
		opts:   opts,
		logger: logging.WithContext(ctx, g.logger),
	}
	r.reporter = progress.NewReporter(r.sink(ctx, sink), g.logger, g.opts.Progress...)
	r.record(ctx, func(ctx context.Context, rec Recorder) error {
		return rec.Start(ctx, &history.Run{
			ID:         id,
			Topic:      d.Topic,
			TemplateID: d.TemplateID,
			SlideCount: len(d.Slides),
			Format:     string(opts.Format),
			Resolution: string(opts.Resolution),
			Quality:    string(opts.Quality),
			Stage:      string(progress.StagePreparing),
		})
	})
	r.logger.Info("run started",
		logging.String(logging.FieldEventType, "run_start"),
		logging.String("topic", d.Topic),
		logging.Int("slides", len(d.Slides)),
		logging.Float64("duration_minutes", d.DurationMinutes),
	)

	artifact, err := r.execute(ctx)
	if err != nil {
		r.reporter.Close()
		return Artifact{}, r.fail(ctx, err)
	}
	r.succeed(ctx, artifact)
	return artifact, nil
}

type step struct {
	stage   progress.Stage
	message string
	fn      func(context.Context) error
}

func (r *run) execute(ctx context.Context) (Artifact, error) {
	steps := []step{
		{progress.StagePreparing, "Validating inputs", r.prepare},
		{progress.StageGeneratingAudio, "Generating narration", r.generateAudio},
		{progress.StageCreatingSlides, "Rendering slides", r.createSlides},
		{progress.StageAssemblingVideo, "Assembling video", r.assembleVideo},
		{progress.StageFinalizing, "Uploading video", r.finalize},
	}
	for _, s := range steps {
		if err := r.runStage(ctx, s); err != nil {
			return Artifact{}, err
		}
	}
	r.reporter.Complete("Video ready")
	return r.artifact, nil
}

// runStage enters a stage, runs it, and logs its outcome.
func (r *run) runStage(ctx context.Context, s step) error {
	if err := ctx.Err(); err != nil {
		r.failed = s.stage
		return err
	}
	stageCtx := services.WithStage(ctx, string(s.stage))
	logger := logging.WithContext(stageCtx, r.g.logger)
	logger.Info("stage started", logging.String(logging.FieldEventType, "stage_start"))
	r.reporter.Enter(s.stage, s.message)

	started := time.Now()
	if err := s.fn(stageCtx); err != nil {
		r.failed = s.stage
		return err
	}
	logger.Info("stage completed",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.Duration("elapsed", time.Since(started)),
	)
	return nil
}

func (r *run) fail(ctx context.Context, err error) error {
	failedStage := r.failed
	if failedStage == "" {
		failedStage = r.reporter.Stage()
	}
	summary, remedy := services.UserMessage(err)
	category := services.Categorize(err)
	stageCtx := services.WithStage(ctx, string(failedStage))
	logging.WithContext(stageCtx, r.g.logger).Error("run failed",
		logging.String(logging.FieldEventType, "run_failure"),
		logging.String("category", string(category)),
		logging.String("summary", summary),
		logging.String(logging.FieldErrorHint, remedy),
		logging.Error(err),
	)
	r.record(ctx, func(ctx context.Context, rec Recorder) error {
		return rec.Fail(ctx, r.id, history.Failure{
			Stage:    string(failedStage),
			Message:  strings.TrimSpace(err.Error()),
			Category: string(category),
		})
	})
	r.notify(ctx, notifications.EventRunFailed, notifications.Payload{
		"context": string(failedStage),
		"error":   summary,
		"remedy":  remedy,
	})
	return &RunError{RunID: r.id, Stage: failedStage, Err: err}
}

func (r *run) succeed(ctx context.Context, artifact Artifact) {
	r.logger.Info("run completed",
		logging.String(logging.FieldEventType, "run_complete"),
		logging.String("url", displayURL(artifact.URL)),
		logging.Float64("duration_seconds", artifact.DurationSeconds),
		logging.Int64("size_bytes", artifact.SizeBytes),
		logging.String("provenance", string(artifact.Provenance)),
		logging.Int("narration_gaps", len(artifact.NarrationGaps)),
	)
	r.record(ctx, func(ctx context.Context, rec Recorder) error {
		return rec.Complete(ctx, r.id, history.Artifact{
			URL:             artifact.URL,
			DurationSeconds: artifact.DurationSeconds,
			SizeBytes:       artifact.SizeBytes,
			Provenance:      string(artifact.Provenance),
			NarrationGaps:   len(artifact.NarrationGaps),
		})
	})
	event := notifications.EventRunCompleted
	if artifact.Degraded() {
		event = notifications.EventRunDegraded
	}
	r.notify(ctx, event, notifications.Payload{
		"topic":           r.deck.Topic,
		"url":             artifact.URL,
		"durationSeconds": artifact.DurationSeconds,
	})
}

// sink forwards events to the caller and mirrors them into the ledger.
func (r *run) sink(ctx context.Context, user progress.Sink) progress.Sink {
	return func(event progress.Event) {
		if user != nil {
			user(event)
		}
		if event.Stage == progress.StageComplete {
			return
		}
		r.record(ctx, func(ctx context.Context, rec Recorder) error {
			return rec.UpdateProgress(ctx, r.id, string(event.Stage), event.Percent, event.Message)
		})
	}
}

// record runs a ledger write. Ledger failures are logged and never fatal.
func (r *run) record(ctx context.Context, fn func(context.Context, Recorder) error) {
	if r.g.deps.Recorder == nil {
		return
	}
	if err := fn(context.WithoutCancel(ctx), r.g.deps.Recorder); err != nil {
		r.logger.Debug("run history write failed", logging.Error(err))
	}
}

func (r *run) notify(ctx context.Context, event notifications.Event, payload notifications.Payload) {
	if err := r.g.deps.Notifier.Publish(context.WithoutCancel(ctx), event, payload); err != nil {
		r.logger.Debug("run notification failed", logging.String("event", string(event)), logging.Error(err))
	}
}

func displayURL(url string) string {
	if strings.HasPrefix(url, "data:") {
		return "data:(inline)"
	}
	return url
}

// isCancellation reports whether err stems from the run's context.
func isCancellation(ctx context.Context, err error) bool {
	return ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ctx.Err()))
}

func slideFileName(number int) string {
	return fmt.Sprintf("slide-%03d.png", number)
}
