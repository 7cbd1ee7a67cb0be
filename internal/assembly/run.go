package assembly

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"lectern/internal/deck"
	"lectern/internal/logging"
	"lectern/internal/narration"
	"lectern/internal/progress"
	"lectern/internal/render"
	"lectern/internal/retry"
	"lectern/internal/schedule"
	"lectern/internal/services"
	"lectern/internal/stage"
	"lectern/internal/storage"
	"lectern/internal/templates"
	"lectern/internal/timing"
)

// run is the state of one Generate call.
type run struct {
	g        *Generator
	id       string
	deck     deck.Deck
	opts     deck.GenerationOptions
	logger   *slog.Logger
	reporter *progress.Reporter
	failed   progress.Stage

	tpl       templates.Template
	slides    []deck.Slide
	durations []float64
	engineErr error

	audio  narration.Result
	images []render.Result
	video  video
	// artifact is set by finalize.
	artifact Artifact
}

// video is the container produced by assembling_video.
type video struct {
	name            string
	data            []byte
	contentType     string
	durationSeconds float64
	provenance      Provenance
}

func (r *run) prepare(ctx context.Context) error {
	if err := r.deck.Validate(r.g.opts.Limits); err != nil {
		return err
	}
	if err := r.opts.Validate(); err != nil {
		return err
	}
	logger := logging.WithContext(ctx, r.g.logger)

	tpl, found := templates.Resolve(r.deck.TemplateID)
	if !found && strings.TrimSpace(r.deck.TemplateID) != "" {
		logging.WarnWithContext(logger, "unknown template; using default", "template_fallback",
			logging.String("template", r.deck.TemplateID),
			logging.String("substitute", tpl.ID),
			logging.String(logging.FieldErrorHint, "run lectern templates to list available ids"),
			logging.String(logging.FieldImpact, "slides use the default template"),
		)
	}
	r.tpl = tpl
	r.slides = deck.Prepare(r.deck.Slides)
	r.durations = timing.AllocateDurations(r.slides, r.deck.TotalSeconds())
	r.reporter.Update(progress.StagePreparing, 0.4, "Checking services")

	results := stage.RunAll(ctx, r.g.deps.Probes)
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, h := range results {
		if h.Ready || h.Required {
			continue
		}
		logging.WarnWithContext(logger, "optional collaborator unhealthy", "health_degraded",
			logging.String("collaborator", h.Name),
			logging.String("detail", h.Detail),
			logging.String(logging.FieldErrorHint, "run lectern check for details"),
			logging.String(logging.FieldImpact, "run continues without it"),
		)
	}
	if blocking, ok := stage.Blocking(results); ok {
		return services.Wrap(services.ErrExternalTool, string(progress.StagePreparing), "health check",
			fmt.Sprintf("%s unavailable", blocking.Name), blocking.Err)
	}

	r.reporter.Update(progress.StagePreparing, 0.8, "Loading video engine")
	r.engineErr = r.loadEngine(ctx)
	if err := ctx.Err(); err != nil {
		return err
	}
	if r.engineErr != nil {
		logging.WarnWithContext(logger, "video engine unavailable; placeholder assembly will be used", "engine_unavailable",
			logging.Error(r.engineErr),
			logging.String(logging.FieldErrorHint, "install ffmpeg or set video.ffmpeg_binary"),
			logging.String(logging.FieldImpact, "run produces a placeholder artifact instead of a video"),
		)
	}
	return nil
}

func (r *run) loadEngine(ctx context.Context) error {
	eng := r.g.deps.Engine
	if eng == nil {
		return services.Wrap(services.ErrConfiguration, string(progress.StagePreparing), "load engine", "no engine configured", nil)
	}
	return eng.Load(ctx)
}

func (r *run) generateAudio(ctx context.Context) error {
	voice := strings.TrimSpace(r.deck.Voice)
	if voice == "" {
		voice = r.g.opts.DefaultVoice
	}
	result, err := r.g.deps.Narrator.Synthesize(ctx, r.deck.Script, voice, func(done, total int) {
		r.reporter.Update(progress.StageGeneratingAudio, float64(done)/float64(total),
			fmt.Sprintf("Narrated %d of %d passages", done, total))
	})
	if err != nil {
		return err
	}
	r.audio = result
	return nil
}

func (r *run) createSlides(ctx context.Context) error {
	results, err := schedule.ProcessInChunks(ctx, r.slides, r.g.opts.SlideChunkSize, r.g.opts.ChunkDelay,
		func(ctx context.Context, index int, slide deck.Slide) (render.Result, error) {
			return r.g.deps.Renderer.Render(ctx, slide, r.tpl, index+1)
		},
		func(done, total int) {
			r.reporter.Update(progress.StageCreatingSlides, float64(done)/float64(total),
				fmt.Sprintf("Rendered %d of %d slides", done, total))
		})
	if err != nil {
		return err
	}
	r.images = results
	return nil
}

func (r *run) assembleVideo(ctx context.Context) error {
	if r.engineErr != nil {
		return r.assemblePlaceholder(ctx, r.engineErr)
	}
	r.g.engineMu.Lock()
	out, err := r.encode(ctx)
	r.g.engineMu.Unlock()
	if err == nil {
		r.video = out
		return nil
	}
	if isCancellation(ctx, err) {
		return err
	}
	logging.WarnWithContext(logging.WithContext(ctx, r.g.logger), "video encode failed; falling back to placeholder assembly", "engine_fallback",
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "inspect the ffmpeg output in the log"),
		logging.String(logging.FieldImpact, "run produces a placeholder artifact instead of a video"),
	)
	return r.assemblePlaceholder(ctx, err)
}

func (r *run) finalize(ctx context.Context) error {
	obj := storage.Object{
		Path:        storage.ObjectPath(r.id, "video", r.video.name),
		Data:        r.video.data,
		ContentType: r.video.contentType,
		Upsert:      true,
	}
	r.reporter.Update(progress.StageFinalizing, 0.1, "Uploading video")
	url, err := retry.Do(ctx, "upload video", r.g.opts.Retry, func(ctx context.Context) (string, error) {
		return r.g.deps.Store.Upload(ctx, obj)
	})
	if err != nil {
		if isCancellation(ctx, err) {
			return err
		}
		return services.Wrap(services.ErrExternalTool, string(progress.StageFinalizing), "upload video", obj.Path, err)
	}

	size := int64(len(r.video.data))
	if r.video.provenance == ProvenancePlaceholder {
		size = EstimateSize(r.video.durationSeconds, r.opts.Resolution, r.opts.Quality)
	}
	placeholders := 0
	for _, img := range r.images {
		if img.Placeholder {
			placeholders++
		}
	}
	r.artifact = Artifact{
		RunID:             r.id,
		URL:               url,
		DurationSeconds:   r.video.durationSeconds,
		SizeBytes:         size,
		ContentType:       r.video.contentType,
		Provenance:        r.video.provenance,
		NarrationGaps:     r.audio.Gaps,
		PlaceholderSlides: placeholders,
	}
	r.reporter.Update(progress.StageFinalizing, 1, "Video uploaded")
	return nil
}
