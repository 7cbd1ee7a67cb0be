package assembly

import (
	"context"
	"fmt"

	"lectern/internal/engine"
	"lectern/internal/logging"
	"lectern/internal/progress"
	"lectern/internal/render"
	"lectern/internal/services"
	"lectern/internal/timing"
)

const (
	narrationFile = "narration.mp3"
	concatFile    = "slides.ffconcat"
)

// encode writes the run inputs into the engine workspace, builds the
// slideshow, muxes narration, and reads back the container. Every workspace
// file the run creates is removed before returning.
func (r *run) encode(ctx context.Context) (video, error) {
	eng := r.g.deps.Engine
	if err := eng.Load(ctx); err != nil {
		return video{}, err
	}
	var created []string
	defer func() {
		r.cleanup(ctx, eng, created)
	}()
	write := func(name string, data []byte) error {
		created = append(created, name)
		return eng.WriteFile(ctx, name, data)
	}

	clips := make([]engine.Clip, len(r.images))
	for i, img := range r.images {
		data, err := slideBytes(img)
		if err != nil {
			return video{}, fmt.Errorf("slide %d: %w", i+1, err)
		}
		name := slideFileName(i + 1)
		if err := write(name, data); err != nil {
			return video{}, err
		}
		clips[i] = engine.Clip{File: name, DurationSeconds: r.durations[i]}
		r.reporter.Update(progress.StageAssemblingVideo, 0.3*float64(i+1)/float64(len(r.images)),
			fmt.Sprintf("Staged %d of %d slides", i+1, len(r.images)))
	}
	if err := write(narrationFile, r.audio.Audio); err != nil {
		return video{}, err
	}
	if err := write(concatFile, engine.ConcatList(clips)); err != nil {
		return video{}, err
	}

	ext := string(r.opts.Format)
	slideshow := "slideshow." + ext
	final := "final." + ext
	created = append(created, slideshow, final)
	width, height := r.opts.Resolution.Dimensions()

	r.reporter.Update(progress.StageAssemblingVideo, 0.35, "Encoding slideshow")
	if err := eng.Exec(ctx, engine.SlideshowArgs(engine.SlideshowSpec{
		ConcatFile: concatFile,
		Output:     slideshow,
		Width:      width,
		Height:     height,
		FPS:        r.opts.FPS,
		Format:     ext,
		Quality:    string(r.opts.Quality),
	})); err != nil {
		return video{}, err
	}

	r.reporter.Update(progress.StageAssemblingVideo, 0.75, "Adding narration")
	if err := eng.Exec(ctx, engine.MuxArgs(engine.MuxSpec{
		Video:  slideshow,
		Audio:  narrationFile,
		Output: final,
		Format: ext,
	})); err != nil {
		return video{}, err
	}

	data, err := eng.ReadFile(ctx, final)
	if err != nil {
		return video{}, err
	}
	if len(data) == 0 {
		return video{}, services.Wrap(services.ErrExternalTool, string(progress.StageAssemblingVideo), "read video", "engine produced an empty container", nil)
	}

	duration := timing.Total(r.durations)
	if prober, ok := eng.(engine.Prober); ok {
		probe, err := prober.Probe(ctx, final)
		switch {
		case err != nil:
			logging.WithContext(ctx, r.g.logger).Debug("video probe failed; using allocated duration", logging.Error(err))
		case probe.DurationSeconds > 0:
			duration = probe.DurationSeconds
		}
	}
	r.reporter.Update(progress.StageAssemblingVideo, 1, "Video encoded")
	return video{
		name:            final,
		data:            data,
		contentType:     r.opts.Format.MIMEType(),
		durationSeconds: duration,
		provenance:      ProvenanceEncoded,
	}, nil
}

// cleanup removes run files from the engine workspace. It runs on a context
// detached from cancellation.
func (r *run) cleanup(ctx context.Context, eng engine.Engine, names []string) {
	ctx = context.WithoutCancel(ctx)
	logger := logging.WithContext(ctx, r.g.logger)
	removed := 0
	for _, name := range names {
		if err := eng.DeleteFile(ctx, name); err != nil {
			logging.WarnWithContext(logger, "engine file cleanup failed", "engine_cleanup_failed",
				logging.String("file", name),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "run lectern sweep to reclaim workspaces"),
				logging.String(logging.FieldImpact, "workspace retains a temporary file"),
			)
			continue
		}
		removed++
	}
	logger.Debug("engine workspace cleaned", logging.Int("files", removed))
}

func slideBytes(img render.Result) ([]byte, error) {
	if len(img.PNG) > 0 {
		return img.PNG, nil
	}
	data, _, err := render.DecodeDataURI(img.Ref)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, string(progress.StageAssemblingVideo), "stage slide", "no image data", err)
	}
	return data, nil
}
