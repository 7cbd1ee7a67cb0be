package assembly

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"lectern/internal/logging"
	"lectern/internal/progress"
	"lectern/internal/timing"
)

// PlaceholderContentType is the media type of a placeholder artifact.
const PlaceholderContentType = "application/vnd.lectern.placeholder+json"

const placeholderKind = "lectern.placeholder-video"

// Manifest is the structurally valid stand-in produced when the engine cannot
// encode. It carries everything a later encode would need.
type Manifest struct {
	Kind            string          `json:"kind"`
	RunID           string          `json:"runId"`
	Topic           string          `json:"topic"`
	Template        string          `json:"template"`
	Format          string          `json:"format"`
	Resolution      string          `json:"resolution"`
	Quality         string          `json:"quality"`
	FPS             int             `json:"fps"`
	DurationSeconds float64         `json:"durationSeconds"`
	EstimatedBytes  int64           `json:"estimatedBytes"`
	Reason          string          `json:"reason"`
	Narration       ManifestAudio   `json:"narration"`
	Slides          []ManifestSlide `json:"slides"`
}

// ManifestAudio describes the narration track.
type ManifestAudio struct {
	Bytes       int    `json:"bytes"`
	ContentType string `json:"contentType"`
	Voice       string `json:"voice"`
	Chunks      int    `json:"chunks"`
	Gaps        []int  `json:"gaps,omitempty"`
}

// ManifestSlide is one timed slide.
type ManifestSlide struct {
	Number          int     `json:"number"`
	ID              string  `json:"id"`
	Title           string  `json:"title"`
	Image           string  `json:"image"`
	StartSeconds    float64 `json:"startSeconds"`
	DurationSeconds float64 `json:"durationSeconds"`
	Placeholder     bool    `json:"placeholder,omitempty"`
}

// assemblePlaceholder builds the placeholder artifact. It never touches the
// engine.
func (r *run) assemblePlaceholder(ctx context.Context, cause error) error {
	r.reporter.Update(progress.StageAssemblingVideo, 0.2, "Building placeholder video")
	duration := timing.Total(r.durations)
	offsets := timing.Offsets(r.durations)

	manifest := Manifest{
		Kind:            placeholderKind,
		RunID:           r.id,
		Topic:           r.deck.Topic,
		Template:        r.tpl.ID,
		Format:          string(r.opts.Format),
		Resolution:      string(r.opts.Resolution),
		Quality:         string(r.opts.Quality),
		FPS:             r.opts.FPS,
		DurationSeconds: duration,
		EstimatedBytes:  EstimateSize(duration, r.opts.Resolution, r.opts.Quality),
		Narration: ManifestAudio{
			Bytes:       len(r.audio.Audio),
			ContentType: r.audio.ContentType,
			Voice:       r.audio.Voice,
			Chunks:      r.audio.Chunks,
			Gaps:        r.audio.Gaps,
		},
		Slides: make([]ManifestSlide, len(r.slides)),
	}
	if cause != nil {
		manifest.Reason = cause.Error()
	}
	for i, slide := range r.slides {
		entry := ManifestSlide{
			Number:          i + 1,
			ID:              slide.ID,
			Title:           slide.Title,
			StartSeconds:    offsets[i],
			DurationSeconds: r.durations[i],
		}
		if i < len(r.images) {
			entry.Image = manifestRef(r.images[i].Ref)
			entry.Placeholder = r.images[i].Placeholder
		}
		manifest.Slides[i] = entry
	}

	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("encode placeholder manifest: %w", err)
	}
	r.video = video{
		name:            "placeholder.json",
		data:            data,
		contentType:     PlaceholderContentType,
		durationSeconds: duration,
		provenance:      ProvenancePlaceholder,
	}
	logging.WithContext(ctx, r.g.logger).Info("placeholder video assembled",
		logging.String(logging.FieldEventType, "placeholder_assembled"),
		logging.Float64("duration_seconds", duration),
		logging.Int("bytes", len(data)),
	)
	r.reporter.Update(progress.StageAssemblingVideo, 1, "Placeholder video ready")
	return nil
}

// manifestRef keeps stored URLs and drops inline payloads.
func manifestRef(ref string) string {
	if strings.HasPrefix(ref, "data:") {
		return "inline"
	}
	return ref
}
