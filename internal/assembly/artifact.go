package assembly

import (
	"fmt"
	"math"

	"lectern/internal/deck"
	"lectern/internal/progress"
)

// Provenance distinguishes a real encode from a degraded placeholder.
type Provenance string

const (
	ProvenanceEncoded     Provenance = "encoded"
	ProvenancePlaceholder Provenance = "placeholder"
)

// Artifact is the result of a successful run.
type Artifact struct {
	RunID           string     `json:"runId"`
	URL             string     `json:"url"`
	DurationSeconds float64    `json:"durationSeconds"`
	SizeBytes       int64      `json:"sizeBytes"`
	ContentType     string     `json:"contentType"`
	Provenance      Provenance `json:"provenance"`
	// NarrationGaps lists dropped narration chunk indices.
	NarrationGaps     []int `json:"narrationGaps,omitempty"`
	PlaceholderSlides int   `json:"placeholderSlides,omitempty"`
}

// Degraded reports whether the artifact is not a real video.
func (a Artifact) Degraded() bool {
	return a.Provenance != ProvenanceEncoded
}

// RunError is returned when a run fails. It names the stage that failed.
type RunError struct {
	RunID string
	Stage progress.Stage
	Err   error
}

func (e *RunError) Error() string {
	return fmt.Sprintf("run %s failed during %s: %v", e.RunID, e.Stage, e.Err)
}

func (e *RunError) Unwrap() error {
	return e.Err
}

// Video bitrates in kbit/s per resolution and quality.
var videoBitrates = map[deck.Resolution]map[deck.Quality]float64{
	deck.Resolution720p: {
		deck.QualityLow:    1000,
		deck.QualityMedium: 2500,
		deck.QualityHigh:   4000,
	},
	deck.Resolution1080p: {
		deck.QualityLow:    2000,
		deck.QualityMedium: 5000,
		deck.QualityHigh:   8000,
	},
	deck.Resolution4K: {
		deck.QualityLow:    8000,
		deck.QualityMedium: 16000,
		deck.QualityHigh:   35000,
	},
}

const audioBitrate = 128

// EstimateSize approximates the container size of a video of the given length.
// Unknown resolutions and qualities use the 1080p medium tier.
func EstimateSize(durationSeconds float64, resolution deck.Resolution, quality deck.Quality) int64 {
	if durationSeconds <= 0 || math.IsNaN(durationSeconds) || math.IsInf(durationSeconds, 0) {
		return 0
	}
	tiers, ok := videoBitrates[resolution]
	if !ok {
		tiers = videoBitrates[deck.Resolution1080p]
	}
	kbps, ok := tiers[quality]
	if !ok {
		kbps = tiers[deck.QualityMedium]
	}
	bytesPerSecond := (kbps + audioBitrate) * 1000 / 8
	return int64(math.Round(bytesPerSecond * durationSeconds))
}
