// Package timing allocates on-screen seconds to each slide of a deck.
package timing

import (
	"math"

	"lectern/internal/deck"
)

const (
	// MinSlideSeconds is the floor applied to every slide.
	MinSlideSeconds = 15.0
	// MaxSlideSeconds caps the title and interior slides. The last slide
	// absorbs the remainder and is not capped.
	MaxSlideSeconds = 120.0

	titleShare      = 0.10
	titleCapSeconds = 30.0

	pointWeight     = 0.15
	imageWeight     = 0.30
	chartWeight     = 0.30
	statsWeight     = 0.25
	quoteWeight     = 0.20
	maxComplexity   = 2.0
	baseComplexity  = 1.0
	complexityFloor = 1.0
)

// Complexity returns the interior-slide share multiplier in [1, 2].
func Complexity(s deck.Slide) float64 {
	m := baseComplexity + pointWeight*float64(len(s.Points))
	if s.HasImage() {
		m += imageWeight
	}
	if s.HasChart() {
		m += chartWeight
	}
	if s.HasStatistics() {
		m += statsWeight
	}
	if s.HasQuote() {
		m += quoteWeight
	}
	return clamp(m, complexityFloor, maxComplexity)
}

// AllocateDurations returns one duration in seconds per slide.
//
// The first slide gets min(30, 10% of total). Interior slides get the
// remaining time divided by the slides left, scaled by Complexity. Those
// slides are clamped to [MinSlideSeconds, MaxSlideSeconds]. The last slide
// takes whatever remains, floored at MinSlideSeconds. The sum is never below
// total and exceeds it by at most MinSlideSeconds per slide. A negative or
// non-finite total is treated as zero, so every slide gets the floor.
func AllocateDurations(slides []deck.Slide, totalSeconds float64) []float64 {
	n := len(slides)
	if n == 0 {
		return nil
	}
	if totalSeconds < 0 || math.IsNaN(totalSeconds) || math.IsInf(totalSeconds, 0) {
		totalSeconds = 0
	}
	durations := make([]float64, n)
	if n == 1 {
		durations[0] = max(totalSeconds, MinSlideSeconds)
		return durations
	}

	remaining := totalSeconds
	durations[0] = clamp(min(titleCapSeconds, totalSeconds*titleShare), MinSlideSeconds, MaxSlideSeconds)
	remaining -= durations[0]

	for i := 1; i < n-1; i++ {
		slidesLeft := float64(n - i)
		base := remaining / slidesLeft
		durations[i] = clamp(base*Complexity(slides[i]), MinSlideSeconds, MaxSlideSeconds)
		remaining -= durations[i]
	}

	durations[n-1] = max(remaining, MinSlideSeconds)
	return durations
}

// Total sums durations.
func Total(durations []float64) float64 {
	var sum float64
	for _, d := range durations {
		sum += d
	}
	return sum
}

// Offsets returns the start time of each slide on the timeline.
func Offsets(durations []float64) []float64 {
	offsets := make([]float64, len(durations))
	var at float64
	for i, d := range durations {
		offsets[i] = at
		at += d
	}
	return offsets
}

func clamp(v, lo, hi float64) float64 {
	return min(max(v, lo), hi)
}
