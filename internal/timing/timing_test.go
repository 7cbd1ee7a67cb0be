package timing_test

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lectern/internal/deck"
	"lectern/internal/timing"
)

func slidesWithPoints(counts ...int) []deck.Slide {
	slides := make([]deck.Slide, len(counts))
	for i, n := range counts {
		for p := 0; p < n; p++ {
			slides[i].Points = append(slides[i].Points, "point")
		}
	}
	return slides
}

func TestDigitalMarketingExample(t *testing.T) {
	slides := slidesWithPoints(0, 3, 4, 2, 5, 1)
	durations := timing.AllocateDurations(slides, 3600)
	require.Len(t, durations, 6)

	assert.InDelta(t, 30, durations[0], 0.001)
	assert.LessOrEqual(t, durations[0], 360.0)
	for i, d := range durations {
		assert.Positive(t, d, "slide %d", i)
		assert.GreaterOrEqual(t, d, timing.MinSlideSeconds)
	}
	for _, d := range durations[1:5] {
		assert.LessOrEqual(t, d, timing.MaxSlideSeconds)
	}
	assert.InDelta(t, 3600, timing.Total(durations), 0.001)
}

func TestShortTotalAppliesFloor(t *testing.T) {
	durations := timing.AllocateDurations(slidesWithPoints(0, 0, 0, 0, 0, 0, 0, 0, 0, 0), 60)
	for _, d := range durations {
		assert.InDelta(t, timing.MinSlideSeconds, d, 0.001)
	}
}

func TestSingleAndEmpty(t *testing.T) {
	assert.Nil(t, timing.AllocateDurations(nil, 100))
	assert.Equal(t, []float64{100}, timing.AllocateDurations(slidesWithPoints(1), 100))
	assert.Equal(t, []float64{timing.MinSlideSeconds}, timing.AllocateDurations(slidesWithPoints(1), 3))
}

func TestNonFiniteTotalGetsFloor(t *testing.T) {
	floor := []float64{timing.MinSlideSeconds, timing.MinSlideSeconds, timing.MinSlideSeconds}
	for _, total := range []float64{math.NaN(), math.Inf(1), math.Inf(-1), -10} {
		assert.Equal(t, floor, timing.AllocateDurations(slidesWithPoints(3), total), "total %v", total)
	}
}

func TestComplexityBounds(t *testing.T) {
	assert.InDelta(t, 1.0, timing.Complexity(deck.Slide{}), 0.001)
	assert.InDelta(t, 1.45, timing.Complexity(deck.Slide{Points: []string{"a", "b", "c"}}), 0.001)
	heavy := deck.Slide{
		Points:     []string{"a", "b", "c", "d", "e"},
		Image:      &deck.Image{URL: "https://example.com/a.png"},
		Chart:      &deck.Chart{Dataset: []deck.ChartPoint{{Label: "x", Value: 1}}},
		Statistics: []deck.Statistic{{Value: "1", Label: "one"}},
		Quote:      &deck.Quote{Text: "q"},
	}
	assert.InDelta(t, 2.0, timing.Complexity(heavy), 0.001)
}

func TestAllocationConservationProperty(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	for trial := 0; trial < 500; trial++ {
		n := 1 + rng.IntN(40)
		counts := make([]int, n)
		for i := range counts {
			counts[i] = rng.IntN(8)
		}
		total := rng.Float64() * 7200
		durations := timing.AllocateDurations(slidesWithPoints(counts...), total)
		require.Len(t, durations, n)

		drift := timing.Total(durations) - total
		assert.GreaterOrEqual(t, drift, -1e-6, "trial %d", trial)
		assert.LessOrEqual(t, drift, timing.MinSlideSeconds*float64(n)+1e-6, "trial %d", trial)
		for _, d := range durations {
			assert.GreaterOrEqual(t, d, timing.MinSlideSeconds)
		}
	}
}

func TestOffsets(t *testing.T) {
	assert.Equal(t, []float64{0, 10, 30}, timing.Offsets([]float64{10, 20, 5}))
}
