package progress_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lectern/internal/progress"
)

type clock struct {
	t time.Time
}

func (c *clock) now() time.Time { return c.t }

func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newReporter(events *[]progress.Event) (*progress.Reporter, *clock) {
	c := &clock{t: time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)}
	r := progress.NewReporter(func(e progress.Event) { *events = append(*events, e) }, nil, progress.WithClock(c.now))
	return r, c
}

func TestStageRangesAreContiguous(t *testing.T) {
	stages := progress.Stages()
	require.Len(t, stages, 6)
	prevHi := 0.0
	for _, s := range stages[:len(stages)-1] {
		lo, hi := s.Range()
		assert.Equal(t, prevHi, lo, s)
		assert.Greater(t, hi, lo, s)
		prevHi = hi
	}
	lo, hi := progress.StageComplete.Range()
	assert.Equal(t, 100.0, lo)
	assert.Equal(t, 100.0, hi)
	assert.Equal(t, "Generating Audio", progress.StageGeneratingAudio.Label())
	assert.Equal(t, 50.0, progress.StageCreatingSlides.Scale(0.5))
}

// manualTimer holds scheduled releases until the test fires them.
type manualTimer struct {
	pending []func()
	delays  []time.Duration
}

func (m *manualTimer) after(d time.Duration, fn func()) func() bool {
	m.pending = append(m.pending, fn)
	m.delays = append(m.delays, d)
	idx := len(m.pending) - 1
	return func() bool {
		stopped := m.pending[idx] != nil
		m.pending[idx] = nil
		return stopped
	}
}

func (m *manualTimer) fire() bool {
	for i, fn := range m.pending {
		if fn != nil {
			m.pending[i] = nil
			fn()
			return true
		}
	}
	return false
}

func newQueuedReporter(events *[]progress.Event) (*progress.Reporter, *clock, *manualTimer) {
	c := &clock{t: time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)}
	timer := &manualTimer{}
	r := progress.NewReporter(func(e progress.Event) { *events = append(*events, e) }, nil,
		progress.WithClock(c.now), progress.WithAfterFunc(timer.after))
	return r, c, timer
}

func TestStageEntriesInsideWindowAreQueued(t *testing.T) {
	var events []progress.Event
	r, c, timer := newQueuedReporter(&events)
	for _, s := range progress.Stages()[:5] {
		r.Enter(s, s.Label())
	}
	require.Len(t, events, 1, "only the first entry fits the window")
	assert.Equal(t, progress.StagePreparing, events[0].Stage)
	require.NotEmpty(t, timer.delays)
	assert.Equal(t, progress.DefaultInterval, timer.delays[0])

	for i := 0; i < 4; i++ {
		c.advance(progress.DefaultInterval)
		require.True(t, timer.fire())
	}
	require.Len(t, events, 5)
	for i := 1; i < len(events); i++ {
		assert.Equal(t, progress.DefaultInterval, events[i].Time.Sub(events[i-1].Time))
	}
	assert.Equal(t, progress.StageFinalizing, events[4].Stage)
	assert.Equal(t, 90.0, events[4].Percent)
	assert.False(t, timer.fire())
}

func TestQueuedEntryKeepsLatestUpdate(t *testing.T) {
	var events []progress.Event
	r, c, timer := newQueuedReporter(&events)
	r.Enter(progress.StagePreparing, "prepare")
	r.Enter(progress.StageGeneratingAudio, "audio")
	r.Update(progress.StageGeneratingAudio, 0.1, "chunk 1")
	r.Update(progress.StageGeneratingAudio, 0.5, "chunk 5")
	require.Len(t, events, 1)

	c.advance(progress.DefaultInterval)
	require.True(t, timer.fire())
	require.Len(t, events, 2)
	assert.Equal(t, progress.StageGeneratingAudio, events[1].Stage)
	assert.Equal(t, "chunk 5", events[1].Message)
	assert.InDelta(t, progress.StageGeneratingAudio.Scale(0.5), events[1].Percent, 0.05)
}

func TestCompleteFlushesQueuedStages(t *testing.T) {
	var events []progress.Event
	r, _, timer := newQueuedReporter(&events)
	for _, s := range progress.Stages()[:5] {
		r.Enter(s, s.Label())
	}
	r.Complete("done")

	require.Len(t, events, 6)
	for i, s := range progress.Stages() {
		assert.Equal(t, s, events[i].Stage)
	}
	assert.False(t, timer.fire(), "flushed entries must not be released again")
}

func TestCloseStopsEvents(t *testing.T) {
	var events []progress.Event
	r, c, timer := newQueuedReporter(&events)
	r.Enter(progress.StagePreparing, "prepare")
	r.Enter(progress.StageGeneratingAudio, "audio")
	r.Close()
	require.Len(t, events, 2)

	c.advance(time.Second)
	r.Enter(progress.StageCreatingSlides, "slides")
	r.Update(progress.StageGeneratingAudio, 1, "late")
	assert.False(t, timer.fire())
	assert.Len(t, events, 2)
}

func TestUpdatesAreThrottled(t *testing.T) {
	var events []progress.Event
	r, c := newReporter(&events)
	r.Enter(progress.StageGeneratingAudio, "audio")
	c.advance(30 * time.Millisecond)
	r.Update(progress.StageGeneratingAudio, 0.1, "chunk 1")
	c.advance(30 * time.Millisecond)
	r.Update(progress.StageGeneratingAudio, 0.2, "chunk 2")
	c.advance(50 * time.Millisecond)
	r.Update(progress.StageGeneratingAudio, 0.3, "chunk 3")
	require.Len(t, events, 2)
	assert.Equal(t, 14.0, events[1].Percent)
}

func TestPercentIsMonotonic(t *testing.T) {
	var events []progress.Event
	r, c := newReporter(&events)
	r.Enter(progress.StageCreatingSlides, "slides")
	c.advance(time.Second)
	r.Update(progress.StageCreatingSlides, 0.8, "slide 8")
	c.advance(time.Second)
	r.Update(progress.StageCreatingSlides, 0.4, "late slide")
	r.Enter(progress.StagePreparing, "backwards")
	c.advance(time.Second)
	r.Update(progress.StageGeneratingAudio, 1, "stale stage")
	for i := 1; i < len(events); i++ {
		assert.GreaterOrEqual(t, events[i].Percent, events[i-1].Percent)
	}
	assert.Equal(t, progress.StageCreatingSlides, r.Stage())
}

func TestCompleteEmittedOnce(t *testing.T) {
	var events []progress.Event
	r, _ := newReporter(&events)
	r.Enter(progress.StageFinalizing, "upload")
	r.Complete("done")
	r.Complete("done again")
	r.Enter(progress.StageFinalizing, "after")
	hundred := 0
	for _, e := range events {
		if e.Percent == 100 {
			hundred++
		}
	}
	assert.Equal(t, 1, hundred)
	assert.Equal(t, progress.StageComplete, r.Last().Stage)
}

func TestETA(t *testing.T) {
	var events []progress.Event
	r, c := newReporter(&events)
	r.Enter(progress.StageGeneratingAudio, "audio")
	c.advance(10 * time.Second)
	r.Update(progress.StageGeneratingAudio, 1.0/6.0, "") // 10%
	last := r.Last()
	assert.InDelta(t, 10.0, last.Percent, 0.01)
	assert.Equal(t, 90*time.Second, last.ETA)
}
