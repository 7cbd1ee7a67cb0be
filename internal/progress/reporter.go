package progress

import (
	"log/slog"
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"lectern/internal/logging"
)

// DefaultInterval is the minimum spacing between intra-stage events.
const DefaultInterval = 100 * time.Millisecond

// Event is one progress observation.
type Event struct {
	Stage   Stage
	Percent float64
	Message string
	// ETA estimates the remaining time; zero when unknown.
	ETA  time.Duration
	Time time.Time
}

// Sink receives progress events. It is called synchronously and must not
// block for long.
type Sink func(Event)

// Option customizes a Reporter.
type Option func(*Reporter)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(r *Reporter) {
		if now != nil {
			r.now = now
		}
	}
}

// WithInterval overrides the throttle interval. Zero disables throttling.
func WithInterval(d time.Duration) Option {
	return func(r *Reporter) {
		r.interval = d
	}
}

// WithAfterFunc overrides how delayed stage entries are scheduled. f must
// call fn once after d and return a function that cancels the call.
func WithAfterFunc(f func(d time.Duration, fn func()) (stop func() bool)) Option {
	return func(r *Reporter) {
		if f != nil {
			r.after = f
		}
	}
}

type queuedEntry struct {
	stage   Stage
	percent float64
	message string
}

// Reporter turns stage-local progress into a monotonic overall percent.
// At most one event is emitted per interval. Stage entries that arrive inside
// a window are queued and released one per interval so every stage is still
// seen; updates inside a window are dropped, or fold into a queued entry for
// the same stage. The terminal 100% event is never throttled and is emitted
// exactly once.
type Reporter struct {
	mu       sync.Mutex
	sink     Sink
	logger   *slog.Logger
	sampler  *logging.ProgressSampler
	limiter  *rate.Limiter
	interval time.Duration
	now      func() time.Time
	after    func(time.Duration, func()) func() bool

	started  time.Time
	stage    Stage
	percent  float64
	last     Event
	queue    []queuedEntry
	stopWait func() bool
	complete bool
	closed   bool
}

// NewReporter constructs a reporter. A nil sink only logs.
func NewReporter(sink Sink, logger *slog.Logger, opts ...Option) *Reporter {
	if logger == nil {
		logger = logging.NewNop()
	}
	r := &Reporter{
		sink:     sink,
		logger:   logger,
		sampler:  logging.NewProgressSampler(10),
		interval: DefaultInterval,
		now:      time.Now,
		after: func(d time.Duration, fn func()) func() bool {
			return time.AfterFunc(d, fn).Stop
		},
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.interval > 0 {
		r.limiter = rate.NewLimiter(rate.Every(r.interval), 1)
	}
	r.started = r.now()
	return r
}

// Enter moves the run into stage and emits its starting percent, or queues
// it when the throttle window is still open. Entering a stage earlier than the
// current one is ignored.
func (r *Reporter) Enter(stage Stage, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.complete || r.closed || stage == StageComplete {
		return
	}
	if r.stage != "" && stage.Index() < r.stage.Index() {
		return
	}
	r.stage = stage
	lo, _ := stage.Range()
	now := r.now()
	if len(r.queue) == 0 && (r.limiter == nil || r.limiter.AllowN(now, 1)) {
		r.emit(stage, lo, message, now)
		return
	}
	r.queue = append(r.queue, queuedEntry{stage: stage, percent: lo, message: message})
	r.schedule(now)
}

// Update reports a stage-local fraction in [0,1]. Updates for a stage other
// than the current one, and updates inside the throttle window, are dropped.
func (r *Reporter) Update(stage Stage, fraction float64, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.complete || r.closed || stage != r.stage {
		return
	}
	if n := len(r.queue); n > 0 {
		if tail := &r.queue[n-1]; tail.stage == stage {
			tail.percent = math.Max(tail.percent, stage.Scale(fraction))
			tail.message = message
		}
		return
	}
	now := r.now()
	if r.limiter != nil && !r.limiter.AllowN(now, 1) {
		return
	}
	r.emit(stage, stage.Scale(fraction), message, now)
}

// Complete emits any queued stage entries and then the terminal 100% event.
// Subsequent calls are no-ops.
func (r *Reporter) Complete(message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.complete {
		return
	}
	r.flush()
	r.complete = true
	r.stage = StageComplete
	r.emit(StageComplete, 100, message, r.now())
}

// Close emits any queued stage entries and stops further events. A run that
// fails calls Close so no event arrives after it returns.
func (r *Reporter) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.flush()
	r.closed = true
}

// Last returns the most recent emitted event.
func (r *Reporter) Last() Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}

// Stage returns the current stage.
func (r *Reporter) Stage() Stage {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stage
}

// schedule arms the release of the next queued entry at the start of the
// next throttle window. Callers hold r.mu.
func (r *Reporter) schedule(now time.Time) {
	if r.stopWait != nil || len(r.queue) == 0 {
		return
	}
	delay := r.limiter.ReserveN(now, 1).DelayFrom(now)
	r.stopWait = r.after(delay, r.release)
}

func (r *Reporter) release() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopWait = nil
	if r.complete || r.closed || len(r.queue) == 0 {
		return
	}
	next := r.queue[0]
	r.queue = r.queue[1:]
	now := r.now()
	r.emit(next.stage, next.percent, next.message, now)
	r.schedule(now)
}

// flush emits every queued entry now. Callers hold r.mu.
func (r *Reporter) flush() {
	if r.stopWait != nil {
		r.stopWait()
		r.stopWait = nil
	}
	now := r.now()
	for _, entry := range r.queue {
		r.emit(entry.stage, entry.percent, entry.message, now)
	}
	r.queue = nil
}

func (r *Reporter) emit(stage Stage, percent float64, message string, now time.Time) {
	percent = math.Max(r.percent, math.Min(percent, 100))
	r.percent = percent
	event := Event{
		Stage:   stage,
		Percent: math.Round(percent*10) / 10,
		Message: message,
		ETA:     r.eta(percent, now),
		Time:    now,
	}
	r.last = event
	if r.sampler.ShouldLog(event.Percent, string(event.Stage)) {
		r.logger.Info("progress",
			logging.String(logging.FieldEventType, "progress"),
			logging.String(logging.FieldStage, string(event.Stage)),
			logging.Float64(logging.FieldProgressPercent, event.Percent),
			logging.String("message", message),
			logging.Duration("eta", event.ETA),
		)
	}
	if r.sink != nil {
		r.sink(event)
	}
}

func (r *Reporter) eta(percent float64, now time.Time) time.Duration {
	if percent <= 0 || percent >= 100 {
		return 0
	}
	elapsed := now.Sub(r.started)
	if elapsed <= 0 {
		return 0
	}
	remaining := float64(elapsed) * (100 - percent) / percent
	return time.Duration(remaining).Round(time.Second)
}
