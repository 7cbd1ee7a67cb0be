package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"lectern/internal/logging"
	"lectern/internal/services"
)

const (
	defaultBaseDelay  = time.Second
	defaultMaxDelay   = 10 * time.Second
	defaultMultiplier = 2.0
)

// Options configures the retry loop. The zero value performs a single attempt.
type Options struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Multiplier float64

	// Classify overrides Retryable when set.
	Classify func(error) bool
	// Sleep overrides the context-aware timer sleep (tests).
	Sleep  func(ctx context.Context, d time.Duration) error
	Logger *slog.Logger
}

// Fallback names the primary target and the single alternate tried after the
// primary fails. An alternate equal to the primary is ignored.
type Fallback struct {
	Enabled   bool
	Primary   string
	Alternate string
}

func (f Fallback) usable() bool {
	return f.Enabled && f.Alternate != "" && f.Alternate != f.Primary
}

// Operation performs one attempt against target (a provider, model, or voice).
type Operation[T any] func(ctx context.Context, target string) (T, error)

// Execute runs op against fb.Primary up to MaxRetries+1 times, backing off
// between retryable failures. Non-retryable errors stop immediately. When the
// primary fails and fb is usable, exactly one attempt is made against
// fb.Alternate unless the failure was an auth rejection or cancellation.
func Execute[T any](ctx context.Context, name string, opts Options, fb Fallback, op Operation[T]) (T, error) {
	var zero T
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logging.WithContext(ctx, logger)

	result, attempts, err := attemptLoop(ctx, name, opts, fb.Primary, op, logger)
	if err == nil {
		return result, nil
	}
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		return zero, err
	}
	if !fb.usable() || IsAuth(err) {
		return zero, err
	}

	logging.WarnWithContext(logger, "primary target failed; trying fallback", "retry_fallback",
		logging.String("operation", name),
		logging.String("primary", fb.Primary),
		logging.String("fallback", fb.Alternate),
		logging.Int("attempts", attempts),
		logging.Error(err),
		logging.String(logging.FieldImpact, "result comes from the fallback target"),
	)
	result, fbErr := op(ctx, fb.Alternate)
	if fbErr == nil {
		return result, nil
	}
	return zero, &FallbackError{Name: name, Alternate: fb.Alternate, Err: err, FallbackErr: fbErr}
}

// Do is Execute without a fallback target.
func Do[T any](ctx context.Context, name string, opts Options, op func(ctx context.Context) (T, error)) (T, error) {
	return Execute(ctx, name, opts, Fallback{}, func(ctx context.Context, _ string) (T, error) {
		return op(ctx)
	})
}

func attemptLoop[T any](ctx context.Context, name string, opts Options, target string, op Operation[T], logger *slog.Logger) (T, int, error) {
	var zero T
	maxAttempts := opts.MaxRetries + 1
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	classify := opts.Classify
	if classify == nil {
		classify = Retryable
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, attempt - 1, err
		}
		result, err := op(ctx, target)
		if err == nil {
			return result, attempt, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return zero, attempt, ctx.Err()
		}
		if !classify(err) {
			return zero, attempt, fmt.Errorf("%s: non-retryable: %w", name, err)
		}
		if attempt == maxAttempts {
			break
		}
		delay := opts.Delay(attempt)
		if retryAfter := retryAfterHint(err); retryAfter > delay {
			delay = opts.capDelay(retryAfter)
		}
		logger.Info("retrying after failure",
			logging.String("operation", name),
			logging.Int("attempt", attempt),
			logging.Int("max_attempts", maxAttempts),
			logging.Duration("delay", delay),
			logging.Error(err),
			logging.String(logging.FieldEventType, "retry_scheduled"),
		)
		if err := opts.sleep(ctx, delay); err != nil {
			return zero, attempt, err
		}
	}
	return zero, maxAttempts, fmt.Errorf("%s: failed after %d attempts: %w", name, maxAttempts, lastErr)
}

// Delay returns min(base*multiplier^(attempt-1), max) for a 1-based attempt.
func (o Options) Delay(attempt int) time.Duration {
	base := o.BaseDelay
	if base < 0 {
		return 0
	}
	if base == 0 && o.MaxDelay == 0 && o.Multiplier == 0 {
		base = defaultBaseDelay
	}
	multiplier := o.Multiplier
	if multiplier < 1 {
		multiplier = defaultMultiplier
	}
	if attempt < 1 {
		attempt = 1
	}
	scaled := float64(base) * math.Pow(multiplier, float64(attempt-1))
	if scaled > float64(math.MaxInt64) {
		return o.capDelay(time.Duration(math.MaxInt64))
	}
	return o.capDelay(time.Duration(scaled))
}

func (o Options) capDelay(d time.Duration) time.Duration {
	maxDelay := o.MaxDelay
	if maxDelay <= 0 {
		maxDelay = defaultMaxDelay
	}
	if d > maxDelay {
		return maxDelay
	}
	if d < 0 {
		return 0
	}
	return d
}

func (o Options) sleep(ctx context.Context, d time.Duration) error {
	if o.Sleep != nil {
		if err := o.Sleep(ctx, d); err != nil {
			return err
		}
		return ctx.Err()
	}
	return SleepContext(ctx, d)
}

// SleepContext waits for d or until ctx is done.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func retryAfterHint(err error) time.Duration {
	var statusErr *services.StatusError
	if errors.As(err, &statusErr) {
		return statusErr.RetryAfter
	}
	return 0
}

// FallbackError reports that both the primary target and the fallback failed.
// It unwraps to the primary failure.
type FallbackError struct {
	Name        string
	Alternate   string
	Err         error
	FallbackErr error
}

func (e *FallbackError) Error() string {
	return fmt.Sprintf("%s: fallback %q also failed (%v): %v", e.Name, e.Alternate, e.FallbackErr, e.Err)
}

func (e *FallbackError) Unwrap() error {
	return e.Err
}
