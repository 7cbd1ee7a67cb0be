package narration

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"sync"

	"golang.org/x/time/rate"

	"lectern/internal/config"
	"lectern/internal/logging"
	"lectern/internal/retry"
	"lectern/internal/schedule"
	"lectern/internal/services"
	"lectern/internal/services/speech"
)

// Partial failure policies.
const (
	PolicyBestEffort = config.PartialBestEffort
	PolicyStrict     = config.PartialStrict
)

// ErrNoAudio reports that every chunk failed.
var ErrNoAudio = errors.New("no narration audio produced")

// Options configures a Synthesizer.
type Options struct {
	MaxChunkChars int
	// Concurrency bounds in-flight speech requests.
	Concurrency int
	Policy      string
	// FallbackVoice is the style tried once per chunk after the primary voice fails.
	FallbackVoice     string
	RequestsPerSecond float64
	Retry             retry.Options
}

// OptionsFromConfig builds synthesizer options from configuration.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		MaxChunkChars:     cfg.Narration.MaxChunkChars,
		Concurrency:       cfg.Narration.ChunkConcurrency,
		Policy:            cfg.Narration.PartialPolicy,
		FallbackVoice:     cfg.Speech.FallbackVoice,
		RequestsPerSecond: cfg.Speech.RequestsPerSecond,
		Retry: retry.Options{
			MaxRetries: cfg.Retry.MaxRetries,
			BaseDelay:  cfg.Retry.BaseDelay(),
			MaxDelay:   cfg.Retry.MaxDelay(),
			Multiplier: cfg.Retry.BackoffMultiplier,
		},
	}
}

// Result is the narration track for one run.
type Result struct {
	Audio       []byte
	ContentType string
	Voice       string
	Chunks      int
	// Gaps lists the indices of chunks that were dropped.
	Gaps []int
}

// Progress reports completed chunks.
type Progress func(done, total int)

// Synthesizer turns a script into a single narration track.
type Synthesizer struct {
	client  speech.Synthesizer
	opts    Options
	limiter *rate.Limiter
	logger  *slog.Logger
}

// New constructs a synthesizer around a speech client.
func New(client speech.Synthesizer, opts Options, logger *slog.Logger) *Synthesizer {
	if logger == nil {
		logger = logging.NewNop()
	}
	if opts.MaxChunkChars <= 0 {
		opts.MaxChunkChars = DefaultMaxChunkChars
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if opts.Policy == "" {
		opts.Policy = PolicyBestEffort
	}
	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}
	burst := max(1, int(math.Ceil(opts.RequestsPerSecond)))
	return &Synthesizer{
		client:  client,
		opts:    opts,
		limiter: rate.NewLimiter(limit, burst),
		logger:  logging.NewComponentLogger(logger, "narration"),
	}
}

// Synthesize splits script, synthesizes each chunk with the resolved voice,
// and concatenates successful chunks in order. Under the best-effort policy a
// failed chunk is dropped and recorded in Result.Gaps; under the strict policy
// it fails the call. A run where every chunk fails always errors.
func (s *Synthesizer) Synthesize(ctx context.Context, script, voiceStyle string, progress Progress) (Result, error) {
	chunks := SplitScript(script, s.opts.MaxChunkChars)
	if len(chunks) == 0 {
		return Result{}, services.Wrap(services.ErrValidation, "generating_audio", "split script", "script is empty", nil)
	}
	voice := ResolveVoice(voiceStyle)
	fallback := Fallback(voice, s.opts.FallbackVoice)
	logger := logging.WithContext(ctx, s.logger)
	logger.Info("synthesizing narration",
		logging.Int("chunks", len(chunks)),
		logging.String("voice", voice),
		logging.String("policy", s.opts.Policy),
	)

	var (
		mu      sync.Mutex
		done    int
		lastErr error
		gaps    []int
	)
	opts := s.opts.Retry
	opts.Logger = s.logger
	audio, err := schedule.ProcessInChunks(ctx, chunks, s.opts.Concurrency, 0,
		func(ctx context.Context, index int, text string) ([]byte, error) {
			data, err := s.chunk(ctx, index, text, opts, fallback)
			mu.Lock()
			defer mu.Unlock()
			done++
			if progress != nil {
				progress(done, len(chunks))
			}
			if err == nil {
				return data, nil
			}
			if ctx.Err() != nil || s.opts.Policy == PolicyStrict {
				return nil, err
			}
			lastErr = err
			gaps = append(gaps, index)
			logging.WarnWithContext(logger, "narration chunk dropped", "narration_gap",
				logging.Int("chunk", index),
				logging.Int("chars", len(text)),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check speech service status and quota"),
				logging.String(logging.FieldImpact, "video narration omits this passage"),
			)
			return nil, nil
		}, nil)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Result{}, ctxErr
		}
		return Result{}, services.Wrap(services.ErrExternalTool, "generating_audio", "synthesize narration", "chunk failed under strict policy", err)
	}
	if len(gaps) == len(chunks) {
		return Result{}, services.Wrap(services.ErrExternalTool, "generating_audio", "synthesize narration",
			fmt.Sprintf("all %d chunks failed", len(chunks)), errors.Join(ErrNoAudio, lastErr))
	}
	slices.Sort(gaps)

	var buf bytes.Buffer
	for _, part := range audio {
		buf.Write(part)
	}
	if len(gaps) > 0 {
		logging.WarnWithContext(logger, "narration is incomplete", "narration_partial",
			logging.Int("gaps", len(gaps)),
			logging.Int("chunks", len(chunks)),
			logging.String(logging.FieldErrorHint, "set narration.partial_policy = \"strict\" to fail instead"),
			logging.String(logging.FieldImpact, "video has silent gaps"),
		)
	}
	return Result{
		Audio:       buf.Bytes(),
		ContentType: speech.ContentType,
		Voice:       voice,
		Chunks:      len(chunks),
		Gaps:        gaps,
	}, nil
}

func (s *Synthesizer) chunk(ctx context.Context, index int, text string, opts retry.Options, fb retry.Fallback) ([]byte, error) {
	name := fmt.Sprintf("speech chunk %d", index)
	return retry.Execute(ctx, name, opts, fb, func(ctx context.Context, voice string) ([]byte, error) {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		return s.client.Synthesize(ctx, text, voice)
	})
}

// Fallback builds the per-chunk voice fallback. The fallback style resolves
// through the same voice table; a fallback equal to the primary is disabled.
func Fallback(primaryVoice, fallbackStyle string) retry.Fallback {
	if fallbackStyle == "" {
		return retry.Fallback{Primary: primaryVoice}
	}
	return retry.Fallback{Enabled: true, Primary: primaryVoice, Alternate: ResolveVoice(fallbackStyle)}
}
