package scriptdraft

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"lectern/internal/config"
	"lectern/internal/deck"
	"lectern/internal/logging"
	"lectern/internal/retry"
	"lectern/internal/services"
	"lectern/internal/services/llm"
)

// DefaultWordsPerMinute is the narration pace used to size a draft.
const DefaultWordsPerMinute = 150

// Source records where a draft came from.
type Source string

const (
	SourceModel        Source = "model"
	SourceSpeakerNotes Source = "speaker_notes"
)

// Generator is the text collaborator.
type Generator interface {
	GenerateText(ctx context.Context, req llm.Request) (string, error)
}

// Options configures a Drafter.
type Options struct {
	Model          string
	FallbackModel  string
	WordsPerMinute int
	Retry          retry.Options
}

// OptionsFromConfig builds drafting options from configuration.
func OptionsFromConfig(cfg *config.Config) Options {
	llmCfg := cfg.GetLLM()
	return Options{
		Model:         llmCfg.Model,
		FallbackModel: llmCfg.FallbackModel,
		Retry: retry.Options{
			MaxRetries: cfg.Retry.MaxRetries,
			BaseDelay:  cfg.Retry.BaseDelay(),
			MaxDelay:   cfg.Retry.MaxDelay(),
			Multiplier: cfg.Retry.BackoffMultiplier,
		},
	}
}

// Draft is a narration script and its origin.
type Draft struct {
	Script string
	Source Source
	// Model is the model that produced the script, empty for speaker notes.
	Model string
}

// Drafter writes narration scripts for decks.
type Drafter struct {
	gen    Generator
	opts   Options
	logger *slog.Logger
}

// New constructs a Drafter. A nil gen always drafts from speaker notes.
func New(gen Generator, opts Options, logger *slog.Logger) *Drafter {
	if opts.WordsPerMinute <= 0 {
		opts.WordsPerMinute = DefaultWordsPerMinute
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logging.NewComponentLogger(logger, "scriptdraft")
	opts.Retry.Logger = logger
	return &Drafter{gen: gen, opts: opts, logger: logger}
}

// Draft asks the text collaborator for a script, trying the fallback model once
// after the primary gives up. When the collaborator cannot produce one, the
// deck's speaker notes are joined instead.
func (d *Drafter) Draft(ctx context.Context, dk deck.Deck) (Draft, error) {
	if len(dk.Slides) == 0 {
		return Draft{}, services.Wrap(services.ErrValidation, "", "draft script", "deck has no slides", nil)
	}
	if d.gen == nil {
		return d.fromNotes(dk, nil)
	}

	type generated struct {
		text  string
		model string
	}
	fb := retry.Fallback{
		Enabled:   strings.TrimSpace(d.opts.FallbackModel) != "",
		Primary:   d.opts.Model,
		Alternate: d.opts.FallbackModel,
	}
	prompt := BuildPrompt(dk, d.opts.WordsPerMinute)
	out, err := retry.Execute(ctx, "draft script", d.opts.Retry, fb, func(ctx context.Context, model string) (generated, error) {
		text, err := d.gen.GenerateText(ctx, llm.Request{
			System:      SystemPrompt,
			Prompt:      prompt,
			Model:       model,
			MaxTokens:   maxTokens(dk, d.opts.WordsPerMinute),
			Temperature: 0.7,
		})
		if err != nil {
			return generated{}, err
		}
		text = strings.TrimSpace(llm.StripCodeFence(text))
		if text == "" {
			return generated{}, services.Wrap(services.ErrTransient, "", "draft script", "model returned an empty script", nil)
		}
		return generated{text: text, model: model}, nil
	})
	if err == nil {
		return Draft{Script: out.text, Source: SourceModel, Model: out.model}, nil
	}
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		return Draft{}, err
	}
	_, remedy := services.UserMessage(err)
	logging.WarnWithContext(d.logger, "script drafting failed; using speaker notes", "script_draft_fallback",
		logging.Error(err),
		logging.String(logging.FieldErrorHint, remedy),
		logging.String(logging.FieldImpact, "script is the deck's speaker notes"),
	)
	return d.fromNotes(dk, err)
}

func (d *Drafter) fromNotes(dk deck.Deck, cause error) (Draft, error) {
	script := dk.SpeakerNotesScript()
	if script == "" {
		return Draft{}, services.Wrap(services.ErrValidation, "", "draft script", "no model available and the deck has no speaker notes", cause)
	}
	return Draft{Script: script, Source: SourceSpeakerNotes}, nil
}

// BuildPrompt describes the deck for the text collaborator.
func BuildPrompt(dk deck.Deck, wordsPerMinute int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Topic: %s\n", strings.TrimSpace(dk.Topic))
	if audience := strings.TrimSpace(dk.Audience); audience != "" {
		fmt.Fprintf(&b, "Audience: %s\n", audience)
	}
	if dk.DurationMinutes > 0 {
		fmt.Fprintf(&b, "Duration: %g minutes\n", dk.DurationMinutes)
		fmt.Fprintf(&b, "Target length: about %d words\n", targetWords(dk, wordsPerMinute))
	}
	b.WriteString("\nSlides:\n")
	for i, slide := range deck.Prepare(dk.Slides) {
		fmt.Fprintf(&b, "%d. %s", i+1, slide.Title)
		if slide.Subtitle != "" {
			fmt.Fprintf(&b, " (%s)", slide.Subtitle)
		}
		b.WriteByte('\n')
		for _, point := range slide.Points {
			if point = strings.TrimSpace(point); point != "" {
				fmt.Fprintf(&b, "   - %s\n", point)
			}
		}
		for _, stat := range slide.Statistics {
			fmt.Fprintf(&b, "   - %s %s\n", stat.Value, stat.Label)
		}
		if slide.Quote != nil && strings.TrimSpace(slide.Quote.Text) != "" {
			fmt.Fprintf(&b, "   - Quote: %q %s\n", slide.Quote.Text, slide.Quote.Author)
		}
		if notes := strings.TrimSpace(slide.SpeakerNotes); notes != "" {
			fmt.Fprintf(&b, "   Notes: %s\n", notes)
		}
	}
	return b.String()
}

func targetWords(dk deck.Deck, wordsPerMinute int) int {
	return int(math.Round(dk.DurationMinutes * float64(wordsPerMinute)))
}

func maxTokens(dk deck.Deck, wordsPerMinute int) int {
	// Roughly 1.4 tokens per English word plus headroom.
	tokens := int(float64(targetWords(dk, wordsPerMinute))*1.4) + 256
	if tokens < 1024 {
		return 1024
	}
	return min(tokens, 16000)
}
