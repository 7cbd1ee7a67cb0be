package scriptdraft_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lectern/internal/deck"
	"lectern/internal/retry"
	"lectern/internal/scriptdraft"
	"lectern/internal/services"
	"lectern/internal/services/llm"
)

type fakeGenerator struct {
	mu       sync.Mutex
	requests []llm.Request
	respond  func(req llm.Request) (string, error)
}

func (f *fakeGenerator) GenerateText(_ context.Context, req llm.Request) (string, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	return f.respond(req)
}

func (f *fakeGenerator) models() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.requests))
	for i, req := range f.requests {
		out[i] = req.Model
	}
	return out
}

func sampleDeck() deck.Deck {
	return deck.Deck{
		Topic:           "Digital Marketing",
		Audience:        "small business owners",
		DurationMinutes: 10,
		Slides: []deck.Slide{
			{Title: "Welcome", SpeakerNotes: "Hello and welcome."},
			{Title: "Channels", Points: []string{"Search", "Social"}},
			{Title: "", SpeakerNotes: "Thanks for watching."},
		},
	}
}

func TestBuildPromptDescribesDeck(t *testing.T) {
	prompt := scriptdraft.BuildPrompt(sampleDeck(), 150)
	assert.Contains(t, prompt, "Topic: Digital Marketing")
	assert.Contains(t, prompt, "Audience: small business owners")
	assert.Contains(t, prompt, "about 1500 words")
	assert.Contains(t, prompt, "2. Channels")
	assert.Contains(t, prompt, "   - Social")
	assert.Contains(t, prompt, "3. Conclusion 3")
	assert.Contains(t, prompt, "Notes: Hello and welcome.")
}

func TestDraftUsesModel(t *testing.T) {
	gen := &fakeGenerator{respond: func(llm.Request) (string, error) {
		return "```\nWelcome to the session.\n```", nil
	}}
	d := scriptdraft.New(gen, scriptdraft.Options{Model: "primary"}, nil)

	draft, err := d.Draft(context.Background(), sampleDeck())
	require.NoError(t, err)
	assert.Equal(t, "Welcome to the session.", draft.Script)
	assert.Equal(t, scriptdraft.SourceModel, draft.Source)
	assert.Equal(t, "primary", draft.Model)
	require.Len(t, gen.requests, 1)
	assert.Equal(t, scriptdraft.SystemPrompt, gen.requests[0].System)
	assert.GreaterOrEqual(t, gen.requests[0].MaxTokens, 1024)
}

func TestDraftTriesFallbackModelOnce(t *testing.T) {
	gen := &fakeGenerator{respond: func(req llm.Request) (string, error) {
		if req.Model == "primary" {
			return "", &services.StatusError{Service: "llm", StatusCode: 503}
		}
		return "Backup script.", nil
	}}
	d := scriptdraft.New(gen, scriptdraft.Options{
		Model:         "primary",
		FallbackModel: "backup",
		Retry:         retry.Options{MaxRetries: 2, Sleep: func(context.Context, time.Duration) error { return nil }},
	}, nil)

	draft, err := d.Draft(context.Background(), sampleDeck())
	require.NoError(t, err)
	assert.Equal(t, "backup", draft.Model)
	assert.Equal(t, []string{"primary", "primary", "primary", "backup"}, gen.models())
}

func TestDraftFallsBackToSpeakerNotes(t *testing.T) {
	gen := &fakeGenerator{respond: func(llm.Request) (string, error) {
		return "", errors.New("bad request")
	}}
	d := scriptdraft.New(gen, scriptdraft.Options{Model: "primary"}, nil)

	draft, err := d.Draft(context.Background(), sampleDeck())
	require.NoError(t, err)
	assert.Equal(t, scriptdraft.SourceSpeakerNotes, draft.Source)
	assert.Equal(t, "Hello and welcome.\n\nThanks for watching.", draft.Script)
	assert.Empty(t, draft.Model)
}

func TestDraftWithoutGeneratorOrNotesFails(t *testing.T) {
	d := scriptdraft.New(nil, scriptdraft.Options{}, nil)
	dk := sampleDeck()
	for i := range dk.Slides {
		dk.Slides[i].SpeakerNotes = ""
	}
	_, err := d.Draft(context.Background(), dk)
	assert.ErrorIs(t, err, services.ErrValidation)

	_, err = d.Draft(context.Background(), deck.Deck{Topic: "x"})
	assert.ErrorIs(t, err, services.ErrValidation)
}

func TestDraftStopsOnCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	gen := &fakeGenerator{respond: func(llm.Request) (string, error) {
		cancel()
		return "", context.Canceled
	}}
	d := scriptdraft.New(gen, scriptdraft.Options{Model: "primary", FallbackModel: "backup"}, nil)

	_, err := d.Draft(ctx, sampleDeck())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []string{"primary"}, gen.models())
}
