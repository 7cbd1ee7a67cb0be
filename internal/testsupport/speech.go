package testsupport

import (
	"context"
	"sync"
)

// SpeechCall is one recorded synthesis request.
type SpeechCall struct {
	Text  string
	Voice string
}

// Speech is a recording speech collaborator. Audio is the text prefixed with
// the voice so tests can assert ordering and voice selection.
type Speech struct {
	// Fail, when set, decides per request whether synthesis fails.
	Fail      func(text, voice string) error
	HealthErr error

	mu    sync.Mutex
	calls []SpeechCall
}

func (s *Speech) Synthesize(ctx context.Context, text, voice string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.calls = append(s.calls, SpeechCall{Text: text, Voice: voice})
	fail := s.Fail
	s.mu.Unlock()
	if fail != nil {
		if err := fail(text, voice); err != nil {
			return nil, err
		}
	}
	return []byte("[" + voice + "]" + text), nil
}

// HealthCheck returns HealthErr.
func (s *Speech) HealthCheck(context.Context) error {
	return s.HealthErr
}

// Calls returns recorded requests.
func (s *Speech) Calls() []SpeechCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]SpeechCall(nil), s.calls...)
}
