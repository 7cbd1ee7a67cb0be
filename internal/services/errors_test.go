package services_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lectern/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrExternalTool, "assembling_video", "mux", "failed", base)
	require.Error(t, err)
	assert.ErrorIs(t, err, services.ErrExternalTool)
	assert.ErrorIs(t, err, base)
	for _, fragment := range []string{"assembling_video", "mux", "failed"} {
		assert.Contains(t, err.Error(), fragment)
	}
}

func TestWrapDefaultsMarker(t *testing.T) {
	err := services.Wrap(nil, "", "", "", nil)
	assert.ErrorIs(t, err, services.ErrTransient)
	assert.Contains(t, err.Error(), "service failure")
}

func TestStatusCodeFromChain(t *testing.T) {
	err := fmt.Errorf("speech: %w", &services.StatusError{Service: "speech", StatusCode: 429, Body: "slow down"})
	code, ok := services.StatusCode(err)
	require.True(t, ok)
	assert.Equal(t, 429, code)
	assert.Contains(t, err.Error(), "http 429")

	_, ok = services.StatusCode(errors.New("plain"))
	assert.False(t, ok)
}

func TestCategorize(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want services.Category
	}{
		{"canceled", context.Canceled, services.CategoryCanceled},
		{"deadline", fmt.Errorf("call: %w", context.DeadlineExceeded), services.CategoryTimeout},
		{"validation marker", services.Wrap(services.ErrValidation, "preparing", "", "no slides", nil), services.CategoryInvalidInput},
		{"status 429", &services.StatusError{StatusCode: 429}, services.CategoryRateLimit},
		{"status 401", &services.StatusError{StatusCode: 401}, services.CategoryAuth},
		{"status 503", &services.StatusError{StatusCode: 503}, services.CategoryServiceUnavailable},
		{"status 404", &services.StatusError{StatusCode: 404}, services.CategoryInvalidInput},
		{"message rate limit", errors.New("Rate limit exceeded"), services.CategoryRateLimit},
		{"message network", errors.New("network unreachable"), services.CategoryNetwork},
		{"message timeout", errors.New("request timed out"), services.CategoryTimeout},
		{"unknown", errors.New("something odd"), services.CategoryGeneric},
		{"message 401", errors.New("HTTP 401 from speech provider"), services.CategoryAuth},
		{"message 502", errors.New("upstream returned 502"), services.CategoryServiceUnavailable},
		{"message 404", errors.New("object 404"), services.CategoryInvalidInput},
		{"duration is not a status", errors.New("synthesis took 4010ms"), services.CategoryGeneric},
		{"timeout with duration", errors.New("request timeout after 4000ms"), services.CategoryTimeout},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, services.Categorize(tt.err))
		})
	}
}

func TestUserMessageHasRemedy(t *testing.T) {
	for _, err := range []error{
		errors.New("network down"),
		&services.StatusError{StatusCode: 429},
		errors.New("mystery"),
	} {
		summary, remedy := services.UserMessage(err)
		assert.NotEmpty(t, summary)
		assert.NotEmpty(t, remedy)
	}
}

func TestParseRetryAfter(t *testing.T) {
	d, ok := services.ParseRetryAfter("3")
	require.True(t, ok)
	assert.Equal(t, 3*time.Second, d)

	_, ok = services.ParseRetryAfter("")
	assert.False(t, ok)
	_, ok = services.ParseRetryAfter("-2")
	assert.False(t, ok)
	_, ok = services.ParseRetryAfter("soon")
	assert.False(t, ok)
}

func TestMessageStatusCodes(t *testing.T) {
	assert.Equal(t, []int{503, 429}, services.MessageStatusCodes("got 503, then 429"))
	assert.Empty(t, services.MessageStatusCodes("read 2401 bytes in 4000ms"))
	assert.Empty(t, services.MessageStatusCodes("status 200"))
}
