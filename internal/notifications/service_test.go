package notifications_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lectern/internal/config"
	"lectern/internal/notifications"
)

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = ""
	svc := notifications.NewService(&cfg)
	require.NoError(t, svc.Publish(context.Background(), notifications.EventRunCompleted, notifications.Payload{"topic": "Example"}))
}

func TestNtfyServiceFormatsPayloads(t *testing.T) {
	tests := []struct {
		name           string
		event          notifications.Event
		payload        notifications.Payload
		expectTitle    string
		expectMessage  string
		expectTags     string
		expectPriority string
	}{
		{
			name:  "run completed",
			event: notifications.EventRunCompleted,
			payload: notifications.Payload{
				"topic":           "Digital Marketing",
				"durationSeconds": 3600.0,
				"url":             "https://cdn.example.com/runs/abc/video/final.mp4",
			},
			expectTitle:   "Lectern - Video Ready",
			expectMessage: "✅ Video ready: Digital Marketing (1h0m0s)\nhttps://cdn.example.com/runs/abc/video/final.mp4",
			expectTags:    "lectern,video,completed",
		},
		{
			name:  "inline artifact url omitted",
			event: notifications.EventRunCompleted,
			payload: notifications.Payload{
				"topic": "Onboarding",
				"url":   "data:video/mp4;base64,AAAA",
			},
			expectTitle:   "Lectern - Video Ready",
			expectMessage: "✅ Video ready: Onboarding",
			expectTags:    "lectern,video,completed",
		},
		{
			name:          "run degraded",
			event:         notifications.EventRunDegraded,
			payload:       notifications.Payload{"topic": "Quarterly Review"},
			expectTitle:   "Lectern - Placeholder Video",
			expectMessage: "⚠️ Encoder unavailable, placeholder produced for: Quarterly Review",
			expectTags:    "lectern,video,placeholder",
		},
		{
			name:  "run failed",
			event: notifications.EventRunFailed,
			payload: notifications.Payload{
				"context": "generating_audio",
				"error":   errors.New("speech service unavailable"),
				"remedy":  "Try again in a few minutes.",
			},
			expectTitle:    "Lectern - Error",
			expectMessage:  "❌ Error with generating_audio: speech service unavailable\nTry again in a few minutes.",
			expectTags:     "lectern,error,alert",
			expectPriority: "high",
		},
		{
			name:          "export ready",
			event:         notifications.EventExportReady,
			payload:       notifications.Payload{"file": "deck.pptx"},
			expectTitle:   "Lectern - Export Ready",
			expectMessage: "📦 Presentation exported: deck.pptx",
			expectTags:    "lectern,export,completed",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var captured struct {
				title    string
				tags     string
				priority string
				body     string
			}

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPost, r.Method)
				captured.title = r.Header.Get("Title")
				captured.tags = r.Header.Get("Tags")
				captured.priority = r.Header.Get("Priority")
				body, err := io.ReadAll(r.Body)
				assert.NoError(t, err)
				captured.body = string(body)
				_ = r.Body.Close()
				w.WriteHeader(http.StatusOK)
			}))
			defer server.Close()

			cfg := config.Default()
			cfg.Notifications.NtfyTopic = server.URL
			cfg.Notifications.RequestTimeout = 5

			svc := notifications.NewService(&cfg)
			require.NoError(t, svc.Publish(context.Background(), tc.event, tc.payload))

			assert.Equal(t, tc.expectTitle, captured.title)
			assert.Equal(t, tc.expectMessage, captured.body)
			assert.Equal(t, tc.expectTags, captured.tags)
			assert.Equal(t, tc.expectPriority, captured.priority)
		})
	}
}

func TestNtfyServiceIgnoresSuppressedEvents(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected call for suppressed event: %s", r.URL.String())
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL

	svc := notifications.NewService(&cfg)
	require.NoError(t, svc.Publish(context.Background(), notifications.EventRunStarted, notifications.Payload{"topic": "ignored"}))
}

func TestNtfyServiceReportsHTTPFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "topic closed", http.StatusForbidden)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL

	err := notifications.NewService(&cfg).Publish(context.Background(), notifications.EventTest, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}
