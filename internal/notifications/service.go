package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"lectern/internal/config"
)

const userAgent = "Lectern-Go/0.1.0"

// Event identifies a run milestone that may be published.
type Event string

const (
	EventRunStarted   Event = "run_started"
	EventRunCompleted Event = "run_completed"
	EventRunDegraded  Event = "run_degraded"
	EventRunFailed    Event = "run_failed"
	EventExportReady  Event = "export_ready"
	EventTest         Event = "test"
)

// Payload carries event fields keyed by name.
type Payload map[string]any

// Service publishes run events.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	client := &http.Client{Timeout: timeout}
	return &ntfyService{
		endpoint: topic,
		client:   client,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
}

func (n *ntfyService) Publish(ctx context.Context, event Event, fields Payload) error {
	data, ok := format(event, fields)
	if !ok {
		return nil
	}
	return n.send(ctx, data)
}

// format renders an event. Events with no user-facing value are suppressed.
func format(event Event, fields Payload) (payload, bool) {
	switch event {
	case EventRunCompleted:
		topic := fields.text("topic")
		message := fmt.Sprintf("✅ Video ready: %s", topic)
		if duration := fields.duration("durationSeconds"); duration > 0 {
			message = fmt.Sprintf("%s (%s)", message, duration)
		}
		if url := fields.text("url"); url != "" && !strings.HasPrefix(url, "data:") {
			message = fmt.Sprintf("%s\n%s", message, url)
		}
		return payload{
			title:   "Lectern - Video Ready",
			message: message,
			tags:    []string{"lectern", "video", "completed"},
		}, true
	case EventRunDegraded:
		return payload{
			title:   "Lectern - Placeholder Video",
			message: fmt.Sprintf("⚠️ Encoder unavailable, placeholder produced for: %s", fields.text("topic")),
			tags:    []string{"lectern", "video", "placeholder"},
		}, true
	case EventRunFailed:
		var builder strings.Builder
		builder.WriteString("❌ Error")
		if label := fields.text("context"); label != "" {
			builder.WriteString(" with ")
			builder.WriteString(label)
		}
		builder.WriteString(": ")
		if msg := fields.text("error"); msg != "" {
			builder.WriteString(msg)
		} else {
			builder.WriteString("unknown")
		}
		if remedy := fields.text("remedy"); remedy != "" {
			builder.WriteString("\n")
			builder.WriteString(remedy)
		}
		return payload{
			title:    "Lectern - Error",
			message:  builder.String(),
			tags:     []string{"lectern", "error", "alert"},
			priority: "high",
		}, true
	case EventExportReady:
		return payload{
			title:   "Lectern - Export Ready",
			message: fmt.Sprintf("📦 Presentation exported: %s", fields.text("file")),
			tags:    []string{"lectern", "export", "completed"},
		}, true
	case EventTest:
		return payload{
			title:    "Lectern - Test",
			message:  "🧪 Notification system test",
			tags:     []string{"lectern", "test"},
			priority: "low",
		}, true
	default:
		return payload{}, false
	}
}

func (p Payload) text(key string) string {
	value, ok := p[key]
	if !ok || value == nil {
		return ""
	}
	switch v := value.(type) {
	case string:
		return strings.TrimSpace(v)
	case error:
		return strings.TrimSpace(v.Error())
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

func (p Payload) duration(key string) time.Duration {
	switch v := p[key].(type) {
	case float64:
		return time.Duration(v * float64(time.Second)).Round(time.Second)
	case int:
		return time.Duration(v) * time.Second
	case time.Duration:
		return v.Round(time.Second)
	default:
		return 0
	}
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
