package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"modelkeep/internal/config"
)

const userAgent = "modelkeep/0.1.0"

// Event names one notifiable milestone.
type Event string

const (
	EventScanCompleted     Event = "scan_completed"
	EventCleanCompleted    Event = "clean_completed"
	EventDownloadCompleted Event = "download_completed"
	EventDownloadFailed    Event = "download_failed"
	EventError             Event = "error"
	EventTest              Event = "test"
)

// Payload carries the values interpolated into a notification message.
type Payload map[string]string

// Service is the push-notification surface used by maintenance and downloads.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint:  topic,
		client:    &http.Client{Timeout: timeout},
		scans:     cfg.Notifications.Scans,
		downloads: cfg.Notifications.Downloads,
		errors:    cfg.Notifications.Errors,
	}
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint  string
	client    *http.Client
	scans     bool
	downloads bool
	errors    bool
}

func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	if !n.enabled(event) {
		return nil
	}
	msg, ok := render(event, payload)
	if !ok {
		return fmt.Errorf("notifications: unknown event %q", event)
	}
	return n.send(ctx, msg)
}

func (n *ntfyService) enabled(event Event) bool {
	switch event {
	case EventScanCompleted, EventCleanCompleted:
		return n.scans
	case EventDownloadCompleted, EventDownloadFailed:
		return n.downloads
	case EventError:
		return n.errors
	default:
		return true
	}
}

func render(event Event, payload Payload) (message, bool) {
	get := func(key string) string { return strings.TrimSpace(payload[key]) }

	switch event {
	case EventScanCompleted:
		return message{
			title: "Modelkeep - Scan Complete",
			body:  fmt.Sprintf("Library scan complete: %s files observed", orUnknown(get("observed"))),
			tags:  []string{"modelkeep", "scan", "completed"},
		}, true
	case EventCleanCompleted:
		return message{
			title: "Modelkeep - Catalog Cleaned",
			body:  fmt.Sprintf("Removed %s obsolete entries", orUnknown(get("removed"))),
			tags:  []string{"modelkeep", "clean", "completed"},
		}, true
	case EventDownloadCompleted:
		return message{
			title: "Modelkeep - Download Complete",
			body:  fmt.Sprintf("Finished downloading %s", orUnknown(get("name"))),
			tags:  []string{"modelkeep", "download", "completed"},
		}, true
	case EventDownloadFailed:
		return message{
			title:    "Modelkeep - Download Failed",
			body:     fmt.Sprintf("Failed to download %s: %s", orUnknown(get("name")), orUnknown(get("error"))),
			tags:     []string{"modelkeep", "download", "failed"},
			priority: "high",
		}, true
	case EventError:
		body := "Error"
		if context := get("context"); context != "" {
			body += " with " + context
		}
		body += ": " + orUnknown(get("error"))
		return message{
			title:    "Modelkeep - Error",
			body:     body,
			tags:     []string{"modelkeep", "error", "alert"},
			priority: "high",
		}, true
	case EventTest:
		return message{
			title:    "Modelkeep - Test",
			body:     "Notification system test",
			tags:     []string{"modelkeep", "test"},
			priority: "low",
		}, true
	default:
		return message{}, false
	}
}

func orUnknown(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}

func (n *ntfyService) send(ctx context.Context, data message) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.body))
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
