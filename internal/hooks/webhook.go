package hooks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/hashicorp/go-cleanhttp"
)

// WebhookHook POSTs events as JSON.
type WebhookHook struct {
	name       string
	eventTypes []EventType
	url        string
	headers    map[string]string
	timeout    time.Duration
	client     *http.Client
}

// NewWebhookHook validates cfg and builds the hook. A nil client gets a
// pooled one.
func NewWebhookHook(cfg Config, client *http.Client) (*WebhookHook, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("hook name required")
	}
	u, err := url.Parse(cfg.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("hook %s: webhook URL %q must be absolute", cfg.Name, cfg.URL)
	}

	events := cfg.Events
	if len(events) == 0 {
		events = AllEvents
	}
	for _, ev := range events {
		if !ev.IsValid() {
			return nil, fmt.Errorf("hook %s: unknown event %q", cfg.Name, ev)
		}
	}

	if client == nil {
		client = cleanhttp.DefaultPooledClient()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &WebhookHook{
		name:       cfg.Name,
		eventTypes: append([]EventType(nil), events...),
		url:        cfg.URL,
		headers:    cfg.Headers,
		timeout:    timeout,
		client:     client,
	}, nil
}

func (h *WebhookHook) Name() string            { return h.name }
func (h *WebhookHook) EventTypes() []EventType { return h.eventTypes }

// Timeout is the deadline applied to each delivery.
func (h *WebhookHook) Timeout() time.Duration { return h.timeout }

func (h *WebhookHook) Execute(ctx context.Context, event *Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Orchestrator-Event", string(event.Type))
	for key, value := range h.headers {
		req.Header.Set(key, value)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
