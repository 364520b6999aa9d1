// Package hooks notifies external endpoints about execution lifecycle
// events. Hooks run in the background and never affect the outcome of an
// execution; failures are logged.
package hooks

import (
	"context"
	"time"
)

// EventType names a lifecycle event.
type EventType string

const (
	EventGraphStarted  EventType = "graph.started"
	EventGraphFinished EventType = "graph.finished"
	EventTaskFailed    EventType = "task.failed"
)

// AllEvents lists every event type, used when a hook names none.
var AllEvents = []EventType{EventGraphStarted, EventGraphFinished, EventTaskFailed}

// IsValid reports whether t is a known event type.
func (t EventType) IsValid() bool {
	for _, known := range AllEvents {
		if t == known {
			return true
		}
	}
	return false
}

// Event is the JSON document delivered to hooks.
type Event struct {
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	GraphID   string         `json:"graphId"`
	RunID     string         `json:"runId"`
	Data      map[string]any `json:"data,omitempty"`
}

// NewEvent creates a new event
func NewEvent(eventType EventType, graphID, runID string, data map[string]any) *Event {
	return &Event{
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		GraphID:   graphID,
		RunID:     runID,
		Data:      data,
	}
}

// Hook receives events.
type Hook interface {
	Name() string
	EventTypes() []EventType
	Execute(ctx context.Context, event *Event) error
}

// Config declares a webhook in the orchestrator configuration.
type Config struct {
	Name    string            `mapstructure:"name" yaml:"name" json:"name"`
	URL     string            `mapstructure:"url" yaml:"url" json:"url"`
	Events  []EventType       `mapstructure:"events" yaml:"events" json:"events"`
	Headers map[string]string `mapstructure:"headers" yaml:"headers" json:"headers,omitempty"`
	Timeout time.Duration     `mapstructure:"timeout" yaml:"timeout" json:"timeout"`
}

// Result records one hook execution.
type Result struct {
	HookName  string        `json:"hookName"`
	EventType EventType     `json:"eventType"`
	Success   bool          `json:"success"`
	Error     string        `json:"error,omitempty"`
	Duration  time.Duration `json:"duration"`
}

// DefaultTimeout bounds a hook that sets no timeout of its own.
const DefaultTimeout = 5 * time.Second
