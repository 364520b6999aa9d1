// Package invoke dispatches enriched task payloads to collaborator
// services.
package invoke

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Kingmaker16/codex-os/internal/route"
)

// Invoker sends payload to target and returns the collaborator's JSON
// response. Implementations must honor ctx cancellation: the engine stops
// waiting at the deadline, but an invoker that ignores ctx keeps its
// goroutine until it returns. Such calls show up in the
// orchestrator_calls_abandoned gauge.
type Invoker interface {
	Invoke(ctx context.Context, target route.Target, payload map[string]any) (json.RawMessage, error)
}

// InvokerFunc adapts a function to the Invoker interface.
type InvokerFunc func(ctx context.Context, target route.Target, payload map[string]any) (json.RawMessage, error)

// Invoke calls f.
func (f InvokerFunc) Invoke(ctx context.Context, target route.Target, payload map[string]any) (json.RawMessage, error) {
	return f(ctx, target, payload)
}

// StatusError is a non-2xx collaborator response.
type StatusError struct {
	StatusCode int
	Body       string
}

const maxErrorBody = 512

func (e *StatusError) Error() string {
	body := e.Body
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody] + "..."
	}
	if body == "" {
		return fmt.Sprintf("HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, body)
}
