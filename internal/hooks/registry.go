package hooks

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Kingmaker16/codex-os/internal/errors"
	"github.com/Kingmaker16/codex-os/internal/log"
)

// Registry routes events to the hooks subscribed to them.
type Registry struct {
	mu     sync.RWMutex
	hooks  map[EventType][]Hook
	logger *log.Logger

	// pending tracks deliveries started by Notify
	pending sync.WaitGroup
}

// NewRegistry creates an empty registry. A nil logger discards output.
func NewRegistry(logger *log.Logger) *Registry {
	if logger == nil {
		logger = log.Nop()
	}
	return &Registry{
		hooks:  make(map[EventType][]Hook),
		logger: logger.With("component", "hooks"),
	}
}

// FromConfig builds a registry of webhooks.
func FromConfig(cfgs []Config, logger *log.Logger) (*Registry, error) {
	r := NewRegistry(logger)
	for _, cfg := range cfgs {
		hook, err := NewWebhookHook(cfg, nil)
		if err != nil {
			return nil, errors.NewConfigInvalidError(err.Error())
		}
		r.Register(hook)
	}
	return r, nil
}

// Register subscribes hook to its event types.
func (r *Registry) Register(hook Hook) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, eventType := range hook.EventTypes() {
		r.hooks[eventType] = append(r.hooks[eventType], hook)
	}
}

// Hooks returns the hooks subscribed to eventType.
func (r *Registry) Hooks(eventType EventType) []Hook {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Hook(nil), r.hooks[eventType]...)
}

// Count returns the number of distinct registered hooks.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]bool)
	for _, hooks := range r.hooks {
		for _, h := range hooks {
			seen[h.Name()] = true
		}
	}
	return len(seen)
}

// Trigger delivers event to every subscribed hook and waits for them.
func (r *Registry) Trigger(ctx context.Context, event *Event) []Result {
	hooks := r.Hooks(event.Type)
	if len(hooks) == 0 {
		return nil
	}

	results := make([]Result, len(hooks))
	var g errgroup.Group
	for i, h := range hooks {
		g.Go(func() error {
			results[i] = r.execute(ctx, h, event)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// Notify delivers event in the background. Deliveries outlive ctx's
// cancellation but not their own timeout; Wait blocks until they finish.
func (r *Registry) Notify(ctx context.Context, event *Event) {
	if len(r.Hooks(event.Type)) == 0 {
		return
	}
	r.pending.Add(1)
	go func() {
		defer r.pending.Done()
		r.Trigger(context.WithoutCancel(ctx), event)
	}()
}

// Wait blocks until every delivery started by Notify has finished.
func (r *Registry) Wait() {
	r.pending.Wait()
}

func (r *Registry) execute(ctx context.Context, hook Hook, event *Event) Result {
	timeout := DefaultTimeout
	if t, ok := hook.(interface{ Timeout() time.Duration }); ok {
		timeout = t.Timeout()
	}
	hookCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	err := hook.Execute(hookCtx, event)
	result := Result{
		HookName:  hook.Name(),
		EventType: event.Type,
		Success:   err == nil,
		Duration:  time.Since(start),
	}
	if err != nil {
		result.Error = err.Error()
		r.logger.WithError(err).Warn("hook failed",
			"hook", hook.Name(),
			"event", event.Type,
			"graph_id", event.GraphID,
		)
	}
	return result
}
