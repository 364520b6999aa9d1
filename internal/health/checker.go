// Package health runs dependency checks for the orchestrator and serves
// them as liveness, readiness and startup probes.
package health

import (
	"context"
	"time"
)

// Checker verifies one dependency. Check must honor ctx.
type Checker interface {
	Name() string
	Check(ctx context.Context) *Result
}

// Status is the outcome of a check, ordered healthy < degraded < unhealthy.
type Status string

const (
	StatusHealthy Status = "healthy"
	// StatusDegraded keeps the orchestrator serving; some tasks are likely
	// to fail.
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

func (s Status) severity() int {
	switch s {
	case StatusHealthy:
		return 0
	case StatusDegraded:
		return 1
	default:
		return 2
	}
}

// Worst returns the most severe of statuses, healthy when there are none.
func Worst(statuses ...Status) Status {
	worst := StatusHealthy
	for _, s := range statuses {
		if s.severity() > worst.severity() {
			worst = s
		}
	}
	return worst
}

// Result is the outcome of one check. Latency is filled in by the Manager.
type Result struct {
	Status  Status         `json:"status"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
	Latency time.Duration  `json:"latencyNs"`
}

func newResult(status Status, message string, kv []any) *Result {
	r := &Result{Status: status, Message: message}
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		if r.Details == nil {
			r.Details = make(map[string]any, len(kv)/2)
		}
		r.Details[key] = kv[i+1]
	}
	return r
}

// Healthy, Degraded and Unhealthy build results; kv are detail key/value
// pairs as in slog.
func Healthy(message string, kv ...any) *Result {
	return newResult(StatusHealthy, message, kv)
}

func Degraded(message string, kv ...any) *Result {
	return newResult(StatusDegraded, message, kv)
}

func Unhealthy(message string, kv ...any) *Result {
	return newResult(StatusUnhealthy, message, kv)
}

type funcChecker struct {
	name string
	fn   func(context.Context) *Result
}

func (f funcChecker) Name() string                      { return f.name }
func (f funcChecker) Check(ctx context.Context) *Result { return f.fn(ctx) }

// Func adapts fn to a Checker called name.
func Func(name string, fn func(context.Context) *Result) Checker {
	return funcChecker{name: name, fn: fn}
}
