package engine

import (
	"context"
	"time"

	"github.com/Kingmaker16/codex-os/internal/hooks"
	"github.com/Kingmaker16/codex-os/internal/log"
	"github.com/Kingmaker16/codex-os/internal/metrics"
)

// Defaults for Options.
const (
	DefaultMaxIterations = 100
	DefaultCallTimeout   = 30 * time.Second
	DefaultRoundTimeout  = 2 * time.Minute
)

// Options configure an Engine. Zero values take the defaults above; a
// negative timeout disables that deadline.
type Options struct {
	// MaxIterations caps the number of rounds per execution.
	MaxIterations int
	// CallTimeout bounds each collaborator call.
	CallTimeout time.Duration
	// RoundTimeout bounds a whole round.
	RoundTimeout time.Duration
	// MaxParallel caps concurrent calls within a round. 0 is unbounded.
	MaxParallel int
	// DisableCascade leaves dependents of a failed task pending instead of
	// failing them.
	DisableCascade bool

	Logger  *log.Logger
	Metrics *metrics.Metrics
	// Hooks receives lifecycle events. It must not block.
	Hooks Notifier
}

// Notifier receives execution lifecycle events. *hooks.Registry implements
// it.
type Notifier interface {
	Notify(ctx context.Context, event *hooks.Event)
}

// DefaultOptions returns the default engine options.
func DefaultOptions() Options {
	return Options{
		MaxIterations: DefaultMaxIterations,
		CallTimeout:   DefaultCallTimeout,
		RoundTimeout:  DefaultRoundTimeout,
	}
}

func (o Options) withDefaults() Options {
	if o.MaxIterations <= 0 {
		o.MaxIterations = DefaultMaxIterations
	}
	if o.CallTimeout == 0 {
		o.CallTimeout = DefaultCallTimeout
	}
	if o.RoundTimeout == 0 {
		o.RoundTimeout = DefaultRoundTimeout
	}
	if o.MaxParallel < 0 {
		o.MaxParallel = 0
	}
	if o.Logger == nil {
		o.Logger = log.Nop()
	}
	return o
}
