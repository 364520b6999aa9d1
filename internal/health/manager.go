package health

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// DefaultTimeout bounds each check when the Manager is given none.
const DefaultTimeout = 5 * time.Second

// Manager runs its checkers concurrently, each under the same timeout.
// Checkers are kept in registration order; adding a name again replaces
// the earlier checker in place.
type Manager struct {
	timeout time.Duration

	mu       sync.RWMutex
	checkers []Checker
}

// NewManager creates a Manager. A non-positive timeout uses DefaultTimeout.
func NewManager(timeout time.Duration) *Manager {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Manager{timeout: timeout}
}

func (m *Manager) AddChecker(c Checker) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.checkers {
		if m.checkers[i].Name() == c.Name() {
			m.checkers[i] = c
			return
		}
	}
	m.checkers = append(m.checkers, c)
}

// Names lists the registered checkers in order.
func (m *Manager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.checkers))
	for _, c := range m.checkers {
		names = append(names, c.Name())
	}
	return names
}

// Check runs every checker and returns the results keyed by name. A
// checker returning nil is reported unhealthy.
func (m *Manager) Check(ctx context.Context) map[string]*Result {
	m.mu.RLock()
	checkers := append([]Checker(nil), m.checkers...)
	m.mu.RUnlock()

	results := make([]*Result, len(checkers))
	var g errgroup.Group
	for i, c := range checkers {
		g.Go(func() error {
			results[i] = m.run(ctx, c)
			return nil
		})
	}
	_ = g.Wait()

	byName := make(map[string]*Result, len(checkers))
	for i, c := range checkers {
		byName[c.Name()] = results[i]
	}
	return byName
}

func (m *Manager) run(ctx context.Context, c Checker) *Result {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	start := time.Now()
	r := c.Check(ctx)
	if r == nil {
		r = Unhealthy("check returned no result")
	}
	r.Latency = time.Since(start)
	return r
}

// Overall is the worst status in results.
func Overall(results map[string]*Result) Status {
	statuses := make([]Status, 0, len(results))
	for _, r := range results {
		statuses = append(statuses, r.Status)
	}
	return Worst(statuses...)
}
