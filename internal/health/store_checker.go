package health

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"sync"

	"github.com/Kingmaker16/codex-os/internal/errors"
)

// Pinger is the part of the graph repository the store check needs.
type Pinger interface {
	Ping(ctx context.Context) error
}

// StoreChecker reports the graph repository unhealthy when it cannot be
// pinged.
type StoreChecker struct {
	store   Pinger
	backend string
}

// NewStoreChecker creates a checker for the named repository backend.
func NewStoreChecker(store Pinger, backend string) *StoreChecker {
	return &StoreChecker{store: store, backend: backend}
}

func (c *StoreChecker) Name() string { return "graph-store" }

func (c *StoreChecker) Check(ctx context.Context) *Result {
	if err := c.store.Ping(ctx); err != nil {
		return Unhealthy(fmt.Sprintf("graph store unavailable: %s", errors.Brief(err)),
			"backend", c.backend,
			"error_code", string(errors.CodeOf(err)),
		)
	}
	return Healthy("graph store reachable", "backend", c.backend)
}

// ServiceChecker probes the base URL of every downstream service. Any
// response, even an error status, counts as reachable. Unreachable
// services make the orchestrator degraded rather than unhealthy, since
// graphs that do not use them still run.
type ServiceChecker struct {
	client   *http.Client
	services map[string]string
}

// NewServiceChecker creates a checker for services, a map of service name
// to base URL.
func NewServiceChecker(client *http.Client, services map[string]string) *ServiceChecker {
	if client == nil {
		client = http.DefaultClient
	}
	return &ServiceChecker{client: client, services: services}
}

func (c *ServiceChecker) Name() string { return "services" }

func (c *ServiceChecker) Check(ctx context.Context) *Result {
	names := make([]string, 0, len(c.services))
	for name := range c.services {
		names = append(names, name)
	}
	sort.Strings(names)

	var (
		mu          sync.Mutex
		wg          sync.WaitGroup
		unreachable []string
		status      = make(map[string]string, len(names))
	)
	for _, name := range names {
		wg.Add(1)
		go func(name, url string) {
			defer wg.Done()
			state := "reachable"
			if err := c.ping(ctx, url); err != nil {
				state = "unreachable"
			}
			mu.Lock()
			status[name] = state
			if state == "unreachable" {
				unreachable = append(unreachable, name)
			}
			mu.Unlock()
		}(name, c.services[name])
	}
	wg.Wait()
	sort.Strings(unreachable)

	details := make([]any, 0, 2*len(status)+2)
	for _, name := range names {
		details = append(details, name, status[name])
	}
	if len(unreachable) == 0 {
		return Healthy(fmt.Sprintf("%d services reachable", len(names)), details...)
	}
	details = append(details, "unreachable", unreachable)
	return Degraded(fmt.Sprintf("%d of %d services unreachable", len(unreachable), len(names)), details...)
}

func (c *ServiceChecker) ping(ctx context.Context, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	return resp.Body.Close()
}
