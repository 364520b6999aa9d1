package health

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"
)

type phase int32

const (
	phaseStarting phase = iota
	phaseServing
	phaseDraining
)

// ProbeManager answers liveness, readiness and startup probes for a
// process that moves from starting to serving to draining.
type ProbeManager struct {
	*Manager

	version string
	started time.Time
	phase   atomic.Int32
}

// NewProbeManager creates a ProbeManager in the starting phase.
func NewProbeManager(version string) *ProbeManager {
	return &ProbeManager{
		Manager: NewManager(DefaultTimeout),
		version: version,
		started: time.Now(),
	}
}

// MarkInitialized moves a starting process to serving.
func (pm *ProbeManager) MarkInitialized() {
	pm.phase.CompareAndSwap(int32(phaseStarting), int32(phaseServing))
}

// MarkShutdown starts draining: readiness fails from here on.
func (pm *ProbeManager) MarkShutdown() {
	pm.phase.Store(int32(phaseDraining))
}

func (pm *ProbeManager) current() phase { return phase(pm.phase.Load()) }

// ProbeResult is the body served for a probe.
type ProbeResult struct {
	Status    Status             `json:"status"`
	Version   string             `json:"version,omitempty"`
	Uptime    string             `json:"uptime,omitempty"`
	Checks    map[string]*Result `json:"checks,omitempty"`
	Timestamp time.Time          `json:"timestamp"`
}

// HTTPStatus is 503 for unhealthy; degraded still serves.
func (r *ProbeResult) HTTPStatus() int {
	if r.Status == StatusUnhealthy {
		return http.StatusServiceUnavailable
	}
	return http.StatusOK
}

func (pm *ProbeManager) probe(status Status, checks map[string]*Result) *ProbeResult {
	return &ProbeResult{
		Status:    status,
		Version:   pm.version,
		Uptime:    time.Since(pm.started).Round(time.Second).String(),
		Checks:    checks,
		Timestamp: time.Now().UTC(),
	}
}

// CheckLiveness runs no dependency checks. A draining process is degraded
// so it is not restarted mid-drain.
func (pm *ProbeManager) CheckLiveness(context.Context) *ProbeResult {
	if pm.current() == phaseDraining {
		return pm.probe(StatusDegraded, nil)
	}
	return pm.probe(StatusHealthy, nil)
}

// CheckReadiness runs every checker unless the process is draining.
func (pm *ProbeManager) CheckReadiness(ctx context.Context) *ProbeResult {
	if pm.current() == phaseDraining {
		return pm.probe(StatusUnhealthy, nil)
	}
	checks := pm.Check(ctx)
	return pm.probe(Overall(checks), checks)
}

// CheckStartup passes once the process has left the starting phase.
func (pm *ProbeManager) CheckStartup(context.Context) *ProbeResult {
	if pm.current() == phaseStarting {
		return pm.probe(StatusUnhealthy, nil)
	}
	return pm.probe(StatusHealthy, nil)
}
