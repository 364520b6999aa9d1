package health

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kingmaker16/codex-os/internal/errors"
)

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func fixed(name string, status Status) Checker {
	return Func(name, func(context.Context) *Result {
		return newResult(status, name, nil)
	})
}

func TestManagerCheck(t *testing.T) {
	m := NewManager(0)
	m.AddChecker(fixed("a", StatusHealthy))
	m.AddChecker(fixed("b", StatusDegraded))
	m.AddChecker(Func("nil", func(context.Context) *Result { return nil }))

	results := m.Check(context.Background())
	require.Len(t, results, 3)
	assert.Equal(t, StatusHealthy, results["a"].Status)
	assert.Equal(t, StatusDegraded, results["b"].Status)
	assert.Equal(t, StatusUnhealthy, results["nil"].Status)
	assert.Equal(t, []string{"a", "b", "nil"}, m.Names())
}

func TestManagerTimeout(t *testing.T) {
	m := NewManager(20 * time.Millisecond)
	m.AddChecker(Func("slow", func(ctx context.Context) *Result {
		<-ctx.Done()
		return Unhealthy(ctx.Err().Error())
	}))

	start := time.Now()
	results := m.Check(context.Background())
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, StatusUnhealthy, results["slow"].Status)
	assert.Positive(t, results["slow"].Latency)
}

func TestManagerAddReplaces(t *testing.T) {
	m := NewManager(0)
	m.AddChecker(fixed("a", StatusHealthy))
	m.AddChecker(fixed("b", StatusHealthy))
	m.AddChecker(fixed("a", StatusUnhealthy))
	assert.Equal(t, []string{"a", "b"}, m.Names())
	assert.Equal(t, StatusUnhealthy, m.Check(context.Background())["a"].Status)
}

func TestResultDetails(t *testing.T) {
	r := Degraded("partial", "backend", "sqlite", "count", 2, "dangling")
	assert.Equal(t, map[string]any{"backend": "sqlite", "count": 2}, r.Details)
	assert.Nil(t, Healthy("ok").Details)
}

func TestOverall(t *testing.T) {
	tests := []struct {
		name    string
		results map[string]*Result
		want    Status
	}{
		{"empty", nil, StatusHealthy},
		{"all healthy", map[string]*Result{"a": Healthy("")}, StatusHealthy},
		{"degraded", map[string]*Result{"a": Healthy(""), "b": Degraded("")}, StatusDegraded},
		{"unhealthy wins", map[string]*Result{"a": Degraded(""), "b": Unhealthy("")}, StatusUnhealthy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Overall(tt.results))
		})
	}
}

func TestProbes(t *testing.T) {
	pm := NewProbeManager("1.2.3")
	pm.AddChecker(fixed("store", StatusHealthy))
	ctx := context.Background()

	startup := pm.CheckStartup(ctx)
	assert.Equal(t, StatusUnhealthy, startup.Status)
	assert.Equal(t, http.StatusServiceUnavailable, startup.HTTPStatus())

	pm.MarkInitialized()
	assert.Equal(t, StatusHealthy, pm.CheckStartup(ctx).Status)

	live := pm.CheckLiveness(ctx)
	assert.Equal(t, StatusHealthy, live.Status)
	assert.Equal(t, "1.2.3", live.Version)
	assert.Empty(t, live.Checks)

	ready := pm.CheckReadiness(ctx)
	assert.Equal(t, StatusHealthy, ready.Status)
	assert.Contains(t, ready.Checks, "store")

	pm.MarkShutdown()
	assert.Equal(t, StatusDegraded, pm.CheckLiveness(ctx).Status)
	assert.Equal(t, http.StatusOK, pm.CheckLiveness(ctx).HTTPStatus())
	assert.Equal(t, StatusUnhealthy, pm.CheckReadiness(ctx).Status)

	// a late MarkInitialized does not end the drain
	pm.MarkInitialized()
	assert.Equal(t, StatusUnhealthy, pm.CheckReadiness(ctx).Status)
}

func TestStoreChecker(t *testing.T) {
	ok := NewStoreChecker(pingerFunc(func(context.Context) error { return nil }), "sqlite")
	assert.Equal(t, "graph-store", ok.Name())
	res := ok.Check(context.Background())
	assert.Equal(t, StatusHealthy, res.Status)
	assert.Equal(t, "sqlite", res.Details["backend"])

	failing := NewStoreChecker(pingerFunc(func(context.Context) error {
		return errors.Wrap(errors.ErrCodeStoreBackend, "ping sqlite", fmt.Errorf("disk I/O error"))
	}), "sqlite")
	res = failing.Check(context.Background())
	assert.Equal(t, StatusUnhealthy, res.Status)
	assert.Equal(t, "STORE-002", res.Details["error_code"])
	assert.Contains(t, res.Message, "disk I/O error")
}

func TestServiceChecker(t *testing.T) {
	up := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer up.Close()

	down := httptest.NewServer(http.NotFoundHandler())
	downURL := down.URL
	down.Close()

	res := NewServiceChecker(up.Client(), map[string]string{"social": up.URL}).Check(context.Background())
	assert.Equal(t, StatusHealthy, res.Status)
	assert.Equal(t, "reachable", res.Details["social"])

	res = NewServiceChecker(nil, map[string]string{"social": up.URL, "video": downURL}).Check(context.Background())
	assert.Equal(t, StatusDegraded, res.Status)
	assert.Equal(t, []string{"video"}, res.Details["unreachable"])
	assert.Equal(t, "unreachable", res.Details["video"])
}
