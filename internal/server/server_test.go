package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kingmaker16/codex-os/internal/engine"
	"github.com/Kingmaker16/codex-os/internal/enrich"
	"github.com/Kingmaker16/codex-os/internal/graph"
	"github.com/Kingmaker16/codex-os/internal/health"
	"github.com/Kingmaker16/codex-os/internal/invoke"
	"github.com/Kingmaker16/codex-os/internal/metrics"
	"github.com/Kingmaker16/codex-os/internal/route"
	"github.com/Kingmaker16/codex-os/internal/store"
)

type fixture struct {
	server  *Server
	store   store.Repository
	metrics *metrics.Metrics
}

func newFixture(t *testing.T, invoker invoke.Invoker) *fixture {
	t.Helper()

	planner, err := route.Default(route.Options{BaseURL: "http://collaborators.test"})
	require.NoError(t, err)

	if invoker == nil {
		invoker = invoke.InvokerFunc(func(ctx context.Context, target route.Target, payload map[string]any) (json.RawMessage, error) {
			return json.RawMessage(`{"ok":true}`), nil
		})
	}

	reg, m := metrics.NewRegistry()
	repo := store.NewMemory()
	probes := health.NewProbeManager("test")
	probes.AddChecker(health.NewStoreChecker(repo, store.BackendMemory))

	eng := engine.New(planner, enrich.New(enrich.Options{}), invoker, engine.Options{Metrics: m})
	srv := NewServer(Deps{
		Store:    repo,
		Executor: eng,
		Routes:   planner,
		Probes:   probes,
		Metrics:  m,
		Gatherer: reg,
	}, Config{Address: ":0"})

	return &fixture{server: srv, store: repo, metrics: m}
}

func (f *fixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader([]byte(body)))
	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

const pipeline = `{
	"id": "g1",
	"tasks": [
		{"id": "research", "type": "research", "payload": {"topic": "ai"}},
		{"id": "trends", "type": "social_trends", "dependsOn": ["research"]}
	]
}`

func TestNewServerDefaults(t *testing.T) {
	f := newFixture(t, nil)
	assert.Equal(t, 30*time.Second, f.server.shutdownTimeout)
	assert.Equal(t, 10*time.Second, f.server.httpServer.ReadTimeout)
	assert.Equal(t, 5*time.Minute, f.server.httpServer.WriteTimeout)
	assert.Equal(t, 60*time.Second, f.server.httpServer.IdleTimeout)
}

func TestCreateAndGetGraph(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do(t, http.MethodPost, "/graphs", pipeline)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "/graphs/g1", rec.Header().Get("Location"))
	assert.True(t, strings.HasPrefix(rec.Header().Get("ETag"), `W/"`))

	var created graph.Graph
	decodeBody(t, rec, &created)
	assert.Equal(t, "g1", created.ID)
	assert.Equal(t, "pending", created.Tasks[0].Status.String())

	rec = f.do(t, http.MethodGet, "/graphs/g1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var got graph.Graph
	decodeBody(t, rec, &got)
	assert.Len(t, got.Tasks, 2)

	rec = f.do(t, http.MethodPost, "/graphs", pipeline)
	assert.Equal(t, http.StatusConflict, rec.Code)
	var body errorBody
	decodeBody(t, rec, &body)
	assert.Equal(t, "STORE-003", body.Code)
}

func TestCreateGraphGeneratesID(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do(t, http.MethodPost, "/graphs", `{"tasks":[{"id":"a","type":"research"}]}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var created graph.Graph
	decodeBody(t, rec, &created)
	assert.Len(t, created.ID, 26)
}

func TestCreateGraphRejectsInvalid(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		body     string
		wantCode string
	}{
		{"malformed json", "/graphs", `{"tasks":`, "IO-005"},
		{"duplicate ids", "/graphs", `{"tasks":[{"id":"a","type":"x"},{"id":"a","type":"x"}]}`, "GRAPH-002"},
		{"path-like graph id", "/graphs", `{"id":"../x","tasks":[{"id":"a","type":"x"}]}`, "GRAPH-001"},
		{"dangling dependency", "/graphs", `{"tasks":[{"id":"a","type":"x","dependsOn":["zz"]}]}`, "GRAPH-003"},
		{"cycle in strict mode", "/graphs?strict=true", `{"tasks":[{"id":"a","type":"x","dependsOn":["b"]},{"id":"b","type":"x","dependsOn":["a"]}]}`, "GRAPH-007"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, nil)
			rec := f.do(t, http.MethodPost, tt.path, tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)

			var body errorBody
			decodeBody(t, rec, &body)
			assert.Equal(t, tt.wantCode, body.Code)
			assert.NotContains(t, body.Error, "\n")
		})
	}
}

func TestGetGraphWithPathLikeID(t *testing.T) {
	f := newFixture(t, nil)
	rec := f.do(t, http.MethodGet, "/graphs/..%2Fx", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCycleAcceptedWithoutStrict(t *testing.T) {
	f := newFixture(t, nil)
	rec := f.do(t, http.MethodPost, "/graphs", `{"tasks":[{"id":"a","type":"x","dependsOn":["b"]},{"id":"b","type":"x","dependsOn":["a"]}]}`)
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestListAndDeleteGraphs(t *testing.T) {
	f := newFixture(t, nil)
	require.Equal(t, http.StatusCreated, f.do(t, http.MethodPost, "/graphs", pipeline).Code)

	rec := f.do(t, http.MethodGet, "/graphs", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Graphs []store.Summary `json:"graphs"`
	}
	decodeBody(t, rec, &list)
	require.Len(t, list.Graphs, 1)
	assert.Equal(t, 2, list.Graphs[0].Counts.Pending)

	assert.Equal(t, http.StatusNoContent, f.do(t, http.MethodDelete, "/graphs/g1", "").Code)
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodDelete, "/graphs/g1", "").Code)
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/graphs/g1", "").Code)
}

func TestExecuteGraph(t *testing.T) {
	var (
		mu    sync.Mutex
		calls []string
	)
	f := newFixture(t, invoke.InvokerFunc(func(ctx context.Context, target route.Target, payload map[string]any) (json.RawMessage, error) {
		mu.Lock()
		calls = append(calls, target.String())
		mu.Unlock()
		if target.Service == "research" {
			return json.RawMessage(`{"summary":"ai is growing"}`), nil
		}
		return json.RawMessage(`{"trends":["#ai"]}`), nil
	}))
	require.Equal(t, http.StatusCreated, f.do(t, http.MethodPost, "/graphs", pipeline).Code)

	rec := f.do(t, http.MethodPost, "/graphs/g1/execute", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp executeResponse
	decodeBody(t, rec, &resp)
	assert.Equal(t, engine.OutcomeCompleted, resp.Report.Outcome)
	assert.Equal(t, 2, resp.Report.Rounds)
	assert.Equal(t, 2, resp.Report.Counts.Done)
	assert.Equal(t, []string{
		"POST http://collaborators.test/research/run",
		"POST http://collaborators.test/social/trends",
	}, calls)

	stored, err := f.store.Get(context.Background(), "g1")
	require.NoError(t, err)
	assert.True(t, stored.IsComplete())
	trends, _ := stored.Task("trends")
	assert.JSONEq(t, `{"trends":["#ai"]}`, string(trends.Result))
}

func TestExecuteRecordsTaskFailures(t *testing.T) {
	f := newFixture(t, nil)
	body := `{"id":"g2","tasks":[{"id":"a","type":"xyz_unknown"},{"id":"b","type":"research","dependsOn":["a"]}]}`
	require.Equal(t, http.StatusCreated, f.do(t, http.MethodPost, "/graphs", body).Code)

	rec := f.do(t, http.MethodPost, "/graphs/g2/execute", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp executeResponse
	decodeBody(t, rec, &resp)
	a, _ := resp.Graph.Task("a")
	b, _ := resp.Graph.Task("b")
	assert.Equal(t, "[ROUTE-001] unknown task type: xyz_unknown", a.Error)
	assert.Equal(t, "blocked by failed dependency a", b.Error)
	assert.Equal(t, 2, resp.Report.Counts.Failed)
}

func TestExecuteMissingGraph(t *testing.T) {
	f := newFixture(t, nil)
	rec := f.do(t, http.MethodPost, "/graphs/nope/execute", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	var body errorBody
	decodeBody(t, rec, &body)
	assert.Equal(t, "STORE-001", body.Code)
}

func TestExecuteConflict(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	f := newFixture(t, invoke.InvokerFunc(func(ctx context.Context, target route.Target, payload map[string]any) (json.RawMessage, error) {
		started <- struct{}{}
		<-release
		return json.RawMessage(`{}`), nil
	}))
	require.Equal(t, http.StatusCreated, f.do(t, http.MethodPost, "/graphs", `{"id":"g1","tasks":[{"id":"a","type":"research"}]}`).Code)

	done := make(chan int, 1)
	go func() {
		done <- f.do(t, http.MethodPost, "/graphs/g1/execute", "").Code
	}()
	<-started

	rec := f.do(t, http.MethodPost, "/graphs/g1/execute", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	var body errorBody
	decodeBody(t, rec, &body)
	assert.Equal(t, "GRAPH-006", body.Code)

	assert.Equal(t, http.StatusConflict, f.do(t, http.MethodDelete, "/graphs/g1", "").Code)

	close(release)
	assert.Equal(t, http.StatusOK, <-done)
}

func TestRoutes(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do(t, http.MethodGet, "/routes", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var table struct {
		Routes []route.Entry `json:"routes"`
	}
	decodeBody(t, rec, &table)
	assert.Len(t, table.Routes, 14)

	rec = f.do(t, http.MethodPost, "/routes/plan", `{"type":"Social_Post"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var plan planResponse
	decodeBody(t, rec, &plan)
	assert.Equal(t, "POST", plan.Target.Method)
	assert.Equal(t, "http://collaborators.test/social/upload", plan.Target.URL)

	rec = f.do(t, http.MethodPost, "/routes/plan", `{"type":"xyz_unknown"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodPost, "/routes/plan", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthEndpoints(t *testing.T) {
	f := newFixture(t, nil)

	assert.Equal(t, http.StatusServiceUnavailable, f.do(t, http.MethodGet, "/health/startup", "").Code)
	f.server.deps.Probes.MarkInitialized()
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/health/startup", "").Code)

	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/health/live", "").Code)

	rec := f.do(t, http.MethodGet, "/health/ready", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var probe health.ProbeResult
	decodeBody(t, rec, &probe)
	assert.Equal(t, health.StatusHealthy, probe.Status)
	assert.Contains(t, probe.Checks, "graph-store")

	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/healthz", "").Code)
}

func TestShutdownFailsReadiness(t *testing.T) {
	f := newFixture(t, nil)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, f.server.Shutdown(ctx))

	assert.True(t, f.server.IsShuttingDown())
	assert.Equal(t, http.StatusServiceUnavailable, f.do(t, http.MethodGet, "/health/ready", "").Code)
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/health/live", "").Code)
}

func TestMetricsEndpointAndRequestCounter(t *testing.T) {
	f := newFixture(t, nil)
	f.do(t, http.MethodGet, "/graphs", "")
	f.do(t, http.MethodGet, "/graphs/missing", "")

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.HTTPRequests.WithLabelValues("GET", "/graphs", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.HTTPRequests.WithLabelValues("GET", "/graphs/{id}", "404")))

	rec := f.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "orchestrator_http_requests_total")
}
