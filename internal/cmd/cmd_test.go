package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kingmaker16/codex-os/internal/exitcode"
	"github.com/Kingmaker16/codex-os/internal/graph"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

// collaborators fakes every service behind one base URL.
func collaborators(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/research/run":
			_, _ = w.Write([]byte(`{"summary":"ai is growing"}`))
		case "/social/trends":
			_, _ = w.Write([]byte(`{"trends":["#ai"]}`))
		default:
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"error":"boom"}`))
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func configFor(t *testing.T, dir, baseURL string) string {
	return writeFile(t, dir, "orchestrator.yaml", "routes:\n  base_url: "+baseURL+"\nlog:\n  level: error\n")
}

func TestVersionCommand(t *testing.T) {
	out, err := runCLI(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "orchestrator ")

	out, err = runCLI(t, "version", "--json")
	require.NoError(t, err)
	var info map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Contains(t, info, "version")
}

func TestRoutesCommand(t *testing.T) {
	dir := t.TempDir()
	cfg := writeFile(t, dir, "orchestrator.yaml", "log:\n  level: error\n")

	out, err := runCLI(t, "--config", cfg, "routes")
	require.NoError(t, err)
	assert.Contains(t, out, "http://localhost:4800/social/upload")
	assert.Contains(t, out, "social_post, post_video")

	out, err = runCLI(t, "--config", cfg, "routes", "--type", "SOCIAL_POST")
	require.NoError(t, err)
	assert.Contains(t, out, "POST http://localhost:4800/social/upload")

	out, err = runCLI(t, "--config", cfg, "routes", "--type", "research", "--json")
	require.NoError(t, err)
	var target map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &target))
	assert.Equal(t, "research", target["service"])

	_, err = runCLI(t, "--config", cfg, "routes", "--type", "xyz_unknown")
	require.Error(t, err)
	assert.Equal(t, exitcode.InvalidInput, exitcode.DetermineExitCode(err))
}

const pipelineYAML = `
id: pipeline
tasks:
  - id: research
    type: research
    payload:
      topic: ai
  - id: trends
    type: social_trends
    dependsOn: [research]
`

func TestRunCommand(t *testing.T) {
	dir := t.TempDir()
	cfg := configFor(t, dir, collaborators(t).URL)
	graphPath := writeFile(t, dir, "pipeline.yaml", pipelineYAML)
	outPath := filepath.Join(dir, "result.json")

	out, err := runCLI(t, "--config", cfg, "run", "--graph", graphPath, "--out", outPath)
	require.NoError(t, err)
	assert.Contains(t, out, "completed")
	assert.Contains(t, out, "trends")

	result, err := graph.Load(outPath)
	require.NoError(t, err)
	assert.True(t, result.IsComplete())
	trends, _ := result.Task("trends")
	assert.JSONEq(t, `{"trends":["#ai"]}`, string(trends.Result))
}

func TestRunCommandDeliversHooks(t *testing.T) {
	var mu sync.Mutex
	var events []string
	hookSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		events = append(events, r.Header.Get("X-Orchestrator-Event"))
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(hookSrv.Close)

	dir := t.TempDir()
	cfg := writeFile(t, dir, "orchestrator.yaml", "routes:\n  base_url: "+collaborators(t).URL+
		"\nlog:\n  level: error\nhooks:\n  - name: ops\n    url: "+hookSrv.URL+"\n    events: [task.failed]\n")
	graphPath := writeFile(t, dir, "g.json", `{"id":"g","tasks":[{"id":"a","type":"video_generate"}]}`)

	_, err := runCLI(t, "--config", cfg, "run", "--graph", graphPath)
	require.Error(t, err)

	// run waits for deliveries before returning
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"task.failed"}, events)
}

func TestRunCommandJSONAndFailures(t *testing.T) {
	dir := t.TempDir()
	cfg := configFor(t, dir, collaborators(t).URL)
	graphPath := writeFile(t, dir, "g.json", `{"id":"g","tasks":[
		{"id":"a","type":"video_generate"},
		{"id":"b","type":"research","dependsOn":["a"]}
	]}`)

	out, err := runCLI(t, "--config", cfg, "run", "--graph", graphPath, "--json")
	require.Error(t, err)
	assert.Equal(t, exitcode.TaskFailures, exitcode.DetermineExitCode(err))

	var decoded struct {
		Report struct {
			Outcome string `json:"outcome"`
		} `json:"report"`
		Graph graph.Graph `json:"graph"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.Equal(t, "completed", decoded.Report.Outcome)
	b, _ := decoded.Graph.Task("b")
	assert.Equal(t, "blocked by failed dependency a", b.Error)
}

func TestRunCommandStuckGraph(t *testing.T) {
	dir := t.TempDir()
	cfg := configFor(t, dir, collaborators(t).URL)
	graphPath := writeFile(t, dir, "cycle.json", `{"id":"c","tasks":[
		{"id":"a","type":"research","dependsOn":["b"]},
		{"id":"b","type":"research","dependsOn":["a"]}
	]}`)

	out, err := runCLI(t, "--config", cfg, "run", "--graph", graphPath)
	require.Error(t, err)
	assert.Equal(t, exitcode.Incomplete, exitcode.DetermineExitCode(err))
	assert.Contains(t, out, "stuck")
}

func TestRunCommandErrors(t *testing.T) {
	dir := t.TempDir()
	cfg := configFor(t, dir, "http://localhost:1")

	_, err := runCLI(t, "--config", cfg, "run")
	require.Error(t, err)
	assert.Equal(t, exitcode.UsageError, exitcode.DetermineExitCode(err))

	_, err = runCLI(t, "--config", cfg, "run", "--graph", filepath.Join(dir, "missing.json"))
	require.Error(t, err)
	assert.Equal(t, exitcode.InvalidInput, exitcode.DetermineExitCode(err))

	_, err = runCLI(t, "--config", filepath.Join(dir, "nope.yaml"), "routes")
	require.Error(t, err)
	assert.Equal(t, exitcode.InvalidInput, exitcode.DetermineExitCode(err))
}

func TestValidateCommand(t *testing.T) {
	dir := t.TempDir()
	cfg := writeFile(t, dir, "orchestrator.yaml", "log:\n  level: error\n")

	good := writeFile(t, dir, "good.yaml", pipelineYAML)
	out, err := runCLI(t, "--config", cfg, "validate", "--graph", good)
	require.NoError(t, err)
	assert.Contains(t, out, "2 tasks, 2 rounds")
	assert.Contains(t, out, "round 2")

	cycle := writeFile(t, dir, "cycle.json", `{"id":"c","tasks":[
		{"id":"a","type":"research","dependsOn":["b"]},
		{"id":"b","type":"research","dependsOn":["a"]},
		{"id":"c","type":"research"}
	]}`)
	out, err = runCLI(t, "--config", cfg, "validate", "--graph", cycle)
	require.NoError(t, err)
	assert.Contains(t, out, "never runnable")

	_, err = runCLI(t, "--config", cfg, "validate", "--graph", cycle, "--strict")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GRAPH-007")

	unrouted := writeFile(t, dir, "unrouted.json", `{"id":"u","tasks":[{"id":"a","type":"xyz_unknown"}]}`)
	_, err = runCLI(t, "--config", cfg, "validate", "--graph", unrouted)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "a (xyz_unknown)")
}
