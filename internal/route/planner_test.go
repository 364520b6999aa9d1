package route

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kingmaker16/codex-os/internal/errors"
	"github.com/Kingmaker16/codex-os/internal/graph"
)

func defaultPlanner(t *testing.T, opts Options) *Planner {
	t.Helper()
	p, err := Default(opts)
	require.NoError(t, err)
	return p
}

func TestDefaultTable(t *testing.T) {
	p := defaultPlanner(t, Options{BaseURL: "http://gateway:8080"})

	tests := []struct {
		taskType string
		service  string
		method   string
		path     string
	}{
		{"social_post", "social", "POST", "/social/upload"},
		{"post_video", "social", "POST", "/social/upload"},
		{"social_plan", "social", "POST", "/social/plan"},
		{"plan_content", "social", "POST", "/social/plan"},
		{"social_caption", "social", "POST", "/social/generateCaption"},
		{"generate_caption", "social", "POST", "/social/generateCaption"},
		{"social_trends", "social", "GET", "/social/trends"},
		{"generate_video", "video", "POST", "/video/generate"},
		{"create_video", "video", "POST", "/video/generate"},
		{"optimize_mac", "optimizer", "POST", "/optimize/run"},
		{"system_optimize", "optimizer", "POST", "/optimize/run"},
		{"research", "research", "POST", "/research/run"},
		{"knowledge_query", "research", "POST", "/research/run"},
		{"summarize_revenue", "monetization", "GET", "/monetization/summary"},
		{"get_revenue", "monetization", "GET", "/monetization/summary"},
		{"record_revenue", "monetization", "POST", "/monetization/recordRevenue"},
		{"diagnostics", "orchestrator", "POST", "/orchestrator/diagnostics"},
		{"health_check", "orchestrator", "POST", "/orchestrator/diagnostics"},
		{"hands_task", "hands", "POST", "/hands/executeTask"},
		{"browser_automation", "hands", "POST", "/hands/executeTask"},
		{"vision_analyze", "vision", "POST", "/vision/analyze"},
		{"image_analysis", "vision", "POST", "/vision/analyze"},
		{"voice_tts", "voice", "POST", "/voice/tts"},
		{"text_to_speech", "voice", "POST", "/voice/tts"},
		{"voice_stt", "voice", "POST", "/voice/stt"},
		{"speech_to_text", "voice", "POST", "/voice/stt"},
	}

	require.Len(t, p.Types(), len(tests), "every alias is covered")

	for _, tt := range tests {
		t.Run(tt.taskType, func(t *testing.T) {
			target, err := p.PlanRoute(graph.Task{ID: "t", Type: tt.taskType})
			require.NoError(t, err)
			assert.Equal(t, tt.service, target.Service)
			assert.Equal(t, tt.method, target.Method)
			assert.Equal(t, "http://gateway:8080"+tt.path, target.URL)
		})
	}
}

func TestPlanRouteCaseInsensitive(t *testing.T) {
	p := defaultPlanner(t, Options{})

	target, err := p.PlanRoute(graph.Task{Type: "Social_POST"})
	require.NoError(t, err)
	assert.Equal(t, "POST", target.Method)
	assert.Equal(t, "http://localhost:4800/social/upload", target.URL)
	assert.Equal(t, "POST http://localhost:4800/social/upload", target.String())
}

func TestPlanRouteUnknownType(t *testing.T) {
	p := defaultPlanner(t, Options{})

	_, err := p.PlanRoute(graph.Task{Type: "xyz_unknown"})
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrUnknownTaskType)
	assert.Contains(t, err.Error(), "xyz_unknown")
}

func TestServiceOverrides(t *testing.T) {
	p := defaultPlanner(t, Options{Services: map[string]string{"voice": "https://voice.internal/"}})

	target, err := p.Lookup("voice_stt")
	require.NoError(t, err)
	assert.Equal(t, "https://voice.internal/voice/stt", target.URL)

	target, err = p.Lookup("research")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:4500/research/run", target.URL)

	services := p.Services()
	assert.Equal(t, "https://voice.internal", services["voice"])
	assert.Equal(t, "http://localhost:4500", services["research"])
	services["voice"] = "mutated"
	assert.Equal(t, "https://voice.internal", p.Services()["voice"])
}

func TestEntriesAreCopies(t *testing.T) {
	p := defaultPlanner(t, Options{})
	entries := p.Entries()
	require.Len(t, entries, 14)
	assert.Equal(t, []string{"social_post", "post_video"}, entries[0].Types)

	entries[0].Types[0] = "mutated"
	_, err := p.Lookup("social_post")
	assert.NoError(t, err)
	assert.Equal(t, "social_post", p.Entries()[0].Types[0])
}

func TestNewPlannerValidation(t *testing.T) {
	base := map[string]string{"svc": "http://localhost:1"}

	tests := []struct {
		name string
		doc  *Document
	}{
		{"nil document", nil},
		{"no routes", &Document{Services: base}},
		{"bad method", &Document{Services: base, Routes: []Route{{Types: []string{"a"}, Service: "svc", Method: "PUT", Path: "/a"}}}},
		{"relative path", &Document{Services: base, Routes: []Route{{Types: []string{"a"}, Service: "svc", Method: "GET", Path: "a"}}}},
		{"no types", &Document{Services: base, Routes: []Route{{Service: "svc", Method: "GET", Path: "/a"}}}},
		{"missing base URL", &Document{Routes: []Route{{Types: []string{"a"}, Service: "svc", Method: "GET", Path: "/a"}}}},
		{"relative base URL", &Document{Services: map[string]string{"svc": "localhost"}, Routes: []Route{{Types: []string{"a"}, Service: "svc", Method: "GET", Path: "/a"}}}},
		{"duplicate alias", &Document{Services: base, Routes: []Route{
			{Types: []string{"a"}, Service: "svc", Method: "GET", Path: "/a"},
			{Types: []string{"A"}, Service: "svc", Method: "POST", Path: "/b"},
		}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewPlanner(tt.doc, Options{})
			require.Error(t, err)
			assert.Equal(t, errors.ErrCodeRouteTableInvalid, errors.CodeOf(err))
		})
	}
}

func TestLoadDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "routes.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
services:
  echo: http://127.0.0.1:9000
routes:
  - types: [echo, ping]
    service: echo
    method: get
    path: /echo
`), 0o600))

	doc, err := LoadDocument(path)
	require.NoError(t, err)

	p, err := NewPlanner(doc, Options{})
	require.NoError(t, err)

	target, err := p.Lookup("PING")
	require.NoError(t, err)
	assert.Equal(t, Target{Service: "echo", Method: "GET", URL: "http://127.0.0.1:9000/echo"}, target)

	_, err = LoadDocument(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Equal(t, errors.ErrCodeFileNotFound, errors.CodeOf(err))
}
