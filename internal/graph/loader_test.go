package graph

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kingmaker16/codex-os/internal/domain"
	"github.com/Kingmaker16/codex-os/internal/errors"
)

func TestLoadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "graph.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"id": "g1",
		"tasks": [
			{"id": "t1", "type": "research", "payload": {"query": "go"}},
			{"id": "t2", "type": "social_trends", "dependsOn": ["t1"]}
		]
	}`), 0o600))

	g, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "g1", g.ID)
	require.Len(t, g.Tasks, 2)
	assert.Equal(t, domain.StatusPending, g.Tasks[1].Status)
	assert.Equal(t, "go", g.Tasks[0].Payload["query"])
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "graph.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
id: g2
tasks:
  - id: t1
    type: research
    payload:
      query: go
      limit: 3
  - id: t2
    type: social_post
    dependsOn: [t1]
    payload:
      videoFromTask: x
`), 0o600))

	g, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "g2", g.ID)
	assert.Equal(t, float64(3), g.Tasks[0].Payload["limit"])
	assert.Equal(t, []string{"t1"}, g.Tasks[1].DependsOn)
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(filepath.Join(dir, "missing.json"))
	assert.Equal(t, errors.ErrCodeFileNotFound, errors.CodeOf(err))

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"id":`), 0o600))
	_, err = Load(bad)
	assert.Equal(t, errors.ErrCodeFileUnmarshal, errors.CodeOf(err))

	dangling := filepath.Join(dir, "dangling.json")
	require.NoError(t, os.WriteFile(dangling, []byte(`{"id":"g","tasks":[{"id":"b","type":"x","dependsOn":["zz"]}]}`), 0o600))
	_, err = Load(dangling)
	assert.Equal(t, errors.ErrCodeGraphDanglingDep, errors.CodeOf(err))
}

func TestSaveAndLoad(t *testing.T) {
	for _, name := range []string{"out.json", "nested/out.yml"} {
		t.Run(name, func(t *testing.T) {
			g := diamond(t)
			require.NoError(t, g.UpdateTaskStatus("a", domain.StatusRunning, nil, ""))
			require.NoError(t, g.UpdateTaskStatus("a", domain.StatusDone, []byte(`{"items":[1,2]}`), ""))

			path := filepath.Join(t.TempDir(), name)
			require.NoError(t, Save(g, path))

			loaded, err := Load(path)
			require.NoError(t, err)
			assert.Equal(t, g.Fingerprint(), loaded.Fingerprint())
			assert.Equal(t, g.Summary(), loaded.Summary())

			a, _ := loaded.Task("a")
			assert.JSONEq(t, `{"items":[1,2]}`, string(a.Result))
			assert.True(t, g.CreatedAt.Equal(loaded.CreatedAt))
		})
	}
}
