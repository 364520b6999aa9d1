package graph

import (
	"encoding/hex"
	"encoding/json"
	"sort"

	"github.com/zeebo/blake3"
)

// Fingerprint returns a BLAKE3 hash of the graph definition: ids, types,
// dependencies and payloads. Statuses, results and timestamps are excluded,
// so a graph keeps its fingerprint while it executes.
func (g *Graph) Fingerprint() string {
	type canonicalTask struct {
		ID        string         `json:"id"`
		Type      string         `json:"type"`
		DependsOn []string       `json:"dependsOn"`
		Payload   map[string]any `json:"payload"`
	}

	tasks := make([]canonicalTask, len(g.Tasks))
	for i, t := range g.Tasks {
		deps := append([]string{}, t.DependsOn...)
		sort.Strings(deps)
		tasks[i] = canonicalTask{ID: t.ID, Type: t.Type, DependsOn: deps, Payload: t.Payload}
	}
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].ID < tasks[j].ID })

	// encoding/json sorts map keys, which keeps payload encoding stable
	data, err := json.Marshal(struct {
		ID    string          `json:"id"`
		Tasks []canonicalTask `json:"tasks"`
	}{g.ID, tasks})
	if err != nil {
		return ""
	}

	hasher := blake3.New()
	_, _ = hasher.Write(data)
	return hex.EncodeToString(hasher.Sum(nil))
}
