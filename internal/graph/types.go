// Package graph holds the task graph data model and the operations the
// execution engine drives it with.
//
// A Graph is a set of tasks joined by dependsOn edges. Tasks move through
// pending -> running -> {done, failed} and never go back. A task becomes
// runnable once every task it depends on is done; a failed dependency never
// satisfies the requirement.
package graph

import (
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/Kingmaker16/codex-os/internal/domain"
)

// Task is a single unit of work: a capability type plus the JSON payload
// sent to the service that implements it.
type Task struct {
	ID        string            `json:"id"`
	Type      string            `json:"type"`
	Status    domain.TaskStatus `json:"status"`
	DependsOn []string          `json:"dependsOn,omitempty"`
	Payload   map[string]any    `json:"payload,omitempty"`
	Result    json.RawMessage   `json:"result,omitempty"` // set only when done
	Error     string            `json:"error,omitempty"`  // set only when failed
}

// Graph is the DAG being executed. A Graph must not be copied after first
// use; use Clone.
type Graph struct {
	ID        string    `json:"id"`
	Tasks     []Task    `json:"tasks"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	index map[string]int
	inUse atomic.Bool
}

// Counts is a per-status tally of a graph's tasks.
type Counts struct {
	Total   int `json:"total"`
	Pending int `json:"pending"`
	Running int `json:"running"`
	Done    int `json:"done"`
	Failed  int `json:"failed"`
}

// now is swapped by tests that need stable timestamps.
var now = func() time.Time { return time.Now().UTC() }
