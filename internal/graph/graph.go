package graph

import (
	"encoding/json"
	"time"

	"github.com/Kingmaker16/codex-os/internal/domain"
	"github.com/Kingmaker16/codex-os/internal/errors"
)

// New builds a graph from tasks and validates it. Tasks with no status are
// set to pending. Dangling dependencies and duplicate ids are rejected here,
// never at run time.
func New(id string, tasks []Task) (*Graph, error) {
	ts := now()
	g := &Graph{
		ID:        id,
		Tasks:     make([]Task, len(tasks)),
		CreatedAt: ts,
		UpdatedAt: ts,
	}
	copy(g.Tasks, tasks)

	if err := g.normalize(); err != nil {
		return nil, err
	}
	return g, nil
}

// UnmarshalJSON decodes a graph and rebuilds its task index.
func (g *Graph) UnmarshalJSON(data []byte) error {
	var w struct {
		ID        string    `json:"id"`
		Tasks     []Task    `json:"tasks"`
		CreatedAt time.Time `json:"createdAt"`
		UpdatedAt time.Time `json:"updatedAt"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	g.ID = w.ID
	g.Tasks = w.Tasks
	g.CreatedAt = w.CreatedAt
	g.UpdatedAt = w.UpdatedAt
	g.reindex()
	return nil
}

// normalize fills defaults, rebuilds the index and validates.
func (g *Graph) normalize() error {
	for i := range g.Tasks {
		if g.Tasks[i].Status == "" {
			g.Tasks[i].Status = domain.StatusPending
		}
	}
	if g.CreatedAt.IsZero() {
		g.CreatedAt = now()
	}
	if g.UpdatedAt.IsZero() {
		g.UpdatedAt = g.CreatedAt
	}
	if err := g.Validate(); err != nil {
		return err
	}
	g.reindex()
	return nil
}

func (g *Graph) reindex() {
	g.index = make(map[string]int, len(g.Tasks))
	for i, t := range g.Tasks {
		if _, dup := g.index[t.ID]; !dup {
			g.index[t.ID] = i
		}
	}
}

func (g *Graph) lookup(id string) (int, bool) {
	if g.index == nil || len(g.index) != len(g.Tasks) {
		g.reindex()
	}
	i, ok := g.index[id]
	return i, ok
}

// Task returns a copy of the task with the given id.
func (g *Graph) Task(id string) (Task, bool) {
	i, ok := g.lookup(id)
	if !ok {
		return Task{}, false
	}
	return g.Tasks[i], true
}

// RunnableTasks returns the pending tasks whose dependencies are all done.
// The order carries no priority.
func (g *Graph) RunnableTasks() []Task {
	var runnable []Task
	for _, t := range g.Tasks {
		if t.Status != domain.StatusPending {
			continue
		}
		if g.dependenciesDone(t) {
			runnable = append(runnable, t)
		}
	}
	return runnable
}

func (g *Graph) dependenciesDone(t Task) bool {
	for _, dep := range t.DependsOn {
		i, ok := g.lookup(dep)
		if !ok || g.Tasks[i].Status != domain.StatusDone {
			return false
		}
	}
	return true
}

// UpdateTaskStatus moves one task to status. result is kept only for done
// and errMsg only for failed; the other field is cleared. No other task is
// touched.
func (g *Graph) UpdateTaskStatus(id string, status domain.TaskStatus, result json.RawMessage, errMsg string) error {
	i, ok := g.lookup(id)
	if !ok {
		return errors.NewTaskNotFoundError(id)
	}

	t := &g.Tasks[i]
	if !t.Status.CanTransitionTo(status) {
		return errors.NewInvalidTransitionError(id, t.Status.String(), status.String())
	}

	t.Status = status
	t.Result = nil
	t.Error = ""
	switch status {
	case domain.StatusDone:
		if len(result) == 0 {
			result = json.RawMessage(`{}`)
		}
		t.Result = result
	case domain.StatusFailed:
		t.Error = errMsg
	}
	g.UpdatedAt = now()
	return nil
}

// IsComplete reports whether no task is pending or running.
func (g *Graph) IsComplete() bool {
	for _, t := range g.Tasks {
		if !t.Status.IsTerminal() {
			return false
		}
	}
	return true
}

// DependencyResults returns the result of each named task that is done.
// Tasks that are missing, failed or still pending contribute no entry.
func (g *Graph) DependencyResults(ids []string) map[string]json.RawMessage {
	results := make(map[string]json.RawMessage, len(ids))
	for _, id := range ids {
		i, ok := g.lookup(id)
		if !ok {
			continue
		}
		t := g.Tasks[i]
		if t.Status == domain.StatusDone {
			results[id] = t.Result
		}
	}
	return results
}

// Dependents returns the ids of tasks that list id in dependsOn.
func (g *Graph) Dependents(id string) []string {
	var out []string
	for _, t := range g.Tasks {
		for _, dep := range t.DependsOn {
			if dep == id {
				out = append(out, t.ID)
				break
			}
		}
	}
	return out
}

// FailDependents marks every pending transitive dependent of id as failed
// with a reason naming id, and returns the ids it failed in visit order.
func (g *Graph) FailDependents(id string) []string {
	reason := errors.NewDependencyBlockedError(id).Message

	var failed []string
	seen := map[string]bool{id: true}
	queue := []string{id}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, dep := range g.Dependents(cur) {
			if seen[dep] {
				continue
			}
			seen[dep] = true
			i, _ := g.lookup(dep)
			if g.Tasks[i].Status != domain.StatusPending {
				continue
			}
			// pending -> failed is always legal
			_ = g.UpdateTaskStatus(dep, domain.StatusFailed, nil, reason)
			failed = append(failed, dep)
			queue = append(queue, dep)
		}
	}
	return failed
}

// Summary counts tasks per status.
func (g *Graph) Summary() Counts {
	c := Counts{Total: len(g.Tasks)}
	for _, t := range g.Tasks {
		switch t.Status {
		case domain.StatusPending:
			c.Pending++
		case domain.StatusRunning:
			c.Running++
		case domain.StatusDone:
			c.Done++
		case domain.StatusFailed:
			c.Failed++
		}
	}
	return c
}

// TryAcquire marks the graph as being executed. It returns false if another
// execution already holds it.
func (g *Graph) TryAcquire() bool {
	return g.inUse.CompareAndSwap(false, true)
}

// Release clears the in-use mark set by TryAcquire.
func (g *Graph) Release() {
	g.inUse.Store(false)
}

// InUse reports whether an execution currently holds the graph.
func (g *Graph) InUse() bool {
	return g.inUse.Load()
}

// Clone returns a deep copy of the graph. The copy is not marked in use.
func (g *Graph) Clone() *Graph {
	c := &Graph{
		ID:        g.ID,
		Tasks:     make([]Task, len(g.Tasks)),
		CreatedAt: g.CreatedAt,
		UpdatedAt: g.UpdatedAt,
	}
	for i, t := range g.Tasks {
		c.Tasks[i] = cloneTask(t)
	}
	c.reindex()
	return c
}

func cloneTask(t Task) Task {
	out := t
	if t.DependsOn != nil {
		out.DependsOn = append([]string(nil), t.DependsOn...)
	}
	if t.Result != nil {
		out.Result = append(json.RawMessage(nil), t.Result...)
	}
	out.Payload = ClonePayload(t.Payload)
	return out
}

// ClonePayload deep-copies a JSON object payload.
func ClonePayload(p map[string]any) map[string]any {
	if p == nil {
		return nil
	}
	out := make(map[string]any, len(p))
	for k, v := range p {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return ClonePayload(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return val
	}
}
