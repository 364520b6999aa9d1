package graph

import (
	"fmt"
	"strings"

	"github.com/Kingmaker16/codex-os/internal/domain"
	"github.com/Kingmaker16/codex-os/internal/errors"
)

// Validate checks a task against the data model rules
func (t *Task) Validate() error {
	if _, err := domain.NewTaskID(t.ID); err != nil {
		return errors.Wrap(errors.ErrCodeGraphInvalid, "invalid task ID", err)
	}

	if strings.TrimSpace(t.Type) == "" {
		return errors.New(errors.ErrCodeGraphInvalid, fmt.Sprintf("task %q has no type", t.ID))
	}

	if err := t.Status.Validate(); err != nil {
		return errors.Wrap(errors.ErrCodeGraphInvalid, fmt.Sprintf("task %q", t.ID), err)
	}

	for i, depID := range t.DependsOn {
		if _, err := domain.NewTaskID(depID); err != nil {
			return errors.Wrap(errors.ErrCodeGraphInvalid,
				fmt.Sprintf("task %q dependency at index %d is not a valid task ID", t.ID, i), err)
		}
	}

	if len(t.Result) > 0 && t.Status != domain.StatusDone {
		return errors.New(errors.ErrCodeGraphInvalid, fmt.Sprintf("task %q has a result but status %s", t.ID, t.Status))
	}

	return nil
}

// Validate checks the graph invariants that hold at construction time:
// unique task ids and dependencies that name tasks in the same graph.
// Cycles are not rejected here; see FindCycle.
func (g *Graph) Validate() error {
	if err := domain.ValidateGraphID(g.ID); err != nil {
		return errors.NewInvalidGraphIDError(g.ID, err)
	}

	taskIDs := make(map[string]bool, len(g.Tasks))
	for i := range g.Tasks {
		task := &g.Tasks[i]
		if err := task.Validate(); err != nil {
			return err
		}
		if taskIDs[task.ID] {
			return errors.NewDuplicateTaskError(task.ID)
		}
		taskIDs[task.ID] = true
	}

	for _, task := range g.Tasks {
		for _, depID := range task.DependsOn {
			if !taskIDs[depID] {
				return errors.NewDanglingDependencyError(task.ID, depID)
			}
		}
	}

	return nil
}

// ValidateStrict runs Validate and also rejects dependency cycles.
func (g *Graph) ValidateStrict() error {
	if err := g.Validate(); err != nil {
		return err
	}
	if cycle := g.FindCycle(); cycle != nil {
		return errors.NewCyclicDependencyError(cycle)
	}
	return nil
}

// FindCycle returns one dependency cycle as a path whose first and last
// elements are equal, or nil if the graph is acyclic.
func (g *Graph) FindCycle() []string {
	deps := make(map[string][]string, len(g.Tasks))
	for _, task := range g.Tasks {
		deps[task.ID] = task.DependsOn
	}

	visited := make(map[string]bool)
	onStack := make(map[string]bool)

	var visit func(id string, path []string) []string
	visit = func(id string, path []string) []string {
		visited[id] = true
		onStack[id] = true
		path = append(path, id)

		for _, dep := range deps[id] {
			if !visited[dep] {
				if cycle := visit(dep, path); cycle != nil {
					return cycle
				}
			} else if onStack[dep] {
				start := 0
				for i, p := range path {
					if p == dep {
						start = i
						break
					}
				}
				cycle := append([]string{}, path[start:]...)
				return append(cycle, dep)
			}
		}

		onStack[id] = false
		return nil
	}

	for _, task := range g.Tasks {
		if !visited[task.ID] {
			if cycle := visit(task.ID, nil); cycle != nil {
				return cycle
			}
		}
	}
	return nil
}

// Levels groups task ids by the round in which they would run if every task
// succeeded. Tasks on or behind a cycle are returned in the second value.
func (g *Graph) Levels() ([][]string, []string) {
	level := make(map[string]int, len(g.Tasks))
	remaining := len(g.Tasks)

	var levels [][]string
	for remaining > 0 {
		var current []string
		for _, task := range g.Tasks {
			if _, placed := level[task.ID]; placed {
				continue
			}
			ready := true
			for _, dep := range task.DependsOn {
				if l, ok := level[dep]; !ok || l >= len(levels) {
					ready = false
					break
				}
			}
			if ready {
				current = append(current, task.ID)
			}
		}
		if len(current) == 0 {
			break
		}
		for _, id := range current {
			level[id] = len(levels)
		}
		levels = append(levels, current)
		remaining -= len(current)
	}

	var unreachable []string
	for _, task := range g.Tasks {
		if _, placed := level[task.ID]; !placed {
			unreachable = append(unreachable, task.ID)
		}
	}
	return levels, unreachable
}
