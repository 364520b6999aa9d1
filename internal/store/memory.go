package store

import (
	"context"
	"sync"

	"github.com/Kingmaker16/codex-os/internal/errors"
	"github.com/Kingmaker16/codex-os/internal/graph"
)

// Memory is an in-process Repository.
type Memory struct {
	mu     sync.RWMutex
	graphs map[string]*graph.Graph
}

// NewMemory creates an empty in-memory repository.
func NewMemory() *Memory {
	return &Memory{graphs: make(map[string]*graph.Graph)}
}

func (m *Memory) Create(ctx context.Context, g *graph.Graph) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.graphs[g.ID]; exists {
		return errors.NewGraphExistsError(g.ID)
	}
	m.graphs[g.ID] = g.Clone()
	return nil
}

func (m *Memory) Save(ctx context.Context, g *graph.Graph) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.graphs[g.ID] = g.Clone()
	return nil
}

func (m *Memory) Get(ctx context.Context, id string) (*graph.Graph, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	g, ok := m.graphs[id]
	if !ok {
		return nil, errors.NewGraphNotFoundError(id)
	}
	return g.Clone(), nil
}

func (m *Memory) List(ctx context.Context) ([]Summary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Summary, 0, len(m.graphs))
	for _, g := range m.graphs {
		out = append(out, Summarize(g))
	}
	sortSummaries(out)
	return out, nil
}

func (m *Memory) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.graphs[id]; !ok {
		return errors.NewGraphNotFoundError(id)
	}
	delete(m.graphs, id)
	return nil
}

func (m *Memory) Ping(ctx context.Context) error { return ctx.Err() }

func (m *Memory) Close() error { return nil }
