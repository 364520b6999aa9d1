// Package store persists task graphs behind a Repository interface.
package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/Kingmaker16/codex-os/internal/errors"
	"github.com/Kingmaker16/codex-os/internal/graph"
)

// Repository stores graphs by id. Implementations hand out copies: a graph
// returned by Get is owned by the caller and changes to it are only kept by
// calling Save.
type Repository interface {
	// Create stores a new graph. It fails with errors.ErrConflict if the id
	// is taken.
	Create(ctx context.Context, g *graph.Graph) error
	// Save stores g, replacing any graph with the same id.
	Save(ctx context.Context, g *graph.Graph) error
	// Get returns the graph or an error matching errors.ErrNotFound.
	Get(ctx context.Context, id string) (*graph.Graph, error)
	// List returns summaries of every graph, most recently updated first.
	List(ctx context.Context) ([]Summary, error)
	// Delete removes a graph or fails with errors.ErrNotFound.
	Delete(ctx context.Context, id string) error
	// Ping checks that the backend is usable.
	Ping(ctx context.Context) error
	Close() error
}

// Summary is the list view of a graph.
type Summary struct {
	ID        string       `json:"id"`
	Counts    graph.Counts `json:"counts"`
	Complete  bool         `json:"complete"`
	CreatedAt time.Time    `json:"createdAt"`
	UpdatedAt time.Time    `json:"updatedAt"`
}

// Summarize builds the summary of g.
func Summarize(g *graph.Graph) Summary {
	return Summary{
		ID:        g.ID,
		Counts:    g.Summary(),
		Complete:  g.IsComplete(),
		CreatedAt: g.CreatedAt,
		UpdatedAt: g.UpdatedAt,
	}
}

func sortSummaries(s []Summary) {
	sort.Slice(s, func(i, j int) bool {
		if s[i].UpdatedAt.Equal(s[j].UpdatedAt) {
			return s[i].ID < s[j].ID
		}
		return s[i].UpdatedAt.After(s[j].UpdatedAt)
	})
}

// Backend names accepted by Open.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// Open creates a repository for the named backend. path is the directory
// for the file backend and the database file for sqlite.
func Open(backend, path string) (Repository, error) {
	switch strings.ToLower(backend) {
	case "", BackendMemory:
		return NewMemory(), nil
	case BackendFile:
		return NewFile(path)
	case BackendSQLite:
		return OpenSQLite(path)
	default:
		return nil, errors.NewConfigInvalidError(fmt.Sprintf("unknown store backend %q", backend))
	}
}

func backendError(op string, err error) error {
	return errors.Wrap(errors.ErrCodeStoreBackend, op, err)
}
