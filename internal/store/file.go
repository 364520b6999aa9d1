package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/Kingmaker16/codex-os/internal/errors"
	"github.com/Kingmaker16/codex-os/internal/graph"
)

// File stores each graph as <dir>/<id>.json.
type File struct {
	dir string
	mu  sync.Mutex
}

// NewFile creates a file repository rooted at dir, creating it if needed.
func NewFile(dir string) (*File, error) {
	if dir == "" {
		return nil, errors.NewConfigInvalidError("file store needs a directory")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, backendError(fmt.Sprintf("create store directory %s", dir), err)
	}
	return &File{dir: dir}, nil
}

// path maps id to its file, refusing ids that would resolve outside dir.
// Dot-prefixed names are refused too since List skips them.
func (f *File) path(id string) (string, error) {
	name := id + ".json"
	if id == "" || strings.HasPrefix(id, ".") || strings.ContainsAny(id, `/\`) || !filepath.IsLocal(name) {
		return "", errors.NewInvalidGraphIDError(id, fmt.Errorf("not a plain file name"))
	}
	return filepath.Join(f.dir, name), nil
}

func (f *File) Create(ctx context.Context, g *graph.Graph) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	path, err := f.path(g.ID)
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); err == nil {
		return errors.NewGraphExistsError(g.ID)
	}
	return f.write(g, path)
}

func (f *File) Save(ctx context.Context, g *graph.Graph) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	path, err := f.path(g.ID)
	if err != nil {
		return err
	}
	return f.write(g, path)
}

// write replaces the file atomically through a rename.
func (f *File) write(g *graph.Graph, path string) error {
	data, err := json.MarshalIndent(g, "", "  ")
	if err != nil {
		return errors.Wrap(errors.ErrCodeFileMarshal, "marshal graph", err)
	}

	tmp, err := os.CreateTemp(f.dir, ".graph-*.tmp")
	if err != nil {
		return backendError("create temp file", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return backendError("write graph", err)
	}
	if err := tmp.Close(); err != nil {
		return backendError("close temp file", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return backendError("replace graph file", err)
	}
	return nil
}

func (f *File) Get(ctx context.Context, id string) (*graph.Graph, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.read(id)
}

func (f *File) read(id string) (*graph.Graph, error) {
	path, err := f.path(id)
	if err != nil {
		return nil, errors.NewGraphNotFoundError(id)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewGraphNotFoundError(id)
		}
		return nil, backendError(fmt.Sprintf("read graph %s", id), err)
	}

	g, err := graph.Parse(data, nil)
	if err != nil {
		return nil, backendError(fmt.Sprintf("decode graph %s", id), err)
	}
	return g, nil
}

func (f *File) List(ctx context.Context) ([]Summary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return nil, backendError("read store directory", err)
	}

	out := make([]Summary, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || filepath.Ext(name) != ".json" || strings.HasPrefix(name, ".") {
			continue
		}
		g, err := f.read(strings.TrimSuffix(name, ".json"))
		if err != nil {
			return nil, err
		}
		out = append(out, Summarize(g))
	}
	sortSummaries(out)
	return out, nil
}

func (f *File) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	path, err := f.path(id)
	if err != nil {
		return errors.NewGraphNotFoundError(id)
	}
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return errors.NewGraphNotFoundError(id)
		}
		return backendError(fmt.Sprintf("delete graph %s", id), err)
	}
	return nil
}

func (f *File) Ping(ctx context.Context) error {
	info, err := os.Stat(f.dir)
	if err != nil {
		return backendError("stat store directory", err)
	}
	if !info.IsDir() {
		return backendError("stat store directory", fmt.Errorf("%s is not a directory", f.dir))
	}
	return nil
}

func (f *File) Close() error { return nil }
