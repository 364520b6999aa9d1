package store

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/Kingmaker16/codex-os/internal/errors"
	"github.com/Kingmaker16/codex-os/internal/graph"
)

// SQLite stores graphs as JSON documents in a SQLite database, with the
// summary columns kept alongside for listing.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens or creates the database at path and ensures the schema.
func OpenSQLite(path string) (*SQLite, error) {
	if path == "" {
		return nil, errors.NewConfigInvalidError("sqlite store needs a database path")
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, backendError("open sqlite", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, backendError("set WAL mode", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, backendError("set busy timeout", err)
	}

	schema := `
		CREATE TABLE IF NOT EXISTS graphs (
			graph_id TEXT PRIMARY KEY,
			document TEXT NOT NULL,
			total INTEGER NOT NULL,
			pending INTEGER NOT NULL,
			running INTEGER NOT NULL,
			done INTEGER NOT NULL,
			failed INTEGER NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS graphs_updated_at ON graphs (updated_at);`

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, backendError("create schema", err)
	}

	return &SQLite{db: db}, nil
}

func (s *SQLite) Create(ctx context.Context, g *graph.Graph) error {
	doc, c, err := encode(g)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO graphs (graph_id, document, total, pending, running, done, failed, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		g.ID, doc, c.Total, c.Pending, c.Running, c.Done, c.Failed,
		g.CreatedAt.Format(time.RFC3339Nano), g.UpdatedAt.Format(time.RFC3339Nano),
	)
	if isConstraint(err) {
		return errors.NewGraphExistsError(g.ID)
	}
	if err != nil {
		return backendError("insert graph", err)
	}
	return nil
}

func (s *SQLite) Save(ctx context.Context, g *graph.Graph) error {
	doc, c, err := encode(g)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO graphs (graph_id, document, total, pending, running, done, failed, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(graph_id) DO UPDATE SET
			document = excluded.document,
			total = excluded.total,
			pending = excluded.pending,
			running = excluded.running,
			done = excluded.done,
			failed = excluded.failed,
			updated_at = excluded.updated_at`,
		g.ID, doc, c.Total, c.Pending, c.Running, c.Done, c.Failed,
		g.CreatedAt.Format(time.RFC3339Nano), g.UpdatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return backendError("upsert graph", err)
	}
	return nil
}

func (s *SQLite) Get(ctx context.Context, id string) (*graph.Graph, error) {
	var doc string
	err := s.db.QueryRowContext(ctx, "SELECT document FROM graphs WHERE graph_id = ?", id).Scan(&doc)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.NewGraphNotFoundError(id)
	}
	if err != nil {
		return nil, backendError("query graph", err)
	}

	g, err := graph.Parse([]byte(doc), nil)
	if err != nil {
		return nil, backendError(fmt.Sprintf("decode graph %s", id), err)
	}
	return g, nil
}

func (s *SQLite) List(ctx context.Context) ([]Summary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT graph_id, total, pending, running, done, failed, created_at, updated_at
		 FROM graphs ORDER BY updated_at DESC, graph_id ASC`)
	if err != nil {
		return nil, backendError("query graphs", err)
	}
	defer func() { _ = rows.Close() }()

	out := []Summary{}
	for rows.Next() {
		var (
			sum                  Summary
			createdAt, updatedAt string
		)
		c := &sum.Counts
		if err := rows.Scan(&sum.ID, &c.Total, &c.Pending, &c.Running, &c.Done, &c.Failed, &createdAt, &updatedAt); err != nil {
			return nil, backendError("scan graph row", err)
		}
		sum.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		sum.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
		sum.Complete = c.Pending == 0 && c.Running == 0
		out = append(out, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, backendError("iterate graph rows", err)
	}
	return out, nil
}

func (s *SQLite) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM graphs WHERE graph_id = ?", id)
	if err != nil {
		return backendError("delete graph", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return errors.NewGraphNotFoundError(id)
	}
	return nil
}

func (s *SQLite) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return backendError("ping sqlite", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

func encode(g *graph.Graph) (string, graph.Counts, error) {
	data, err := json.Marshal(g)
	if err != nil {
		return "", graph.Counts{}, errors.Wrap(errors.ErrCodeFileMarshal, "marshal graph", err)
	}
	return string(data), g.Summary(), nil
}

func isConstraint(err error) bool {
	var sqliteErr sqlite3.Error
	if stderrors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrConstraint
	}
	return false
}
