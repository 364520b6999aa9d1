// Package server exposes the orchestrator over HTTP: graph submission and
// execution, the route table, health probes and Prometheus metrics.
//
// Shutdown drains connections after failing the readiness probe, so a
// rolling deploy stops sending traffic before the listener closes.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Kingmaker16/codex-os/internal/engine"
	"github.com/Kingmaker16/codex-os/internal/graph"
	"github.com/Kingmaker16/codex-os/internal/health"
	"github.com/Kingmaker16/codex-os/internal/log"
	"github.com/Kingmaker16/codex-os/internal/metrics"
	"github.com/Kingmaker16/codex-os/internal/route"
	"github.com/Kingmaker16/codex-os/internal/store"
)

// Executor runs a graph to completion. *engine.Engine implements it.
type Executor interface {
	Execute(ctx context.Context, g *graph.Graph) (*engine.Report, error)
}

// RouteTable is the read side of a route planner.
type RouteTable interface {
	Entries() []route.Entry
	Lookup(taskType string) (route.Target, error)
}

// Deps are the collaborators the handlers use. Store, Executor, Routes and
// Probes are required.
type Deps struct {
	Store    store.Repository
	Executor Executor
	Routes   RouteTable
	Probes   *health.ProbeManager
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer
	Logger   *log.Logger
}

// Config holds server configuration.
type Config struct {
	// Address is the listen address (e.g., ":4200", "0.0.0.0:4200")
	Address string

	// ShutdownTimeout bounds connection draining. Defaults to 30 seconds.
	ShutdownTimeout time.Duration

	// ReadTimeout defaults to 10 seconds.
	ReadTimeout time.Duration

	// WriteTimeout must cover a whole synchronous execution. Defaults to
	// 5 minutes.
	WriteTimeout time.Duration

	// IdleTimeout defaults to 60 seconds.
	IdleTimeout time.Duration

	// MaxBodyBytes limits request bodies. Defaults to 10 MiB.
	MaxBodyBytes int64
}

func (c Config) withDefaults() Config {
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = 30 * time.Second
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 10 * time.Second
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 5 * time.Minute
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = 60 * time.Second
	}
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = 10 << 20
	}
	return c
}

// Server is the orchestrator's HTTP API.
type Server struct {
	deps            Deps
	cfg             Config
	logger          *log.Logger
	httpServer      *http.Server
	handler         http.Handler
	inShutdown      atomic.Bool
	shutdownTimeout time.Duration

	// running holds the ids of graphs being executed. Graphs come out of
	// the store as copies, so the in-use flag on a single copy cannot
	// detect a second request for the same id.
	runningMu sync.Mutex
	running   map[string]struct{}
}

// NewServer creates the API server.
func NewServer(deps Deps, cfg Config) *Server {
	cfg = cfg.withDefaults()
	if deps.Logger == nil {
		deps.Logger = log.Nop()
	}
	if deps.Gatherer == nil {
		deps.Gatherer = prometheus.NewRegistry()
	}

	s := &Server{
		deps:            deps,
		cfg:             cfg,
		logger:          deps.Logger.With("component", "server"),
		shutdownTimeout: cfg.ShutdownTimeout,
		running:         make(map[string]struct{}),
	}
	s.handler = s.routes()

	s.httpServer = &http.Server{
		Addr:         cfg.Address,
		Handler:      s.handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
		ErrorLog:     slog.NewLogLogger(s.logger.Handler(), slog.LevelWarn),
	}
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// Start marks the server initialized and serves until Shutdown. It returns
// http.ErrServerClosed after a graceful shutdown.
func (s *Server) Start() error {
	s.deps.Probes.MarkInitialized()
	s.logger.Info("listening", "address", s.cfg.Address)
	return s.httpServer.ListenAndServe()
}

// Shutdown fails readiness, stops keep-alives and waits up to the
// shutdown timeout for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.inShutdown.Store(true)
	s.deps.Probes.MarkShutdown()
	s.httpServer.SetKeepAlivesEnabled(false)

	shutdownCtx, cancel := context.WithTimeout(ctx, s.shutdownTimeout)
	defer cancel()

	s.logger.Info("shutting down", "timeout", s.shutdownTimeout.String())
	return s.httpServer.Shutdown(shutdownCtx)
}

// IsShuttingDown returns whether the server is shutting down.
func (s *Server) IsShuttingDown() bool {
	return s.inShutdown.Load()
}

func (s *Server) acquire(id string) bool {
	s.runningMu.Lock()
	defer s.runningMu.Unlock()
	if _, busy := s.running[id]; busy {
		return false
	}
	s.running[id] = struct{}{}
	return true
}

func (s *Server) release(id string) {
	s.runningMu.Lock()
	defer s.runningMu.Unlock()
	delete(s.running, id)
}
