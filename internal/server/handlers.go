package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/Kingmaker16/codex-os/internal/engine"
	"github.com/Kingmaker16/codex-os/internal/errors"
	"github.com/Kingmaker16/codex-os/internal/graph"
	"github.com/Kingmaker16/codex-os/internal/route"
)

type createGraphRequest struct {
	ID    string       `json:"id"`
	Tasks []graph.Task `json:"tasks"`
}

type executeResponse struct {
	Graph  *graph.Graph   `json:"graph"`
	Report *engine.Report `json:"report"`
}

type planRequest struct {
	Type string `json:"type"`
}

type planResponse struct {
	Type   string       `json:"type"`
	Target route.Target `json:"target"`
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errors.Wrap(errors.ErrCodeFileUnmarshal, "invalid request body", err)
	}
	return nil
}

// POST /graphs
func (s *Server) handleCreateGraph(w http.ResponseWriter, r *http.Request) {
	var req createGraphRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.ID == "" {
		req.ID = graph.NewID()
	}

	g, err := graph.New(req.ID, req.Tasks)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if strict, _ := strconv.ParseBool(r.URL.Query().Get("strict")); strict {
		if err := g.ValidateStrict(); err != nil {
			s.writeError(w, r, err)
			return
		}
	}

	if err := s.deps.Store.Create(r.Context(), g); err != nil {
		s.writeError(w, r, err)
		return
	}

	s.logger.Info("graph created", "graph_id", g.ID, "tasks", len(g.Tasks))
	w.Header().Set("Location", "/graphs/"+g.ID)
	w.Header().Set("ETag", etag(g))
	s.writeJSON(w, http.StatusCreated, g)
}

// GET /graphs
func (s *Server) handleListGraphs(w http.ResponseWriter, r *http.Request) {
	list, err := s.deps.Store.List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"graphs": list})
}

// GET /graphs/{id}
func (s *Server) handleGetGraph(w http.ResponseWriter, r *http.Request) {
	g, err := s.deps.Store.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	w.Header().Set("ETag", etag(g))
	s.writeJSON(w, http.StatusOK, g)
}

// DELETE /graphs/{id}
func (s *Server) handleDeleteGraph(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !s.acquire(id) {
		s.writeError(w, r, errors.NewGraphInUseError(id))
		return
	}
	defer s.release(id)

	if err := s.deps.Store.Delete(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.logger.Info("graph deleted", "graph_id", id)
	w.WriteHeader(http.StatusNoContent)
}

// POST /graphs/{id}/execute runs the graph synchronously and persists the
// final task states, including those of a cancelled run.
func (s *Server) handleExecuteGraph(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !s.acquire(id) {
		s.writeError(w, r, errors.NewGraphInUseError(id))
		return
	}
	defer s.release(id)

	g, err := s.deps.Store.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	report, execErr := s.deps.Executor.Execute(r.Context(), g)
	if report == nil {
		s.writeError(w, r, execErr)
		return
	}

	// The request context may be gone after a cancelled run.
	if err := s.deps.Store.Save(context.WithoutCancel(r.Context()), g); err != nil {
		s.writeError(w, r, err)
		return
	}
	if execErr != nil {
		s.writeError(w, r, errors.Wrap(errors.ErrCodeEngineCancelled, "execution cancelled", execErr))
		return
	}

	w.Header().Set("ETag", etag(g))
	s.writeJSON(w, http.StatusOK, executeResponse{Graph: g, Report: report})
}

// GET /routes
func (s *Server) handleListRoutes(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{"routes": s.deps.Routes.Entries()})
}

// POST /routes/plan
func (s *Server) handlePlanRoute(w http.ResponseWriter, r *http.Request) {
	var req planRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.Type == "" {
		s.writeError(w, r, errors.New(errors.ErrCodeGraphInvalid, "type is required"))
		return
	}

	target, err := s.deps.Routes.Lookup(req.Type)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, planResponse{Type: req.Type, Target: target})
}

func (s *Server) handleLiveness(w http.ResponseWriter, r *http.Request) {
	s.writeProbe(w, s.deps.Probes.CheckLiveness(r.Context()))
}

func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	s.writeProbe(w, s.deps.Probes.CheckReadiness(r.Context()))
}

func (s *Server) handleStartup(w http.ResponseWriter, r *http.Request) {
	s.writeProbe(w, s.deps.Probes.CheckStartup(r.Context()))
}

// etag identifies the graph's definition. Task progress does not change
// it, so it is a weak validator.
func etag(g *graph.Graph) string {
	return fmt.Sprintf("W/%q", g.Fingerprint())
}
