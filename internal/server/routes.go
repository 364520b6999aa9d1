package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/Kingmaker16/codex-os/internal/metrics"
)

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.observe)

	r.Post("/graphs", s.handleCreateGraph)
	r.Get("/graphs", s.handleListGraphs)
	r.Get("/graphs/{id}", s.handleGetGraph)
	r.Delete("/graphs/{id}", s.handleDeleteGraph)
	r.Post("/graphs/{id}/execute", s.handleExecuteGraph)

	r.Get("/routes", s.handleListRoutes)
	r.Post("/routes/plan", s.handlePlanRoute)

	r.Get("/health/live", s.handleLiveness)
	r.Get("/health/ready", s.handleReadiness)
	r.Get("/health/startup", s.handleStartup)
	r.Get("/healthz", s.handleReadiness)

	r.Handle("/metrics", metrics.Handler(s.deps.Gatherer))

	return r
}

// observe records a request counter labelled by route pattern and logs
// each request at debug level.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		pattern := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			pattern = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		s.deps.Metrics.RecordHTTPRequest(r.Method, pattern, status)
		s.logger.Debug("request",
			"method", r.Method,
			"route", pattern,
			"status", status,
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
