package server

import (
	"encoding/json"
	stderrors "errors"
	"net/http"

	"github.com/Kingmaker16/codex-os/internal/errors"
	"github.com/Kingmaker16/codex-os/internal/health"
)

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error       string   `json:"error"`
	Code        string   `json:"code,omitempty"`
	Suggestions []string `json:"suggestions,omitempty"`
}

var statusByCode = map[errors.ErrorCode]int{
	errors.ErrCodeGraphInvalid:           http.StatusBadRequest,
	errors.ErrCodeGraphDuplicateTask:     http.StatusBadRequest,
	errors.ErrCodeGraphDanglingDep:       http.StatusBadRequest,
	errors.ErrCodeGraphCyclicDep:         http.StatusBadRequest,
	errors.ErrCodeGraphInvalidTransition: http.StatusBadRequest,
	errors.ErrCodeFileUnmarshal:          http.StatusBadRequest,
	errors.ErrCodeGraphTaskNotFound:      http.StatusNotFound,
	errors.ErrCodeStoreNotFound:          http.StatusNotFound,
	errors.ErrCodeRouteUnknownType:       http.StatusNotFound,
	errors.ErrCodeGraphInUse:             http.StatusConflict,
	errors.ErrCodeStoreConflict:          http.StatusConflict,
	errors.ErrCodeEngineCancelled:        http.StatusServiceUnavailable,
	errors.ErrCodeStoreBackend:           http.StatusServiceUnavailable,
}

// statusFor maps err to a response code; uncoded errors are 500.
func statusFor(err error) int {
	if status, ok := statusByCode[errors.CodeOf(err)]; ok {
		return status
	}
	return http.StatusInternalServerError
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.WithError(err).Warn("encode response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	body := errorBody{Error: errors.Brief(err), Code: string(errors.CodeOf(err))}

	var oe *errors.OrchestratorError
	if stderrors.As(err, &oe) {
		body.Error = oe.Brief()
		body.Suggestions = oe.Suggestions
	}

	if status >= http.StatusInternalServerError {
		s.deps.Metrics.RecordError(err, "server")
		s.logger.WithError(err).Error("request failed", "method", r.Method, "path", r.URL.Path)
	}
	s.writeJSON(w, status, body)
}

func (s *Server) writeProbe(w http.ResponseWriter, result *health.ProbeResult) {
	s.writeJSON(w, result.HTTPStatus(), result)
}
