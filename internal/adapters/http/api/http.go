// Package api declares the ops HTTP contracts and route registration helpers.
package api

import (
	"context"
	"net/http"

	json "github.com/goccy/go-json"

	"github.com/okian/cadenza/internal/domain/model"
	"github.com/okian/cadenza/internal/enrich"
	"github.com/okian/cadenza/pkg/metrics"
)

// Dependencies required by the HTTP handlers. Using an interface bundle
// keeps the handler layer loosely coupled to the app service.
type Dependencies interface {
	// Progress reports the current enrichment run's counters.
	Progress() enrich.Snapshot

	// RecentUpdates returns the delta monitor's bounded history.
	RecentUpdates() []model.UpdateEvent
}

// Server wires HTTP routes for the ops API.
type Server struct {
	deps Dependencies
}

// NewServer creates a new ops API server.
func NewServer(deps Dependencies) *Server {
	return &Server{deps: deps}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.handleHealth, "healthz"))
	mux.HandleFunc("/progress", MetricsMiddleware(s.handleProgress, "progress"))
	mux.HandleFunc("/updates", MetricsMiddleware(s.handleUpdates, "updates"))
	mux.Handle("/metrics", metrics.Handler())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed")
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Progress())
}

func (s *Server) handleUpdates(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed")
		return
	}
	updates := s.deps.RecentUpdates()
	if updates == nil {
		updates = []model.UpdateEvent{}
	}
	writeJSON(w, http.StatusOK, updates)
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, errorResponse{Code: code, Message: http.StatusText(status)})
}
