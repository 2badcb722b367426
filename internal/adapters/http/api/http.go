// Package api exposes built reports over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/okian/matchrank/internal/adapters/repository"
	"github.com/okian/matchrank/internal/domain/types"
)

const defaultMaxLimit = 500

// Dependencies required by HTTP handlers. repository.Store satisfies it.
type Dependencies interface {
	Get(ctx context.Context, name string) (types.Report, error)
	List(ctx context.Context) ([]types.Summary, error)
	Top(ctx context.Context, name string, n int) ([]types.Entry, error)
}

// Server wires HTTP routes for the report API.
type Server struct {
	healthHandler     *HealthHandler
	statsHandler      *StatsHandler
	reportsHandler    *ReportsHandler
	competitorHandler *CompetitorHandler
	extra             []func(chi.Router)
}

// Option configures a Server.
type Option func(*Server)

// WithStats serves GET /stats from p.
func WithStats(p StatsProvider) Option {
	return func(s *Server) {
		if p != nil {
			s.statsHandler = NewStatsHandler(p)
		}
	}
}

// WithRoutes lets other packages mount routes on the same router.
func WithRoutes(mount func(chi.Router)) Option {
	return func(s *Server) {
		if mount != nil {
			s.extra = append(s.extra, mount)
		}
	}
}

// NewServer creates a new API server with all handlers. maxLimit < 1 uses
// the default.
func NewServer(deps Dependencies, maxLimit int, opts ...Option) *Server {
	if maxLimit < 1 {
		maxLimit = defaultMaxLimit
	}
	s := &Server{
		healthHandler:     NewHealthHandler(),
		reportsHandler:    NewReportsHandler(deps, maxLimit),
		competitorHandler: NewCompetitorHandler(deps),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Routes returns the router with every route attached.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(MetricsMiddleware)

	r.Get("/healthz", s.healthHandler.HandleHealth)
	r.Get("/metrics", s.healthHandler.HandleMetrics)
	if s.statsHandler != nil {
		r.Get("/stats", s.statsHandler.HandleStats)
	}
	r.Route("/reports", func(r chi.Router) {
		r.Get("/", s.reportsHandler.HandleList)
		r.Get("/{name}", s.reportsHandler.HandleGet)
		r.Get("/{name}/top", s.reportsHandler.HandleTop)
		r.Get("/{name}/competitors/{key}", s.competitorHandler.HandleHistory)
	})
	for _, mount := range s.extra {
		mount(r)
	}
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not_found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", nil)
	})
	return r
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

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeStoreError maps store errors to 404 or 500.
func writeStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, repository.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not_found", err)
		return
	}
	writeError(w, http.StatusInternalServerError, "internal_error", err)
}
