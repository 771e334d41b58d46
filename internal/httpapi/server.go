// Package httpapi exposes the onboarding engine over HTTP: employee CRUD,
// workflow start and status, provider webhooks and a small admin surface.
// Request and response bodies are JSON throughout.
package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/petrijr/aboard/internal/persistence"
	"github.com/petrijr/aboard/pkg/api"
)

// Server serves the onboarding HTTP API. Workflow operations go through
// the engine; audit and admin routes read the stores directly.
type Server struct {
	engine  api.Engine
	store   persistence.Persistence
	logger  *slog.Logger
	metrics http.Handler
}

// Config describes how to construct a Server.
type Config struct {
	Engine api.Engine

	// Store gives the audit and admin routes direct access to the
	// persistence layer. It must be the same store set the engine runs on.
	Store persistence.Persistence

	Logger *slog.Logger

	// Metrics, when set, is mounted at GET /metrics.
	Metrics http.Handler
}

// New creates a Server for the given engine and stores.
func New(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Store.Events == nil {
		cfg.Store.Events = persistence.NoopEventStore{}
	}
	return &Server{
		engine:  cfg.Engine,
		store:   cfg.Store,
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
	}
}

// Handler builds the full route table.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Get("/health", s.handleHealth)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}

	r.Route("/api", func(r chi.Router) {
		r.Route("/employees", func(r chi.Router) {
			r.Post("/", s.handleCreateEmployee)
			r.Get("/", s.handleListEmployees)
			r.Get("/{id}", s.handleGetEmployee)
			r.Put("/{id}/status", s.handleUpdateEmployeeStatus)
			r.Get("/{id}/events", s.handleEmployeeEvents)
		})
		r.Route("/onboarding", func(r chi.Router) {
			r.Post("/start", s.handleStartOnboarding)
			r.Get("/status/{token}", s.handleOnboardingStatus)
		})
		r.Route("/webhooks", func(r chi.Router) {
			r.Post("/document-status", s.handleDocumentWebhook)
			r.Post("/quiz-status", s.handleQuizWebhook)
		})
		r.Route("/admin", func(r chi.Router) {
			r.Get("/stats", s.handleAdminStats)
			r.Delete("/clear-all-data", s.handleClearAllData)
		})
	})

	return r
}

// requestLogger emits one structured line per request.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.InfoContext(r.Context(), "http_request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
		)
	})
}

// handleHealth: GET /health
//
// Liveness probe:
//
//	{ "status": "healthy", "service": "aboard", "timestamp": "..." }
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"service":   "aboard",
		"timestamp": time.Now().UTC(),
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("response_encode_failed", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

// writeDomainError maps store and validation errors onto HTTP statuses.
// Anything unrecognized is a 500 and gets logged with the request line.
func (s *Server) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, persistence.ErrSubjectNotFound):
		s.writeError(w, http.StatusNotFound, "employee not found")
	case errors.Is(err, persistence.ErrTokenNotFound):
		s.writeError(w, http.StatusNotFound, "workflow thread not found")
	case errors.Is(err, persistence.ErrDuplicateEmail):
		s.writeError(w, http.StatusConflict, "employee with this email already exists")
	case errors.Is(err, api.ErrInvalidEvent):
		s.writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.logger.ErrorContext(r.Context(), "request_failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
		s.writeError(w, http.StatusInternalServerError, "internal error")
	}
}
