// Package daemon is the HTTP surface of the scoring engine. All grading
// state flows through the session service; handlers only translate
// between the wire and the domain.
package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/provelo/assay/internal/config"
	"github.com/provelo/assay/internal/domain"
	"github.com/provelo/assay/internal/judge"
	"github.com/provelo/assay/internal/session"
)

// Server is the assay daemon HTTP server.
type Server struct {
	cfg    *config.Config
	server *http.Server
	router *http.ServeMux

	sessions    *session.Service
	theoryJudge judge.Judge
	originality *judge.OriginalityClient
}

// ServerConfig holds the collaborators for a new server.
type ServerConfig struct {
	Config      *config.Config
	Sessions    *session.Service
	TheoryJudge judge.Judge
	Originality *judge.OriginalityClient
}

// NewServer creates a new daemon server.
func NewServer(cfg ServerConfig) *Server {
	s := &Server{
		cfg:         cfg.Config,
		router:      http.NewServeMux(),
		sessions:    cfg.Sessions,
		theoryJudge: cfg.TheoryJudge,
		originality: cfg.Originality,
	}

	s.setupRoutes()

	addr := fmt.Sprintf(":%d", cfg.Config.Port)
	handler := recoveryMiddleware(correlationIDMiddleware(loggingMiddleware(s.router)))
	s.server = &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.HandleFunc("GET /v1/health", s.handleHealth)

	s.router.HandleFunc("POST /v1/sessions", s.handleCreateSession)
	s.router.HandleFunc("GET /v1/sessions/{id}", s.handleGetSession)

	s.router.HandleFunc("POST /v1/sessions/{id}/tasks", s.handleRecordTask)
	s.router.HandleFunc("POST /v1/sessions/{id}/theory", s.handleRecordTheory)
	s.router.HandleFunc("POST /v1/sessions/{id}/events", s.handleRecordEvent)
	s.router.HandleFunc("POST /v1/sessions/{id}/originality", s.handleCheckOriginality)

	s.router.HandleFunc("GET /v1/sessions/{id}/trust", s.handleGetTrust)
	s.router.HandleFunc("POST /v1/sessions/{id}/finalize", s.handleFinalize)
	s.router.HandleFunc("GET /v1/sessions/{id}/report", s.handleGetReport)
}

// Handler exposes the middleware-wrapped handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	slog.Info("starting assay daemon", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	slog.Info("shutting down daemon...")
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func (s *Server) jsonError(w http.ResponseWriter, status int, message string, err error) {
	response := map[string]any{
		"error":  message,
		"status": status,
	}
	if err != nil {
		response["details"] = err.Error()
	}
	s.jsonResponse(w, status, response)
}

// serviceError maps domain errors onto HTTP statuses.
func (s *Server) serviceError(w http.ResponseWriter, message string, err error) {
	switch {
	case errors.Is(err, domain.ErrSessionNotFound), errors.Is(err, domain.ErrNotFound):
		s.jsonError(w, http.StatusNotFound, message, err)
	case errors.Is(err, domain.ErrReportNotFound):
		s.jsonError(w, http.StatusNotFound, message, err)
	case errors.Is(err, domain.ErrSessionFinalized), errors.Is(err, domain.ErrConflict):
		s.jsonError(w, http.StatusConflict, message, err)
	case errors.Is(err, domain.ErrInvalidInput):
		s.jsonError(w, http.StatusBadRequest, message, err)
	default:
		s.jsonError(w, http.StatusInternalServerError, message, err)
	}
}
