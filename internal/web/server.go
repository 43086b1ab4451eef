// Package web exposes the manager facade over HTTP for the UI collaborator
package web

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"tunecache/internal/config"
	"tunecache/internal/manager"
	"tunecache/internal/web/handlers"
)

// Server represents the HTTP server
type Server struct {
	server   *http.Server
	handlers *handlers.Handlers
	logger   *slog.Logger
}

// NewServer creates a new HTTP server routing to the snapshot and mutation
// endpoints.
func NewServer(mgr *manager.Manager, cfg *config.Config) *Server {
	h := handlers.New(mgr)

	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/state", h.State)
	mux.HandleFunc("GET /api/storage", h.Storage)
	mux.HandleFunc("POST /api/downloads", h.SubmitDownload)
	mux.HandleFunc("POST /api/downloads/{id}/pause", h.PauseDownload)
	mux.HandleFunc("POST /api/downloads/{id}/resume", h.ResumeDownload)
	mux.HandleFunc("POST /api/downloads/{id}/cancel", h.CancelDownload)
	mux.HandleFunc("POST /api/downloads/{id}/played", h.MarkPlayed)
	mux.HandleFunc("DELETE /api/downloads/{id}", h.DeleteDownload)
	mux.HandleFunc("DELETE /api/downloads", h.ClearDownloads)

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		server:   server,
		handlers: h,
		logger:   slog.Default(),
	}
}

// Handler returns the routing handler, primarily for tests
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("Starting HTTP server", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}
