// Package api exposes the churn analysis service over HTTP.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/ignite/churn-scorer/internal/auth"
	"github.com/ignite/churn-scorer/internal/config"
)

// Server represents the API server
type Server struct {
	config  config.ServerConfig
	handler http.Handler
	server  *http.Server
}

// NewServer creates a new API server
func NewServer(cfg config.ServerConfig, runner Runner, health *HealthChecker, verifier auth.Verifier) *Server {
	return &Server{
		config:  cfg,
		handler: SetupRoutes(NewAnalysisHandler(runner), health, verifier, cfg.AllowedOrigins),
	}
}

// ListenAndServe starts the HTTP server
func (s *Server) ListenAndServe() error {
	s.server = &http.Server{
		Addr:    s.config.Addr(),
		Handler: s.handler,
		// A run scores every row before answering, so writes get a long
		// budget.
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      10 * time.Minute,
		IdleTimeout:       120 * time.Second,
	}
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Handler returns the HTTP handler for testing
func (s *Server) Handler() http.Handler {
	return s.handler
}
