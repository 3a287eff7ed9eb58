package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"costguardian/internal/api/health"
	"costguardian/internal/api/rest"
	"costguardian/internal/metrics"
	"costguardian/pkg/errors"
	"costguardian/pkg/logger"
)

// ServerConfig contains configuration for HTTP server
type ServerConfig struct {
	Port         int
	ServiceName  string
	Version      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// Server wraps HTTP server with lifecycle management
type Server struct {
	httpServer *http.Server
	log        *logger.Logger
}

// NewServer mounts probes, metrics and the /v1 API. A nil limiter disables rate limiting.
func NewServer(cfg ServerConfig, healthHandler *health.Handler, api *rest.Handler, limiter *rest.RateLimiter, log *logger.Logger) *Server {
	mux := http.NewServeMux()

	// Kubernetes probes
	mux.HandleFunc("GET /health", healthHandler.HandleHealth)
	mux.HandleFunc("GET /ready", healthHandler.HandleReadiness)
	mux.HandleFunc("GET /live", healthHandler.HandleLiveness)

	mux.Handle("GET /metrics", metrics.Handler())

	apiMux := http.NewServeMux()
	api.Register(apiMux)
	var apiHandler http.Handler = apiMux
	if limiter != nil {
		apiHandler = limiter.Middleware(apiMux)
	}
	mux.Handle("/v1/", apiHandler)

	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprintf(w, `{"service":"%s","version":"%s","status":"running"}`,
			cfg.ServiceName, cfg.Version)
	})

	port := 8080
	if cfg.Port > 0 {
		port = cfg.Port
	}

	log.Infow("HTTP server configured", "port", port, "rate_limited", limiter != nil)

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", port),
			Handler:      mux,
			ReadTimeout:  orDefault(cfg.ReadTimeout, 10*time.Second),
			WriteTimeout: orDefault(cfg.WriteTimeout, 30*time.Second),
			IdleTimeout:  orDefault(cfg.IdleTimeout, 60*time.Second),
		},
		log: log,
	}
}

func orDefault(d, def time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return def
}

// Handler returns the root handler
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start begins listening for HTTP requests.
// Blocks until the server is stopped or fails.
func (s *Server) Start() error {
	s.log.Infof("Starting HTTP server on %s", s.httpServer.Addr)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return errors.Wrap(err, "http server failed")
	}
	return nil
}

// Shutdown waits for active connections within the context deadline
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Stopping HTTP server...")

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return errors.Wrap(err, "http server shutdown failed")
	}

	s.log.Info("HTTP server stopped")
	return nil
}
