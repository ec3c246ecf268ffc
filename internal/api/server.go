package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/wonny/newsquant/pkg/config"
	"github.com/wonny/newsquant/pkg/logger"
)

// Server wraps one http.Server with start/shutdown logging
// ⭐ SSOT: API 서버 설정은 이 파일에서만
type Server struct {
	name       string
	httpServer *http.Server
	logger     *logger.Logger
}

// New creates the API server on PORT.
// WriteTimeout is long because POST /api/pipeline/run waits for the whole run.
func New(cfg *config.Config, log *logger.Logger, router http.Handler) *Server {
	return newServer("api", cfg.Port, router, 10*time.Minute, log)
}

// NewMetrics creates a server exposing only /metrics on METRICS_PORT.
// Used by processes without the API (the scheduler).
func NewMetrics(cfg *config.Config, log *logger.Logger, metrics http.Handler) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics)
	return newServer("metrics", cfg.MetricsPort, mux, 30*time.Second, log)
}

func newServer(name, port string, handler http.Handler, writeTimeout time.Duration, log *logger.Logger) *Server {
	return &Server{
		name: name,
		httpServer: &http.Server{
			Addr:              ":" + port,
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      writeTimeout,
			IdleTimeout:       60 * time.Second,
		},
		logger: log.WithField("server", name),
	}
}

// Addr returns the listen address
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Start blocks serving until Shutdown
func (s *Server) Start() error {
	s.logger.WithField("addr", s.httpServer.Addr).Info("Starting HTTP server")

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("%s server: %w", s.name, err)
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server")

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown %s server: %w", s.name, err)
	}
	return nil
}
