package http

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"
)

// Server wraps net/http.Server with the handler chain of this service.
type Server struct {
	server *http.Server
	config ServerConfig
	logger *zap.Logger
}

// ServerConfig controls the listener.
type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	Timeout      time.Duration `yaml:"timeout"`
	MaxBodyBytes int64         `yaml:"max_body_bytes"`
}

// DefaultServerConfig binds to the loopback interface only.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:         "127.0.0.1",
		Port:         8501,
		Timeout:      30 * time.Second,
		MaxBodyBytes: 64 << 10,
	}
}

// NewServer wires the handlers behind the middleware chain.
func NewServer(config ServerConfig, deps Deps) *Server {
	handlers := NewHandlers(deps)
	logger := handlers.deps.Logger

	mux := http.NewServeMux()
	handlers.Register(mux)

	chain := Chain(
		RecoveryMiddleware(logger),
		LoggerMiddleware(logger),
		SecurityHeadersMiddleware,
		RequestSizeMiddleware(config.MaxBodyBytes),
		TimeoutMiddleware(config.Timeout),
	)

	return &Server{
		server: &http.Server{
			Addr:         net.JoinHostPort(config.Host, strconv.Itoa(config.Port)),
			Handler:      chain(mux),
			ReadTimeout:  config.Timeout,
			WriteTimeout: config.Timeout,
			IdleTimeout:  120 * time.Second,
		},
		config: config,
		logger: logger,
	}
}

// Start blocks until the server stops.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", zap.String("addr", "http://"+s.server.Addr))

	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Stop drains in-flight requests for up to five seconds.
func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s.logger.Info("shutting down HTTP server")

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	return nil
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return s.server.Addr
}

// Handler returns the full handler chain.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}
