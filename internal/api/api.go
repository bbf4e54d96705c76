// Package api provides the HTTP REST API server.
package api

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/jonavoidd/smart-coral-diagnostics-server/internal/alerting"
	"github.com/jonavoidd/smart-coral-diagnostics-server/internal/api/health"
	"github.com/jonavoidd/smart-coral-diagnostics-server/internal/storage"
)

// Config contains HTTP API server configuration.
type Config struct {
	Address        string
	RequestTimeout time.Duration // Timeout for storage-backed API calls
	Verbose        bool
}

// SetDefaults applies default values for missing configuration.
func (c *Config) SetDefaults() {
	if c.Address == "" {
		c.Address = ":8080"
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = 10 * time.Second
	}
}

// Server is the HTTP API server.
type Server struct {
	config        *Config
	storage       storage.Storage
	engine        *alerting.Engine
	wsHandler     http.Handler
	onOutcome     func(*alerting.Outcome)
	server        *http.Server
	healthHandler *health.Handler
}

// Option configures optional server collaborators.
type Option func(*Server)

// WithWebSocket mounts h at /ws for live alert streaming.
func WithWebSocket(h http.Handler) Option {
	return func(s *Server) { s.wsHandler = h }
}

// WithOutcomeHook registers fn to be called with every alert change produced
// by an administrative mutation.
func WithOutcomeHook(fn func(*alerting.Outcome)) Option {
	return func(s *Server) { s.onOutcome = fn }
}

// New creates a new API server.
func New(cfg *Config, store storage.Storage, engine *alerting.Engine, opts ...Option) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if store == nil {
		return nil, fmt.Errorf("storage is required")
	}
	if engine == nil {
		return nil, fmt.Errorf("engine is required")
	}

	cfg.SetDefaults()

	s := &Server{
		config:        cfg,
		storage:       store,
		engine:        engine,
		healthHandler: health.NewHandler(),
	}
	for _, opt := range opts {
		opt(s)
	}

	router := s.setupRouter()

	s.server = &http.Server{
		Addr:        cfg.Address,
		Handler:     router,
		ReadTimeout: 15 * time.Second,
		// WriteTimeout is disabled because /ws connections are long-lived.
		// Non-streaming handlers bound their own time via request context.
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	return s, nil
}

// Run starts the HTTP server and blocks until context is canceled.
func (s *Server) Run(ctx context.Context) error {
	errChan := make(chan error, 1)

	go func() {
		log.Printf("HTTP API listening on %s", s.config.Address)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Printf("shutting down HTTP API server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.server.Shutdown(shutdownCtx)
	case err := <-errChan:
		return err
	}
}

// Address returns the configured listen address.
func (s *Server) Address() string {
	return s.config.Address
}

// RegisterHealthChecker adds a health checker to the server.
func (s *Server) RegisterHealthChecker(c health.Checker) {
	if s.healthHandler != nil {
		s.healthHandler.RegisterChecker(c)
	}
}
