package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jonavoidd/smart-coral-diagnostics-server/internal/api/alerts"
	"github.com/jonavoidd/smart-coral-diagnostics-server/internal/api/middleware"
)

// setupRouter creates and configures the chi router with all routes.
func (s *Server) setupRouter() *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestLogger(s.config.Verbose))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Prometheus)

	alertHandler := alerts.NewHandler(s.storage, s.engine, s.onOutcome)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// Public read endpoints
		r.Route("/alerts", func(r chi.Router) {
			r.Use(middleware.Timeout(s.config.RequestTimeout))
			r.Get("/", alertHandler.List)
			r.Get("/summary", alertHandler.Summary)
			r.Get("/{id}", alertHandler.GetByID)
			r.Get("/{id}/history", alertHandler.History)
		})

		// Administrative mutations. Authentication is expected to be handled
		// by the deployment's ingress in front of this path.
		r.Route("/admin/alerts", func(r chi.Router) {
			r.Use(middleware.Timeout(s.config.RequestTimeout))
			r.Post("/", alertHandler.AdminCreate)
			r.Put("/{id}", alertHandler.AdminUpdate)
			r.Post("/{id}/deactivate", alertHandler.AdminDeactivate)
			r.Post("/{id}/reactivate", alertHandler.AdminReactivate)
		})
	})

	// Live alert stream
	if s.wsHandler != nil {
		r.Get("/ws", s.wsHandler.ServeHTTP)
	}

	// Prometheus metrics
	r.Handle("/metrics", promhttp.Handler())

	// Health checks (public, no timeout middleware)
	r.Get("/health", s.healthHandler.Health)
	r.Get("/health/live", s.healthHandler.Live)
	r.Get("/health/ready", s.healthHandler.Ready)

	return r
}
