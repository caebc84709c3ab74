// Package api exposes the HTTP management interface for the crawl engine:
// on-demand job submission, job prioritization and configuration, schedule
// management, capacity reporting, and health/metrics endpoints.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/newswatch/newswatch/internal/config"
	"github.com/newswatch/newswatch/internal/core"
	"github.com/newswatch/newswatch/internal/dispatch"
	"github.com/newswatch/newswatch/internal/telemetry"
)

// CapacityEstimator reports aggregate scheduled load.
type CapacityEstimator interface {
	Estimate(ctx context.Context) (core.CapacityReport, error)
}

// Deps bundles the server's collaborators. Ready is optional; when set it
// backs the /readyz probe.
type Deps struct {
	Categories core.CategoryStore
	Jobs       core.JobStore
	Dispatcher *dispatch.Dispatcher
	Capacity   CapacityEstimator
	IDs        core.IDGenerator
	Clock      core.Clock
	Logger     *zap.Logger
	Ready      func(ctx context.Context) error
}

// Server wires HTTP handlers to the engine.
type Server struct {
	router     chi.Router
	categories core.CategoryStore
	jobs       core.JobStore
	dispatcher *dispatch.Dispatcher
	capacity   CapacityEstimator
	ids        core.IDGenerator
	clock      core.Clock
	logger     *zap.Logger
	ready      func(ctx context.Context) error
	maxRetries int
}

// NewServer constructs a Server with middleware and routes.
func NewServer(deps Deps, cfg config.Config) *Server {
	s := &Server{
		categories: deps.Categories,
		jobs:       deps.Jobs,
		dispatcher: deps.Dispatcher,
		capacity:   deps.Capacity,
		ids:        deps.IDs,
		clock:      deps.Clock,
		logger:     deps.Logger,
		ready:      deps.Ready,
		maxRetries: cfg.Scheduler.DefaultMaxRetries,
	}
	if s.maxRetries <= 0 {
		s.maxRetries = 3
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(deps.Logger))
	r.Use(recoverMiddleware(deps.Logger))
	r.Use(timeoutMiddleware(60 * time.Second))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", telemetry.Handler())

	r.Route("/v1", func(r chi.Router) {
		if cfg.Auth.Enabled {
			r.Use(apiKeyMiddleware(cfg.Auth.APIKey))
		}
		r.Route("/categories/{category_id}", func(r chi.Router) {
			r.Post("/jobs", s.createOnDemandJob)
			r.Put("/schedule", s.updateSchedule)
		})
		r.Route("/jobs", func(r chi.Router) {
			r.Get("/", s.listJobs)
			r.Route("/{job_id}", func(r chi.Router) {
				r.Get("/", s.getJob)
				r.Post("/priority", s.setJobPriority)
				r.Patch("/", s.patchJob)
			})
		})
		r.Get("/capacity", s.getCapacity)
	})

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		if err := s.ready(r.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, "not ready")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
