package api

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
)

// healthCheckTimeout bounds each dependency probe on /health.
const healthCheckTimeout = 2 * time.Second

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		// Read-only views
		r.Get("/discovery/services", s.handleListServices)
		r.Get("/discovery/seen", s.handleSeen)
		r.Get("/discovery/journal", s.handleListJournal)
		r.Get("/discovery/journal/{fingerprint}", s.handleGetJournalEntry)
		r.Get("/components", s.handleListComponents)
		r.Get("/components/{name}/platforms", s.handleComponentPlatforms)
		r.Get("/components/{name}/devices", s.handleComponentDevices)
		r.Get("/ws", s.handleWebSocket)

		// Mutations
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Post("/discovery/scan", s.handleScan)
			r.Post("/discovery/announce", s.handleAnnounce)
			r.Post("/platforms/load", s.handleLoadPlatform)
		})
	})

	return r
}

// handleHealth returns the server health status plus the state of each
// infrastructure dependency. Any failing dependency degrades the status.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string, len(s.health))
	status := "ok"

	names := make([]string, 0, len(s.health))
	for name := range s.health {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		err := s.health[name].HealthCheck(ctx)
		cancel()
		if err != nil {
			checks[name] = err.Error()
			status = "degraded"
			continue
		}
		checks[name] = "ok"
	}

	code := http.StatusOK
	if status != "ok" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]any{
		"status":  status,
		"version": s.version,
		"checks":  checks,
	})
}
