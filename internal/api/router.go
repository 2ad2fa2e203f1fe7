package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// componentCheckTimeout bounds each health probe so one stalled
// collaborator cannot hold the whole endpoint.
const componentCheckTimeout = 2 * time.Second

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// Health check (no auth required)
		r.Get("/health", s.handleHealth)

		// Auth endpoints (no auth required)
		r.Post("/auth/login", s.handleLogin)

		// Schedule and variable views are read-only; no auth required.
		r.Get("/schedule", s.handleSchedule)
		r.Get("/schedule/table", s.handleScheduleTable)
		r.Get("/variables/{ns}", s.handleVariables)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			// WS ticket requires authentication - the caller must be logged
			// in to request a ticket
			r.Post("/auth/ws-ticket", s.handleWSTicket)

			r.Post("/plan/reevaluate", s.handleReEvaluate)
			r.Post("/schedule/run-closest", s.handleRunClosest)

			// WebSocket (auth via ticket, validated in handler)
			r.Get("/ws", s.handleWebSocket)
		})
	})

	return r
}

// handleHealth reports liveness per component. Any failing component
// degrades the overall status and the endpoint answers 503, which is
// what container orchestrators key off.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	components := make(map[string]string, len(s.checks))

	for _, c := range s.checks {
		if c.Checker == nil {
			continue
		}
		ctx, cancel := context.WithTimeout(r.Context(), componentCheckTimeout)
		err := c.Checker.HealthCheck(ctx)
		cancel()

		if err != nil {
			status = "degraded"
			components[c.Name] = err.Error()
		} else {
			components[c.Name] = "ok"
		}
	}

	code := http.StatusOK
	if status != "ok" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]any{
		"status":     status,
		"version":    s.version,
		"components": components,
	})
}
