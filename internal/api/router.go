package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/kiosk-fleet-core/internal/auth"
)

// healthCheckTimeout bounds the database ping behind /health.
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
	r.Use(s.sourceMiddleware)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, ErrCodeNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, ErrCodeBadRequest, "method not allowed")
	})

	r.Route("/api/v1", func(r chi.Router) {
		// Health check (no auth required)
		r.Get("/health", s.handleHealth)

		// Auth endpoints (no auth required)
		r.Post("/auth/login", s.handleLogin)

		// Kiosk-facing endpoints. Displays hold no credentials; the
		// device id and pairing code are their only identity.
		r.Post("/pairing/begin", s.handleBeginPairing)
		r.Get("/pairing/poll", s.handlePollPairing)
		r.Post("/heartbeat", s.handleHeartbeat)
		r.Get("/resolve", s.handleResolve)
		r.Get("/live", s.handleLiveSSE)
		r.Get("/live/ws", s.handleLiveWS)

		// Operator endpoints
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Get("/auth/me", s.handleMe)

			r.Group(func(r chi.Router) {
				r.Use(s.requirePermission(auth.PermFleetRead))

				r.Get("/devices", s.handleListDevices)
				r.Get("/devices/pending", s.handlePendingPairings)
				r.Get("/devices/{id}", s.handleGetDevice)
				r.Get("/devices/{id}/history", s.handleDeviceHistory)

				r.Get("/documents/{type}", s.handleGetDocument)
				r.Get("/documents/{type}/history", s.handleDocumentHistory)
			})

			r.Group(func(r chi.Router) {
				r.Use(s.requirePermission(auth.PermFleetManage))

				r.Post("/pairing/claim", s.handleClaim)
				r.Patch("/devices/{id}", s.handleUpdateDevice)
				r.Post("/devices/{id}/overrides", s.handleSetOverrides)
				r.Delete("/devices/{id}/overrides", s.handleClearOverrides)
				r.Delete("/devices/{id}", s.handleUnpair)

				r.Get("/audit", s.handleListAuditLogs)
			})

			r.Group(func(r chi.Router) {
				r.Use(s.requirePermission(auth.PermDocumentsWrite))

				r.Put("/documents/{type}", s.handleSaveDocument)
			})
		})
	})

	return r
}

// handleHealth returns the server health status and open stream counts.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	resp := map[string]any{
		"status":  "ok",
		"version": s.version,
		"streams": s.hub.Stats(),
	}

	if s.database != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()
		if err := s.database.HealthCheck(ctx); err != nil {
			s.logger.Warn("database health check failed", "error", err)
			status = http.StatusServiceUnavailable
			resp["status"] = "degraded"
			resp["database"] = "unavailable"
		} else {
			resp["database"] = "ok"
		}
	}

	writeJSON(w, status, resp)
}
