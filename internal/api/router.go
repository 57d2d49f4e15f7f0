package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

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
		// Health check (no auth required)
		r.Get("/health", s.handleHealth)

		// Auth endpoints (no auth required)
		r.Post("/auth/login", s.handleLogin)

		// System metrics (no auth required for basic monitoring)
		r.Get("/metrics", s.handleMetrics)

		// WebSocket (auth via ticket, validated in handler)
		r.Get("/ws", s.handleWebSocket)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)
			r.Use(requirePrincipal)

			r.Post("/auth/ws-ticket", s.handleWSTicket)

			r.Route("/devices", func(r chi.Router) {
				r.Get("/", s.handleListDevices)
				r.Post("/", s.handleCreateDevice)
				r.Get("/find", s.handleFindDevice)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", s.handleGetDevice)
					r.Patch("/", s.handlePatchDevice)
					r.Delete("/", s.handleDeleteDevice)
					r.Post("/rpc/{func}", s.handleDeviceRPC)
					r.Get("/manufacturer_info", s.handleManufacturerInfo)
					r.Get("/manufacturer_info/{key}", s.handleManufacturerInfo)
					r.Get("/measurements", s.handleListMeasurements)
					r.Post("/measurements", s.handleCreateMeasurement)
					r.Post("/status", s.handleDeviceStatus)
					r.Get("/activity", s.handleListActivity)
				})
			})

			r.Route("/users", func(r chi.Router) {
				r.Use(requireHuman)

				r.Get("/me", s.handleMe)

				r.Group(func(r chi.Router) {
					r.Use(requireAdmin)
					r.Get("/", s.handleListUsers)
					r.Post("/", s.handleCreateUser)
					r.Patch("/{id}", s.handleUpdateUser)
					r.Delete("/{id}", s.handleDeleteUser)
				})

				r.Get("/{id}/api_key", s.handleGetUserAPIKey)
				r.Post("/{id}/api_key", s.handleCreateUserAPIKey)
				r.Delete("/{id}/api_key", s.handleDeleteUserAPIKey)
			})
		})
	})

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
	})
}
