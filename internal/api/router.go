package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
//
// The entries routes are registered three times each (bare, trailing slash,
// .json suffix) because legacy uploaders use all three spellings of the
// same endpoint and treat a 404 on any of them as a hard failure.
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

		// Account endpoints (no tenant resolution; they create or identify it)
		r.Post("/auth/signup", s.handleSignup)
		r.Post("/auth/login", s.handleLogin)

		// Tenant-scoped routes
		r.Group(func(r chi.Router) {
			r.Use(s.tenantMiddleware)

			// API key management for the caller's tenant
			r.Get("/auth/api-key", s.handleGetAPIKey)
			r.Post("/auth/api-key/rotate", s.handleRotateAPIKey)

			// Entries collection, in all legacy spellings
			for _, p := range []string{"/entries", "/entries/", "/entries.json"} {
				r.Post(p, s.handleCreateEntries)
				r.Get(p, s.handleListEntries)
				r.Delete(p, s.handleDeleteEntries)
			}

			r.Get("/entries/current", s.handleCurrentEntry)
			r.Get("/entries/current.json", s.handleCurrentEntry)

			// {spec} is a 24-hex entry ID, an entry type, or "*"
			r.Get("/entries/{spec}", s.handleGetEntriesSpec)
			r.Delete("/entries/{spec}", s.handleDeleteEntriesSpec)
		})

		// WebSocket (auth via token query parameter, validated in handler)
		r.Get("/ws", s.handleWebSocket)
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
