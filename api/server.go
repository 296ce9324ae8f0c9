/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Recoverer:      Panic recovery (500 instead of crash)
  2. RequestID:      Unique ID per request for tracing
  3. RequestLogger:  Structured request log (method, path, status, duration)
  4. CORS:           Cross-origin requests for the frontend

ROUTE GROUPS:
  /api/grants/*       Grant provisioning, quarter ledger, withdrawals
  /api/fees/*         Fee previews (no grant required)
  /api/principals/*   Transaction PIN lifecycle

SECURITY NOTE:
  No authentication middleware here. The engine trusts the principalID in
  the path; the identity layer in front of this API owns session checks.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/unseaf/grant-engine/logger"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(logger.RequestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		// Grant routes
		r.Route("/grants/{principalID}", func(r chi.Router) {
			r.Put("/", h.SaveGrant)
			r.Get("/quarter", h.GetQuarter)
			r.Get("/withdrawals", h.ListWithdrawals)
			r.Post("/withdrawals", h.SubmitWithdrawal)
		})

		// Fee routes
		r.Route("/fees", func(r chi.Router) {
			r.Post("/quote", h.QuoteFee)
			r.Post("/project-quote", h.QuoteProjectFee)
		})

		// PIN routes
		r.Route("/principals/{principalID}/pin", func(r chi.Router) {
			r.Put("/", h.SetPin)
			r.Delete("/", h.DeletePin)
			r.Get("/status", h.PinStatus)
		})
	})

	return r
}
