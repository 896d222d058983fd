/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for the dashboard frontend

ROUTE GROUPS:
  /api/transfers        Deposits, shipments, retirements
  /api/distributions    Fan-out distributions
  /api/transactions/*   Transaction log reads, edits, deletes
  /api/balances/*       Tier balance reads
  /api/items/*          Medicine catalog
  /api/owners/*         Rosters
  /api/reports/*        Summaries, coverage, conservation

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, corsOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Post("/transfers", h.CreateTransfer)
		r.Post("/distributions", h.CreateDistribution)

		r.Route("/transactions", func(r chi.Router) {
			r.Get("/", h.ListTransactions)
			r.Get("/{id}", h.GetTransaction)
			r.Put("/{id}", h.EditTransaction)
			r.Delete("/{id}", h.DeleteTransaction)
		})

		r.Route("/balances", func(r chi.Router) {
			r.Get("/{tier}", h.ListTierBalances)
			r.Get("/{tier}/{owner}", h.ListOwnerBalances)
		})

		r.Route("/items", func(r chi.Router) {
			r.Get("/", h.ListItems)
			r.Post("/", h.SaveItem)
			r.Get("/{id}", h.GetItem)
		})

		r.Route("/owners", func(r chi.Router) {
			r.Post("/", h.SaveOwner)
			r.Get("/{tier}", h.ListOwners)
		})

		r.Route("/reports", func(r chi.Router) {
			r.Get("/summary", h.GetSummary)
			r.Get("/coverage", h.GetCoverage)
			r.Get("/conservation", h.GetConservation)
		})
	})

	return r
}
