/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route
  definitions. This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. RealIP:     Client IP behind proxies
  3. Logger:     Request logging
  4. Recoverer:  Panic recovery (500 instead of crash)
  5. CORS:       Cross-origin requests for frontend

ROUTE GROUPS:
  /api/accounts/*       Account registration, history, and actions
  /api/points/*         Exchange-formula calculator
  /api/recycle/*        Submission-formula calculator
  /api/submissions/*    Administrative submission workflow
  /api/leaderboard      Points leaderboard
  /metrics              Prometheus metrics
  /healthz              Liveness probe

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/ecopoints/rewards-engine/metrics"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Account routes
		r.Route("/accounts", func(r chi.Router) {
			r.Post("/", h.RegisterAccount)
			r.Get("/{id}", h.GetAccount)
			r.Get("/{id}/stats", h.GetAccountStats)
			r.Get("/{id}/records", h.ListRecords)
			r.Get("/{id}/vouchers", h.ListVouchers)
			r.Post("/{id}/exchange", h.ExchangeWaste)
			r.Post("/{id}/checkin", h.Checkin)
			r.Post("/{id}/redeem", h.Redeem)
			r.Post("/{id}/submissions", h.CreateSubmission)
		})

		// Calculator routes
		r.Post("/points/calculator", h.CalculateExchange)
		r.Post("/recycle/calculate", h.CalculateSubmission)

		// Administrative submission routes
		r.Route("/submissions", func(r chi.Router) {
			r.Get("/", h.ListSubmissions)
			r.Get("/{id}", h.GetSubmission)
			r.Post("/{id}/confirm", h.ConfirmSubmission)
			r.Post("/{id}/complete", h.CompleteSubmission)
			r.Post("/{id}/cancel", h.CancelSubmission)
		})

		r.Get("/leaderboard", h.Leaderboard)
	})

	// Operational endpoints
	r.Handle("/metrics", metrics.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	return r
}
