package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/fundsage/FundSage/internal/adapter/otel"
	"github.com/fundsage/FundSage/internal/middleware"
)

// NewRouter builds the chi router with the standard middleware stack and all
// API routes mounted.
func NewRouter(h *Handlers, serviceName, corsOrigin string, limiter *middleware.RateLimiter) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(Logger)
	r.Use(SecurityHeaders)
	r.Use(CORS(corsOrigin))
	r.Use(otel.HTTPMiddleware(serviceName))
	if limiter != nil {
		r.Use(limiter.Handler)
	}

	MountRoutes(r, h)
	return r
}

// MountRoutes registers all API routes on the given chi router.
func MountRoutes(r chi.Router, h *Handlers) {
	r.Get("/health", h.Health)
	r.Get("/ws", h.HandleWS)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"version":"0.1.0"}`))
		})

		// Analysis runs
		r.Post("/analysis", h.StartAnalysis)
		r.Post("/analysis/stream", h.StreamAnalysis)

		// Run archive
		r.Get("/runs", h.ListRuns)
		r.Get("/runs/{id}", h.GetRun)

		// Pension records
		r.Get("/members/{id}", h.GetMember)
		r.Put("/members/{id}", h.UpsertMember)
	})
}
