package gateway

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// buildRouter constructs the chi mux with all routes wired.
func (g *Gateway) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Public, no auth required.
	r.Get("/health", g.handleHealth())
	r.Handle("/metrics", promhttp.Handler())

	// Admin endpoints, auth required. Not mounted if no auth configured.
	if g.config.Auth.IsConfigured() {
		r.Group(func(r chi.Router) {
			r.Use(g.rateLimit())
			r.Use(authMiddleware(g.config.Auth, g.audit))
			r.Get("/status", g.handleStatus())
			r.Route("/api", func(r chi.Router) {
				r.Get("/snapshots", g.handleListSnapshots())
				r.Get("/snapshots/{key}", g.handleGetSnapshot())
				r.Get("/modules", g.handleGetAllModules())
				r.Get("/config", g.handleGetConfig())
				r.Get("/ticks/stream", g.handleTickStream())
			})
		})
	}

	return r
}
