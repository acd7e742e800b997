package gateway

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/flemzord/sdiscuss/internal/identity"
)

// buildRouter constructs the chi mux with all routes wired.
func (g *Gateway) buildRouter() (http.Handler, error) {
	r := chi.NewRouter()
	r.Use(g.metrics.Middleware)

	// Public, no identity.
	r.Get("/health", g.handleHealth())
	r.Handle("/metrics", promhttp.HandlerFor(g.gatherer(), promhttp.HandlerOpts{}))

	// Comment operations, each behind the identity middleware.
	r.Method(http.MethodGet, "/threads/{thread}/comments", g.auth.Wrap(identity.OpFetch, g.handleFetch()))
	r.Method(http.MethodPost, "/threads/{thread}/comments", g.auth.Wrap(identity.OpCreate, g.handleCreate()))
	r.Method(http.MethodGet, "/comments/{id}", g.auth.Wrap(identity.OpView, g.handleView()))
	r.Method(http.MethodPut, "/comments/{id}", g.auth.Wrap(identity.OpEdit, g.handleEdit()))
	r.Method(http.MethodDelete, "/comments/{id}", g.auth.Wrap(identity.OpDelete, g.handleDelete()))

	// Extension routes share the identity middleware.
	var mountErr error
	r.Group(func(r chi.Router) {
		r.Use(func(next http.Handler) http.Handler {
			return g.auth.Wrap(identity.OpExtension, next)
		})
		mountErr = g.pipeline.Dispatcher.MountRoutes(r)
	})
	if mountErr != nil {
		return nil, mountErr
	}

	// Diagnostics and admin. Behind auth when auth is configured.
	r.Group(func(r chi.Router) {
		if g.config.Auth.IsConfigured() {
			r.Use(authMiddleware(g.config.Auth, g.logger))
		}
		r.Get("/status", g.handleStatus())
		r.Route("/api", func(r chi.Router) {
			r.Get("/extensions", g.handleListExtensions())
			r.Get("/modules", g.handleListModules())
			if g.config.Auth.IsConfigured() {
				r.Get("/moderation/pending", g.handlePending())
				r.Post("/moderation/{id}/{mode}", g.handleModerate())
			}
		})
	})

	return r, nil
}
