package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

const healthTimeout = 2 * time.Second

// pinger is implemented by storage drivers that can check their backend.
type pinger interface {
	Ping(ctx context.Context) error
}

// HealthResponse is the JSON response for GET /health.
type HealthResponse struct {
	Status     string `json:"status"` // "ok" or "degraded"
	Store      string `json:"store"`
	Extensions int    `json:"extensions"`
}

// handleHealth returns an http.HandlerFunc for GET /health.
// Returns 200 when the store answers, 503 otherwise.
func (g *Gateway) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := HealthResponse{Status: "ok", Store: "ok"}
		resp.Extensions = len(g.pipeline.Dispatcher.Set().Extensions())

		if p, ok := g.pipeline.Store.(pinger); ok {
			ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
			err := p.Ping(ctx)
			cancel()
			if err != nil {
				g.logger.Warn("health check: store unreachable", "error", err)
				resp.Status = "degraded"
				resp.Store = "unreachable"
			}
		}

		w.Header().Set("Content-Type", "application/json")
		if resp.Status == "degraded" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(resp)
	}
}
