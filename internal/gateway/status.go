package gateway

import (
	"net/http"
	"time"
)

// StatusResponse is the JSON response for GET /status.
type StatusResponse struct {
	Uptime     int64           `json:"uptime_seconds"`
	Metrics    MetricsSnapshot `json:"metrics"`
	Extensions []string        `json:"extensions"`
}

// handleStatus returns an http.HandlerFunc for GET /status.
func (g *Gateway) handleStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		resp := StatusResponse{
			Uptime:     int64(time.Since(g.startedAt).Seconds()),
			Metrics:    g.metrics.Snapshot(),
			Extensions: g.pipeline.Dispatcher.Set().Names(),
		}
		if resp.Extensions == nil {
			resp.Extensions = []string{}
		}
		writeJSON(w, http.StatusOK, resp)
	}
}
