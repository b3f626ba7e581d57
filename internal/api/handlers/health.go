package handlers

import (
	"net/http"

	"github.com/onnwee/nodelayout/internal/metrics"
)

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status   string `json:"status"`
	Canvases int    `json:"canvases"`
}

// Health reports the API as alive together with the number of open canvases.
// A failing stats source degrades the status but still answers 200.
func Health(src metrics.StatsSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := HealthResponse{Status: "ok"}
		stats, err := src.Stats(r.Context())
		if err != nil {
			resp.Status = "degraded"
		}
		resp.Canvases = stats.Sessions
		writeJSON(w, http.StatusOK, resp)
	}
}
