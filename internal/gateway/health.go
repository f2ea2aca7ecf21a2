package gateway

import (
	"encoding/json"
	"net/http"
)

// HealthResponse is the JSON response for GET /health.
type HealthResponse struct {
	Status string   `json:"status"` // "ok" or "degraded"
	Jobs   int      `json:"jobs"`
	Failed []string `json:"failed,omitempty"`
}

// handleHealth returns an http.HandlerFunc for GET /health.
// Returns 200 unless every watcher's last tick failed, in which case 503.
func (g *Gateway) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		resp := HealthResponse{Status: "ok"}

		if g.jobs != nil {
			resp.Jobs = len(g.jobs.Jobs())
		}

		if g.ticks != nil {
			last := g.ticks.Last()
			for _, t := range last {
				if t.Err != nil {
					resp.Failed = append(resp.Failed, t.Job)
				}
			}
			if len(last) > 0 && len(resp.Failed) == len(last) {
				resp.Status = "degraded"
			}
		}

		w.Header().Set("Content-Type", "application/json")
		if resp.Status == "degraded" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(resp)
	}
}
