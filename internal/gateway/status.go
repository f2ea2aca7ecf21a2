package gateway

import (
	"net/http"
	"time"

	"github.com/flemzord/pulse/internal/scheduler"
	"github.com/flemzord/pulse/internal/watch"
)

// StatusResponse is the JSON response for GET /status.
type StatusResponse struct {
	UptimeSeconds int64                 `json:"uptime_seconds"`
	Jobs          []scheduler.JobStatus `json:"jobs"`
	Ticks         []tickJSON            `json:"ticks"`
}

// tickJSON is a serializable watch.TickResult.
type tickJSON struct {
	Job        string    `json:"job"`
	Key        string    `json:"key"`
	At         time.Time `json:"at"`
	DurationMS int64     `json:"duration_ms"`
	Fetched    int       `json:"fetched"`
	Added      int       `json:"added"`
	Removed    int       `json:"removed"`
	Persisted  bool      `json:"persisted"`
	SaveFailed bool      `json:"save_failed,omitempty"`
	Notified   int       `json:"notified"`
	Error      string    `json:"error,omitempty"`
}

func toTickJSON(r watch.TickResult) tickJSON {
	t := tickJSON{
		Job:        r.Job,
		Key:        r.Key,
		At:         r.At,
		DurationMS: r.Duration.Milliseconds(),
		Fetched:    r.Fetched,
		Added:      r.Added,
		Removed:    r.Removed,
		Persisted:  r.Persisted,
		SaveFailed: r.SaveFailed,
		Notified:   r.Notified,
	}
	if r.Err != nil {
		t.Error = r.Err.Error()
	}
	return t
}

// handleStatus returns an http.HandlerFunc for GET /status.
func (g *Gateway) handleStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		resp := StatusResponse{
			UptimeSeconds: int64(time.Since(g.startedAt).Seconds()),
			Jobs:          []scheduler.JobStatus{},
			Ticks:         []tickJSON{},
		}

		if g.jobs != nil {
			resp.Jobs = g.jobs.Jobs()
		}

		if g.ticks != nil {
			for _, r := range g.ticks.Last() {
				resp.Ticks = append(resp.Ticks, toTickJSON(r))
			}
		}

		writeJSON(w, http.StatusOK, resp)
	}
}
