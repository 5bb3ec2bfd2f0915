// Package diag exposes a small local HTTP surface for operators: a
// liveness check and a JSON snapshot of the scheduler/queue state. It
// stores nothing and renders nothing beyond that live snapshot — no
// historical metrics, no UI, just the current counters. Routed with chi.
package diag

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// Snapshotter reports the live counters the /snapshot endpoint renders.
type Snapshotter interface {
	QueueLen() int
	MonitorCount() int
	ControlState() string
}

// NewRouter builds the chi router for the diagnostics server.
func NewRouter(snap Snapshotter) chi.Router {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/snapshot", func(w http.ResponseWriter, r *http.Request) {
		body := map[string]any{
			"timestamp":     time.Now().UTC().Format(time.RFC3339),
			"queueLen":      snap.QueueLen(),
			"monitorCount":  snap.MonitorCount(),
			"controlState":  snap.ControlState(),
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(body)
	})

	return r
}
