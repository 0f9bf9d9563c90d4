package httpx

import (
	"errors"
	"net/http"

	"github.com/vidforge/vidforge/internal/service"
)

// HealthHandlers reports process and dependency readiness.
type HealthHandlers struct {
	Svc *service.JobService
}

// Health answers liveness/readiness probes. The database and the queue must
// both be reachable for the service to accept work. The body also carries the
// live worker count so probes can tell an idle deployment from a dead one.
func (h *HealthHandlers) Health(w http.ResponseWriter, r *http.Request) {
	if h.Svc != nil {
		if err := h.Svc.Health(r.Context()); err != nil {
			WriteError(w, ErrorParams{
				Code:    http.StatusServiceUnavailable,
				ErrCode: "unhealthy",
				Err:     errors.New("dependency unreachable"),
			})
			return
		}
	}

	if r.Method == http.MethodHead {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		return
	}

	resp := map[string]any{"status": "ok"}
	if h.Svc != nil {
		if workers, err := h.Svc.LiveWorkers(r.Context()); err == nil {
			resp["live_workers"] = workers
		}
	}
	WriteJSON(w, http.StatusOK, resp)
}
