package handler

import (
	"context"
	"net/http"
	"time"
)

// ReadinessChecker reports whether the Talk server can be reached.
type ReadinessChecker interface {
	Ready(ctx context.Context) error
}

// Connectivity reports the state of an optional dependency.
type Connectivity interface {
	IsConnected() bool
}

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	talk  ReadinessChecker
	relay Connectivity
}

// NewHealthHandler creates a new health handler. relay may be nil when the
// relay is disabled.
func NewHealthHandler(talk ReadinessChecker, relay Connectivity) *HealthHandler {
	return &HealthHandler{
		talk:  talk,
		relay: relay,
	}
}

// Health handles GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}

// Ready handles GET /ready. The bridge is ready once capability discovery
// has succeeded.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	if err := h.talk.Ready(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"reason": "talk capabilities unavailable: " + err.Error(),
		})
		return
	}

	if h.relay != nil && !h.relay.IsConnected() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"reason": "NATS not connected",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ready",
	})
}
