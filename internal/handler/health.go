package handler

import (
	"context"
	"net/http"
	"time"
)

// Pinger reports backend connectivity. *store.Postgres satisfies it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ConnChecker reports event bus connectivity. *notify.Publisher satisfies it.
type ConnChecker interface {
	IsConnected() bool
}

// HealthHandler handles health check endpoints. Either dependency may be nil
// when the corresponding backend is not configured.
type HealthHandler struct {
	db  Pinger
	bus ConnChecker
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(db Pinger, bus ConnChecker) *HealthHandler {
	return &HealthHandler{db: db, bus: bus}
}

// Health handles GET /health.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "conversational-platform",
	})
}

// Ready handles GET /ready.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	if h.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.db.Ping(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not ready",
				"reason": "database unreachable",
			})
			return
		}
	}
	if h.bus != nil && !h.bus.IsConnected() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"reason": "NATS not connected",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
