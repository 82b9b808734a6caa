package handlers

import (
	"context"
	"net/http"
	"time"
)

// Pinger is a backend that can report whether it is reachable.
// store.Store implements it.
type Pinger interface {
	Healthcheck(ctx context.Context) error
}

// HealthHandler handles health check endpoints.
//
// Health endpoints are unauthenticated and provide:
//   - Liveness check: Is the server process running?
//   - Readiness check: Is the credential and ownership store reachable?
type HealthHandler struct {
	store     Pinger
	storeType string
}

// NewHealthHandler creates a new health handler. store may be nil, in which
// case readiness reports unhealthy.
func NewHealthHandler(store Pinger, storeType string) *HealthHandler {
	return &HealthHandler{store: store, storeType: storeType}
}

// Liveness handles GET /health. It succeeds as long as the HTTP server is
// responsive.
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthyResponse(map[string]string{
		"service": "cntfs",
	}))
}

// StoreHealth is the readiness detail for the backing store.
type StoreHealth struct {
	Type    string `json:"type"`
	Status  string `json:"status"`
	Error   string `json:"error,omitempty"`
	Latency string `json:"latency,omitempty"`
}

// Readiness handles GET /health/ready by pinging the store.
//
// Returns 503 Service Unavailable if the store is missing or unreachable.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeJSON(w, http.StatusServiceUnavailable, unhealthyResponse("store not initialized"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	start := time.Now()
	err := h.store.Healthcheck(ctx)
	health := StoreHealth{Type: h.storeType, Latency: time.Since(start).String()}

	if err != nil {
		health.Status = "unhealthy"
		health.Error = err.Error()
		writeJSON(w, http.StatusServiceUnavailable, Response{
			Status:    "unhealthy",
			Timestamp: time.Now().UTC(),
			Data:      health,
			Error:     "store unreachable",
		})
		return
	}

	health.Status = "healthy"
	writeJSON(w, http.StatusOK, healthyResponse(health))
}
