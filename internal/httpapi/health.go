// Package httpapi provides the gateway's own management surface: health,
// catalogue admin CRUD, on-demand validation, and metrics read/reset,
// alongside the dynamically synthesized endpoints the Dispatch Engine
// registers.
package httpapi

import (
	"encoding/json"
	"net/http"

	"sqlgateway/internal/catalog"
	"sqlgateway/internal/pool"
)

// HealthHandler exposes the gateway's own liveness/readiness surface,
// distinct from the per-database dispatch health tracked by pool.Manager.
type HealthHandler struct {
	manager *pool.Manager
	store   catalog.Store
}

func NewHealthHandler(manager *pool.Manager, store catalog.Store) *HealthHandler {
	return &HealthHandler{manager: manager, store: store}
}

func (h *HealthHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/health", h.handleHealth)
	mux.HandleFunc("GET /api/generic/health", h.handleEngineHealth)
}

// handleHealth is the bare liveness probe: {status:"UP"}.
func (h *HealthHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "UP"})
}

// handleEngineHealth reports engine health: liveness plus the number of
// endpoints currently synthesized from the catalogue.
func (h *HealthHandler) handleEngineHealth(w http.ResponseWriter, r *http.Request) {
	endpoints, err := h.store.Endpoints().Count()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"status": "DOWN", "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":        "UP",
		"endpointCount": endpoints,
	})
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}
