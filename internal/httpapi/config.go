package httpapi

import (
	"net/http"

	"sqlgateway/internal/catalog"
	"sqlgateway/internal/gatewayerr"
	"sqlgateway/internal/pool"
	"sqlgateway/internal/validate"
)

// ConfigHandler exposes the loaded catalogues and an on-demand validation
// trigger.
type ConfigHandler struct {
	store     catalog.Store
	manager   *pool.Manager
	validator *validate.Validator
}

func NewConfigHandler(store catalog.Store, manager *pool.Manager, validator *validate.Validator) *ConfigHandler {
	return &ConfigHandler{store: store, manager: manager, validator: validator}
}

func (h *ConfigHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/generic/config", h.handleConfig)
	mux.HandleFunc("GET /api/generic/config/validate", h.handleValidate)
	mux.HandleFunc("GET /api/generic/config/validate/{scope}", h.handleValidate)
}

// handleConfig returns the three loaded catalogues in one payload.
func (h *ConfigHandler) handleConfig(w http.ResponseWriter, r *http.Request) {
	databases, err := h.store.Databases().LoadAll()
	if err != nil {
		gatewayerr.MapToHTTP(w, err, r.URL.Path)
		return
	}
	queries, err := h.store.Queries().LoadAll()
	if err != nil {
		gatewayerr.MapToHTTP(w, err, r.URL.Path)
		return
	}
	endpoints, err := h.store.Endpoints().LoadAll()
	if err != nil {
		gatewayerr.MapToHTTP(w, err, r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"databases": databases,
		"queries":   queries,
		"endpoints": endpoints,
	})
}

// handleValidate runs the validator on demand. The optional {scope}
// sub-resource narrows the run: endpoints/queries/databases re-run that
// entity kind's catalogue-chain checks, relationships re-runs the
// referential closure, and no scope runs both phases in full.
func (h *ConfigHandler) handleValidate(w http.ResponseWriter, r *http.Request) {
	scope, err := validate.ParseScope(r.PathValue("scope"))
	if err != nil {
		gatewayerr.MapToHTTP(w, gatewayerr.BadRequest(err.Error()), r.URL.Path)
		return
	}

	report, err := h.validator.RunScope(r.Context(), h.store, h.manager, scope)
	if err != nil {
		gatewayerr.MapToHTTP(w, err, r.URL.Path)
		return
	}
	status := http.StatusOK
	if !report.OK() {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, report)
}
