package httpapi

import (
	"encoding/json"
	"net/http"

	"sqlgateway/internal/catalog"
	"sqlgateway/internal/gatewayerr"
)

// AdminHandler exposes CRUD over the three catalogues under
// /api/management/config-mgmt, the gateway's own administrative surface
// (distinct from the dynamically dispatched endpoints it is configuring).
// Endpoint writes are followed by a synchronous rebind of the Dispatch
// Engine's route table so the new catalogue takes effect immediately.
type AdminHandler struct {
	store  catalog.Store
	rebind func() error
}

// NewAdminHandler wires the catalogue store and the Dispatch Engine's
// rebind hook. rebind may be nil (tests, validate-only mode).
func NewAdminHandler(store catalog.Store, rebind func() error) *AdminHandler {
	return &AdminHandler{store: store, rebind: rebind}
}

func (h *AdminHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/management/config-mgmt/reload", h.handleReload)
	mux.HandleFunc("GET /api/management/config-mgmt/databases", h.listDatabases)
	mux.HandleFunc("PUT /api/management/config-mgmt/databases/{name}", h.upsertDatabase)
	mux.HandleFunc("DELETE /api/management/config-mgmt/databases/{name}", h.deleteDatabase)

	mux.HandleFunc("GET /api/management/config-mgmt/queries", h.listQueries)
	mux.HandleFunc("PUT /api/management/config-mgmt/queries/{name}", h.upsertQuery)
	mux.HandleFunc("DELETE /api/management/config-mgmt/queries/{name}", h.deleteQuery)

	mux.HandleFunc("GET /api/management/config-mgmt/endpoints", h.listEndpoints)
	mux.HandleFunc("GET /api/generic/endpoints", h.listEndpoints)
	mux.HandleFunc("GET /api/generic/endpoints/{name}", h.getEndpoint)
	mux.HandleFunc("PUT /api/management/config-mgmt/endpoints/{name}", h.upsertEndpoint)
	mux.HandleFunc("DELETE /api/management/config-mgmt/endpoints/{name}", h.deleteEndpoint)
}

func (h *AdminHandler) listDatabases(w http.ResponseWriter, r *http.Request) {
	all, err := h.store.Databases().LoadAll()
	if err != nil {
		gatewayerr.MapToHTTP(w, err, r.URL.Path)
		return
	}
	redacted := make(map[string]catalog.DatabaseSpec, len(all))
	for k, v := range all {
		v.Password = ""
		redacted[k] = v
	}
	writeJSON(w, http.StatusOK, redacted)
}

func (h *AdminHandler) upsertDatabase(w http.ResponseWriter, r *http.Request) {
	var spec catalog.DatabaseSpec
	if !decodeBody(w, r, &spec) {
		return
	}
	spec.Name = r.PathValue("name")
	if err := h.store.Databases().Upsert(spec); err != nil {
		gatewayerr.MapToHTTP(w, err, r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"name": spec.Name})
}

func (h *AdminHandler) deleteDatabase(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.store.Databases().Delete(r.PathValue("name"))
	if err != nil {
		gatewayerr.MapToHTTP(w, err, r.URL.Path)
		return
	}
	if !deleted {
		gatewayerr.MapToHTTP(w, gatewayerr.NotFound("database not found"), r.URL.Path)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandler) listQueries(w http.ResponseWriter, r *http.Request) {
	all, err := h.store.Queries().LoadAll()
	if err != nil {
		gatewayerr.MapToHTTP(w, err, r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, all)
}

func (h *AdminHandler) upsertQuery(w http.ResponseWriter, r *http.Request) {
	var spec catalog.QuerySpec
	if !decodeBody(w, r, &spec) {
		return
	}
	spec.Name = r.PathValue("name")
	if err := h.store.Queries().Upsert(spec); err != nil {
		gatewayerr.MapToHTTP(w, err, r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"name": spec.Name})
}

func (h *AdminHandler) deleteQuery(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.store.Queries().Delete(r.PathValue("name"))
	if err != nil {
		gatewayerr.MapToHTTP(w, err, r.URL.Path)
		return
	}
	if !deleted {
		gatewayerr.MapToHTTP(w, gatewayerr.NotFound("query not found"), r.URL.Path)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandler) listEndpoints(w http.ResponseWriter, r *http.Request) {
	all, err := h.store.Endpoints().LoadAll()
	if err != nil {
		gatewayerr.MapToHTTP(w, err, r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, all)
}

func (h *AdminHandler) getEndpoint(w http.ResponseWriter, r *http.Request) {
	ep, err := h.store.Endpoints().LoadByName(r.PathValue("name"))
	if err != nil {
		gatewayerr.MapToHTTP(w, err, r.URL.Path)
		return
	}
	if ep == nil {
		gatewayerr.MapToHTTP(w, gatewayerr.NotFound("endpoint not found"), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, ep)
}

func (h *AdminHandler) upsertEndpoint(w http.ResponseWriter, r *http.Request) {
	var spec catalog.EndpointSpec
	if !decodeBody(w, r, &spec) {
		return
	}
	spec.Name = r.PathValue("name")
	if err := h.store.Endpoints().Upsert(spec); err != nil {
		gatewayerr.MapToHTTP(w, err, r.URL.Path)
		return
	}
	if err := h.doRebind(); err != nil {
		gatewayerr.MapToHTTP(w, err, r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"name": spec.Name})
}

func (h *AdminHandler) deleteEndpoint(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.store.Endpoints().Delete(r.PathValue("name"))
	if err != nil {
		gatewayerr.MapToHTTP(w, err, r.URL.Path)
		return
	}
	if !deleted {
		gatewayerr.MapToHTTP(w, gatewayerr.NotFound("endpoint not found"), r.URL.Path)
		return
	}
	if err := h.doRebind(); err != nil {
		gatewayerr.MapToHTTP(w, err, r.URL.Path)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleReload rebinds the Dispatch Engine against the current catalogue
// on demand.
func (h *AdminHandler) handleReload(w http.ResponseWriter, r *http.Request) {
	if err := h.doRebind(); err != nil {
		gatewayerr.MapToHTTP(w, err, r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reloaded"})
}

func (h *AdminHandler) doRebind() error {
	if h.rebind == nil {
		return nil
	}
	return h.rebind()
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		gatewayerr.MapToHTTP(w, gatewayerr.BadRequest("invalid request body: "+err.Error()), r.URL.Path)
		return false
	}
	return true
}
