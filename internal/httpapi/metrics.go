package httpapi

import (
	"net/http"

	"sqlgateway/internal/metrics"
)

// MetricsHandler exposes per-endpoint aggregates and an admin reset.
type MetricsHandler struct {
	collector *metrics.Collector
}

func NewMetricsHandler(collector *metrics.Collector) *MetricsHandler {
	return &MetricsHandler{collector: collector}
}

func (h *MetricsHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/metrics/endpoints", h.handleEndpoints)
	mux.HandleFunc("POST /api/metrics/reset", h.handleReset)
}

func (h *MetricsHandler) handleEndpoints(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.collector.Registry.Snapshots())
}

func (h *MetricsHandler) handleReset(w http.ResponseWriter, r *http.Request) {
	h.collector.Reset()
	w.WriteHeader(http.StatusNoContent)
}
