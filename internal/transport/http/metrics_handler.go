package http

import (
	"net/http"

	apierrors "salesforecast/internal/errors"
)

// MetricsHandler exposes the Prometheus registry
type MetricsHandler struct {
	exporter     http.Handler
	errorHandler *apierrors.ErrorHandler
}

// NewMetricsHandler wraps the Prometheus HTTP handler. exporter is nil when
// the metric exporter is disabled.
func NewMetricsHandler(exporter http.Handler, errorHandler *apierrors.ErrorHandler) *MetricsHandler {
	return &MetricsHandler{exporter: exporter, errorHandler: errorHandler}
}

// ServeHTTP handles GET /metrics
func (h *MetricsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.exporter == nil {
		h.errorHandler.HandleError(w, r, apierrors.NewUnavailableError("metrics export"))
		return
	}
	h.exporter.ServeHTTP(w, r)
}
