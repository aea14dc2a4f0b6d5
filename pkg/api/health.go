package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/platinummonkey/bulwark/pkg/observability"
)

// NewHealthMux serves the probes and metrics on the health port.
func NewHealthMux(checker *observability.HealthChecker, registry *prometheus.Registry) *http.ServeMux {
	mux := http.NewServeMux()
	observability.RegisterHealthRoutes(mux, checker)
	if registry != nil {
		observability.RegisterMetricsEndpoint(mux, registry)
	}
	return mux
}
