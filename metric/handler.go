package metric

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler returns an http.Handler serving the registry in Prometheus
// exposition format. The status gateway mounts it at /metrics.
func (r *MetricsRegistry) Handler() http.Handler {
	return promhttp.HandlerFor(
		r.prom,
		promhttp.HandlerOpts{
			EnableOpenMetrics: true,
		},
	)
}
