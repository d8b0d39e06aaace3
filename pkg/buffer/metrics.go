package buffer

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/omnitak/takcore/metric"
)

// ringMetrics exposes ring activity as Prometheus metrics. The owning
// component's name rides along as a const label so multiple rings stay
// distinguishable.
type ringMetrics struct {
	appends prometheus.Counter
	drops   prometheus.Counter

	size        prometheus.Gauge
	utilization prometheus.Gauge
}

func newRingMetrics(registry *metric.MetricsRegistry, prefix string) (*ringMetrics, error) {
	opts := func(name, help string) prometheus.Opts {
		return prometheus.Opts{
			Namespace:   "takcore",
			Subsystem:   "buffer",
			Name:        name,
			ConstLabels: prometheus.Labels{"component": prefix},
			Help:        help,
		}
	}

	m := &ringMetrics{
		appends: prometheus.NewCounter(prometheus.CounterOpts(
			opts("appends_total", "Items appended to the ring"))),
		drops: prometheus.NewCounter(prometheus.CounterOpts(
			opts("drops_total", "Items displaced by a full ring"))),
		size: prometheus.NewGauge(prometheus.GaugeOpts(
			opts("size", "Items currently retained"))),
		utilization: prometheus.NewGauge(prometheus.GaugeOpts(
			opts("utilization", "Ring fill as a fraction of capacity"))),
	}

	err := errors.Join(
		registry.RegisterCounter(prefix, "buffer_appends", m.appends),
		registry.RegisterCounter(prefix, "buffer_drops", m.drops),
		registry.RegisterGauge(prefix, "buffer_size", m.size),
		registry.RegisterGauge(prefix, "buffer_utilization", m.utilization),
	)
	if err != nil {
		return nil, err
	}

	return m, nil
}

func (m *ringMetrics) recordAppend(size, capacity int) {
	m.appends.Inc()
	m.setSize(size, capacity)
}

func (m *ringMetrics) recordDrop() {
	m.drops.Inc()
}

func (m *ringMetrics) setSize(size, capacity int) {
	m.size.Set(float64(size))
	m.utilization.Set(float64(size) / float64(capacity))
}
