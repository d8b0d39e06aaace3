// Package metric provides Prometheus-based metrics collection for the
// takcore daemon and its components.
//
// The package offers a centralized metrics registry managing both core
// platform metrics (component lifecycle, event throughput, errors,
// health) and custom component-specific metrics. The registry exposes an
// http.Handler in Prometheus exposition format for the status gateway to
// mount.
//
// # Architecture
//
// The package follows a three-layer design:
//
//  1. Core Metrics: Platform-level metrics automatically registered (Metrics type)
//  2. Component Registry: Extensible registration for component-specific metrics (MetricsRegistrar interface)
//  3. HTTP Handler: Prometheus exposition endpoint mounted by the status gateway (Handler method)
//
// This separates infrastructure concerns (core metrics) from application
// concerns (component-specific metrics) while keeping a single scrape
// endpoint.
//
// # Basic Usage
//
// Setting up metrics collection:
//
//	registry := metric.NewMetricsRegistry()
//
//	// Record core platform metrics
//	coreMetrics := registry.CoreMetrics()
//	coreMetrics.RecordComponentStatus("router", 2)
//	coreMetrics.RecordEventProcessed("router", "routed")
//
//	// Expose the scrape endpoint
//	mux := http.NewServeMux()
//	mux.Handle("/metrics", registry.Handler())
//
// # Core Metrics
//
// The registry automatically registers core platform metrics:
//
//   - takcore_component_status{component} (0=stopped, 1=starting, 2=running, 3=stopping, 4=failed)
//   - takcore_events_processed_total{component, status}
//   - takcore_processing_duration_seconds{component, operation}
//   - takcore_errors_total{component, class}
//   - takcore_health_status{component} (0=unhealthy, 1=healthy)
//
// Go runtime and process collectors are registered as well. The NATS
// client registers its own connection metrics through the registrar.
//
// # Component-Specific Metrics
//
// Components register custom metrics through the MetricsRegistrar
// interface, keyed by "service.metric" to catch duplicates before they
// reach Prometheus:
//
//	sent := prometheus.NewCounterVec(prometheus.CounterOpts{
//	    Namespace: "takcore",
//	    Subsystem: "transport",
//	    Name:      "messages_sent_total",
//	    Help:      "Messages written to a connection",
//	}, []string{"address"})
//	err := registry.RegisterCounterVec("transport", "messages_sent_total", sent)
//
// Registration methods return an invalid-classified error for duplicate
// names and a fatal-classified error for any other Prometheus failure.
//
// # Thread Safety
//
// All registry operations are safe for concurrent use: registration is
// mutex-protected and metric recording is lock-free (a Prometheus client
// guarantee). CoreMetrics and PrometheusRegistry return shared instances
// that are safe to use from any goroutine.
package metric
