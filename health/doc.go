// Package health provides health monitoring for daemon components with
// thread-safe status tracking and aggregation.
//
// The package tracks the health of individual components and aggregates
// system-wide health for the status gateway's /healthz endpoint.
//
// # Health States
//
// Three states are supported:
//   - Healthy: component operating normally
//   - Degraded: component operating with reduced functionality
//   - Unhealthy: component not functioning properly
//
// A degraded federation link (some servers down, some up) reads
// differently on a dashboard than a dead one; the three-state model keeps
// that distinction.
//
// # Core Components
//
// Status holds a single component's health: state, message, timestamp,
// optional metrics, and optional sub-statuses. Monitor tracks many
// components under one lock and aggregates them.
//
//	monitor := health.NewMonitor()
//	monitor.UpdateHealthy("marker-store", "sweeping normally")
//	monitor.UpdateDegraded("federation", "1 of 3 servers connected")
//
//	overall := monitor.AggregateHealth("takfed")
//	// overall.Status == "degraded"
//
// Aggregation rules: any unhealthy sub-status makes the aggregate
// unhealthy; otherwise any degraded sub-status makes it degraded;
// otherwise healthy.
//
// # Component Bridge
//
// FromComponentHealth converts a component.HealthStatus (the lifecycle
// package's health shape) into a Status, sanitizing the last error
// message on the way. Sanitization strips URLs, file paths, IP addresses,
// ports, and credential-shaped fragments so a health endpoint never leaks
// a server address or a certificate path:
//
//	st := health.FromComponentHealth("federation", mgr.Health())
//	// "dial tcp 10.1.2.3:8089: refused" -> "dial tcp [IP][PORT]: refused"
//
// All Monitor operations are safe for concurrent use.
package health
