package health

import (
	"sync"
	"time"
)

// Monitor is a concurrency-safe registry of component health. The daemon
// writes into it from component callbacks and the probe loop; the HTTP
// gateway reads the rolled-up view for /healthz.
type Monitor struct {
	mu       sync.RWMutex
	byName map[string]Status
}

// NewMonitor returns an empty monitor.
func NewMonitor() *Monitor {
	return &Monitor{byName: make(map[string]Status)}
}

// Update records the status for name. The status is stored under name
// regardless of its Component field, and a zero Timestamp is stamped
// with the current time.
func (m *Monitor) Update(name string, status Status) {
	status.Component = name
	if status.Timestamp.IsZero() {
		status.Timestamp = time.Now()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.byName[name] = status
}

// UpdateHealthy records name as healthy.
func (m *Monitor) UpdateHealthy(name, message string) {
	m.Update(name, NewHealthy(name, message))
}

// UpdateDegraded records name as degraded.
func (m *Monitor) UpdateDegraded(name, message string) {
	m.Update(name, NewDegraded(name, message))
}

// UpdateUnhealthy records name as unhealthy.
func (m *Monitor) UpdateUnhealthy(name, message string) {
	m.Update(name, NewUnhealthy(name, message))
}

// Get returns the recorded status for name.
func (m *Monitor) Get(name string) (Status, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	status, ok := m.byName[name]
	return status, ok
}

// Snapshot returns a copy of every recorded status keyed by component name.
func (m *Monitor) Snapshot() map[string]Status {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]Status, len(m.byName))
	for name, status := range m.byName {
		out[name] = status
	}
	return out
}

// Components returns the names of every component with a recorded status,
// in no particular order.
func (m *Monitor) Components() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.byName))
	for name := range m.byName {
		names = append(names, name)
	}
	return names
}

// Remove forgets the status recorded for name, if any.
func (m *Monitor) Remove(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.byName, name)
}

// AggregateHealth rolls every recorded status into a single status for
// the named system.
func (m *Monitor) AggregateHealth(system string) Status {
	m.mu.RLock()
	subs := make([]Status, 0, len(m.byName))
	for _, status := range m.byName {
		subs = append(subs, status)
	}
	m.mu.RUnlock()

	return Aggregate(system, subs)
}
