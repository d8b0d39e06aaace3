package health

import (
	"fmt"
	"time"
)

// Component status values as they appear on the wire.
const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// Status is the health of one component, or of the whole daemon when it
// carries SubStatuses. It marshals directly into the /healthz response.
type Status struct {
	Component   string    `json:"component"`
	Healthy     bool      `json:"healthy"`
	Status      string    `json:"status"`
	Message     string    `json:"message"`
	Timestamp   time.Time `json:"timestamp"`
	SubStatuses []Status  `json:"sub_statuses,omitempty"`
	Metrics     *Metrics  `json:"metrics,omitempty"`
}

// Metrics carries the counters a component reports alongside its status.
type Metrics struct {
	Uptime          time.Duration `json:"uptime"`
	ErrorCount      int           `json:"error_count"`
	EventsProcessed int64         `json:"events_processed,omitempty"`
	LastActivity    time.Time     `json:"last_activity,omitempty"`
}

func newStatus(component, status, message string) Status {
	return Status{
		Component: component,
		Healthy:   status == StatusHealthy,
		Status:    status,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// NewHealthy reports a component as healthy.
func NewHealthy(component, message string) Status {
	return newStatus(component, StatusHealthy, message)
}

// NewDegraded reports a component as degraded: still working, but below
// its normal capacity (a federation with some servers down, for example).
func NewDegraded(component, message string) Status {
	return newStatus(component, StatusDegraded, message)
}

// NewUnhealthy reports a component as unhealthy.
func NewUnhealthy(component, message string) Status {
	return newStatus(component, StatusUnhealthy, message)
}

// IsHealthy reports whether the status is healthy.
func (s Status) IsHealthy() bool { return s.Status == StatusHealthy }

// IsDegraded reports whether the status is degraded.
func (s Status) IsDegraded() bool { return s.Status == StatusDegraded }

// IsUnhealthy reports whether the status is unhealthy.
func (s Status) IsUnhealthy() bool { return s.Status == StatusUnhealthy }

// Aggregate rolls a set of component statuses into one. Any unhealthy
// component makes the whole unhealthy; otherwise any degraded component
// makes it degraded. The inputs are copied into SubStatuses, so mutating
// the result does not touch the caller's slice.
func Aggregate(component string, subs []Status) Status {
	if len(subs) == 0 {
		return NewHealthy(component, "no components registered")
	}

	var unhealthy, degraded int
	for _, sub := range subs {
		switch {
		case sub.IsUnhealthy():
			unhealthy++
		case sub.IsDegraded():
			degraded++
		}
	}

	var agg Status
	switch {
	case unhealthy > 0:
		agg = NewUnhealthy(component, fmt.Sprintf("%d of %d components unhealthy", unhealthy, len(subs)))
	case degraded > 0:
		agg = NewDegraded(component, fmt.Sprintf("%d of %d components degraded", degraded, len(subs)))
	default:
		agg = NewHealthy(component, fmt.Sprintf("all %d components healthy", len(subs)))
	}

	agg.SubStatuses = append([]Status(nil), subs...)
	return agg
}
