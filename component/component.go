// Package component defines the lifecycle contract shared by the daemon's
// long-running pieces and a Runner that sequences them.
package component

import (
	"context"
	"time"
)

// Component is the lifecycle contract every managed piece of the daemon
// follows. Initialize prepares state and takes no context because it
// must not block on I/O; Start begins work under ctx; Stop winds the
// component down within the timeout. Start must be idempotent while
// running and Stop must be safe to call without a prior Start.
type Component interface {
	Initialize() error
	Start(ctx context.Context) error
	Stop(timeout time.Duration) error
}

// HealthReporter is implemented by components that can report richer
// health than the Runner's own state tracking, typically connectivity.
type HealthReporter interface {
	Health() HealthStatus
}

// HealthStatus is the health snapshot a component reports. The JSON
// shape feeds the /healthz payload directly.
type HealthStatus struct {
	Healthy    bool          `json:"healthy"`
	LastCheck  time.Time     `json:"last_check"`
	ErrorCount int           `json:"error_count"`
	LastError  string        `json:"last_error,omitempty"`
	Uptime     time.Duration `json:"uptime"`
}

// State tracks where a component is in its lifecycle.
type State int

const (
	// StateCreated means the component exists but Initialize has not run.
	StateCreated State = iota
	// StateInitialized means the component is ready to start.
	StateInitialized
	// StateStarted means the component is running.
	StateStarted
	// StateStopped means the component shut down.
	StateStopped
	// StateFailed means a lifecycle call returned an error.
	StateFailed
)

// String returns the lowercase state name used in logs.
func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateInitialized:
		return "initialized"
	case StateStarted:
		return "started"
	case StateStopped:
		return "stopped"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// statusCode maps a lifecycle state onto the component status gauge
// (0=stopped, 1=starting, 2=running, 3=stopping, 4=failed).
func statusCode(s State) int {
	switch s {
	case StateInitialized:
		return 1
	case StateStarted:
		return 2
	case StateFailed:
		return 4
	default:
		return 0
	}
}
