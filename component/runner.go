package component

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/omnitak/takcore/errors"
	"github.com/omnitak/takcore/metric"
)

// rollbackTimeout bounds the cleanup of already-started components when a
// later component fails to start.
const rollbackTimeout = 5 * time.Second

// Runner sequences component lifecycles: Initialize and Start in
// registration order, Stop in reverse. Each component gets its own child
// context so shutdown can signal intent before Stop is called.
type Runner struct {
	logger *slog.Logger
	core   *metric.Metrics

	mu      sync.Mutex
	order   []string
	entries map[string]*managed
	started bool
}

type managed struct {
	component Component
	state     State
	lastErr   error
	cancel    context.CancelFunc
	startedAt time.Time
}

// NewRunner creates a runner. Both arguments may be nil; core metrics are
// simply not recorded without a registry.
func NewRunner(logger *slog.Logger, core *metric.Metrics) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		logger:  logger.With("component", "runner"),
		core:    core,
		entries: make(map[string]*managed),
	}
}

// Add registers a component under a unique name. Registration order is
// start order.
func (r *Runner) Add(name string, comp Component) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if name == "" || comp == nil {
		return errors.WrapInvalid(fmt.Errorf("name and component are required"),
			"runner", "Add", "registration validation")
	}
	if r.started {
		return errors.WrapInvalid(fmt.Errorf("runner already started"),
			"runner", "Add", "registration after start")
	}
	if _, exists := r.entries[name]; exists {
		return errors.WrapInvalid(fmt.Errorf("component %s already registered", name),
			"runner", "Add", "duplicate registration")
	}

	r.entries[name] = &managed{component: comp, state: StateCreated}
	r.order = append(r.order, name)
	return nil
}

// Initialize initializes all components in registration order, stopping at
// the first failure.
func (r *Runner) Initialize() error {
	for _, name := range r.names() {
		mc := r.entry(name)
		if mc == nil {
			continue
		}

		if err := mc.component.Initialize(); err != nil {
			r.setState(name, StateFailed, err)
			return errors.Wrap(err, "runner", "Initialize", fmt.Sprintf("initialize %s", name))
		}
		r.setState(name, StateInitialized, nil)
	}
	return nil
}

// Start starts all components in registration order. On failure the
// already-started components are stopped in reverse before the error is
// returned.
func (r *Runner) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.started {
		r.mu.Unlock()
		return nil
	}
	r.started = true
	names := make([]string, len(r.order))
	copy(names, r.order)
	r.mu.Unlock()

	started := make([]string, 0, len(names))
	for _, name := range names {
		mc := r.entry(name)
		if mc == nil {
			continue
		}

		childCtx, cancel := context.WithCancel(ctx)
		r.mu.Lock()
		mc.cancel = cancel
		r.mu.Unlock()

		r.logger.Info("Starting component", "name", name)
		if err := mc.component.Start(childCtx); err != nil {
			cancel()
			r.setState(name, StateFailed, err)
			r.logger.Error("Component failed to start", "name", name, "error", err)
			r.rollback(started)
			return errors.Wrap(err, "runner", "Start", fmt.Sprintf("start %s", name))
		}

		r.mu.Lock()
		mc.state = StateStarted
		mc.lastErr = nil
		mc.startedAt = time.Now()
		r.mu.Unlock()
		r.recordStatus(name, StateStarted)
		started = append(started, name)
	}

	return nil
}

// Stop stops all components in reverse registration order, sharing the
// timeout budget across them. Contexts are cancelled first so components
// see shutdown intent before Stop runs.
func (r *Runner) Stop(timeout time.Duration) error {
	r.mu.Lock()
	if !r.started {
		r.mu.Unlock()
		return nil
	}
	r.started = false
	names := make([]string, len(r.order))
	copy(names, r.order)
	r.mu.Unlock()

	for i := len(names) - 1; i >= 0; i-- {
		if mc := r.entry(names[i]); mc != nil && mc.cancel != nil {
			mc.cancel()
		}
	}

	deadline := time.Now().Add(timeout)
	var failures []error
	for i := len(names) - 1; i >= 0; i-- {
		name := names[i]
		mc := r.entry(name)
		if mc == nil {
			continue
		}

		remaining := time.Until(deadline)
		if remaining < 0 {
			remaining = 0
		}

		if err := mc.component.Stop(remaining); err != nil {
			r.setState(name, StateFailed, err)
			r.logger.Error("Component failed to stop", "name", name, "error", err)
			failures = append(failures, fmt.Errorf("%s: %w", name, err))
			continue
		}
		r.setState(name, StateStopped, nil)
		r.logger.Info("Component stopped", "name", name)
	}

	if len(failures) > 0 {
		return errors.WrapTransient(
			fmt.Errorf("failed to stop %d components: %v", len(failures), failures),
			"runner", "Stop", "graceful shutdown")
	}
	return nil
}

// States returns the lifecycle state of every registered component.
func (r *Runner) States() map[string]State {
	r.mu.Lock()
	defer r.mu.Unlock()

	states := make(map[string]State, len(r.entries))
	for name, mc := range r.entries {
		states[name] = mc.state
	}
	return states
}

// Health returns per-component health. Components implementing
// HealthReporter speak for themselves; for the rest the runner derives a
// status from its own state tracking.
func (r *Runner) Health() map[string]HealthStatus {
	r.mu.Lock()
	type snap struct {
		comp      Component
		state     State
		lastErr   error
		startedAt time.Time
	}
	snaps := make(map[string]snap, len(r.entries))
	for name, mc := range r.entries {
		snaps[name] = snap{mc.component, mc.state, mc.lastErr, mc.startedAt}
	}
	r.mu.Unlock()

	health := make(map[string]HealthStatus, len(snaps))
	for name, s := range snaps {
		if hr, ok := s.comp.(HealthReporter); ok {
			health[name] = hr.Health()
			continue
		}

		hs := HealthStatus{
			Healthy:   s.state == StateStarted,
			LastCheck: time.Now(),
		}
		if s.lastErr != nil {
			hs.LastError = s.lastErr.Error()
			hs.ErrorCount = 1
		}
		if s.state == StateStarted && !s.startedAt.IsZero() {
			hs.Uptime = time.Since(s.startedAt)
		}
		health[name] = hs
	}
	return health
}

// Names returns the registered component names in start order.
func (r *Runner) Names() []string {
	return r.names()
}

func (r *Runner) names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

func (r *Runner) entry(name string) *managed {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.entries[name]
}

func (r *Runner) setState(name string, state State, err error) {
	r.mu.Lock()
	if mc, exists := r.entries[name]; exists {
		mc.state = state
		mc.lastErr = err
	}
	r.mu.Unlock()
	r.recordStatus(name, state)
}

// rollback stops the named components in reverse order after a later
// component failed to start.
func (r *Runner) rollback(started []string) {
	for i := len(started) - 1; i >= 0; i-- {
		name := started[i]
		mc := r.entry(name)
		if mc == nil {
			continue
		}
		if mc.cancel != nil {
			mc.cancel()
		}
		if err := mc.component.Stop(rollbackTimeout); err != nil {
			r.logger.Warn("Rollback stop failed", "name", name, "error", err)
			r.setState(name, StateFailed, err)
			continue
		}
		r.setState(name, StateStopped, nil)
	}

	r.mu.Lock()
	r.started = false
	r.mu.Unlock()
}

func (r *Runner) recordStatus(name string, state State) {
	if r.core == nil {
		return
	}
	r.core.RecordComponentStatus(name, statusCode(state))
}
