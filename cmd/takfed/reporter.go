package main

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/omnitak/takcore/config"
	"github.com/omnitak/takcore/cot"
	"github.com/omnitak/takcore/errors"
	"github.com/omnitak/takcore/federation"
	"github.com/omnitak/takcore/marker"
)

// reporterDeps holds what the self-report loop needs.
type reporterDeps struct {
	Config     *config.Manager
	Federation *federation.Manager
	Markers    *marker.Store
	Interval   time.Duration
	Logger     *slog.Logger
}

// reporter broadcasts this node's own position marker on a fixed cadence.
// Identity is re-read from the config manager every tick, so a KV edit to
// callsign or position takes effect on the next report without a restart.
type reporter struct {
	config   *config.Manager
	fed      *federation.Manager
	markers  *marker.Store
	interval time.Duration
	logger   *slog.Logger

	mu       sync.Mutex
	shutdown chan struct{}
	done     chan struct{}
	running  atomic.Bool
}

func newReporter(deps reporterDeps) *reporter {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default().With("component", "reporter")
	}
	return &reporter{
		config:   deps.Config,
		fed:      deps.Federation,
		markers:  deps.Markers,
		interval: deps.Interval,
		logger:   logger,
	}
}

func (r *reporter) Initialize() error {
	if r.config == nil || r.fed == nil || r.markers == nil {
		return errors.WrapInvalid(fmt.Errorf("config, federation and markers are required"),
			"reporter", "Initialize", "dependency check")
	}
	if r.interval <= 0 {
		return errors.WrapInvalid(fmt.Errorf("interval %v must be positive", r.interval),
			"reporter", "Initialize", "interval validation")
	}
	return nil
}

func (r *reporter) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running.Load() {
		return nil
	}

	shutdown := make(chan struct{})
	done := make(chan struct{})
	r.shutdown = shutdown
	r.done = done
	r.running.Store(true)

	go func() {
		defer close(done)

		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()

		r.logger.Info("self reporting started", "interval", r.interval)
		r.report()
		for {
			select {
			case <-ctx.Done():
				return
			case <-shutdown:
				return
			case <-ticker.C:
				r.report()
			}
		}
	}()
	return nil
}

func (r *reporter) Stop(timeout time.Duration) error {
	if !r.running.Load() {
		return nil
	}
	r.running.Store(false)

	r.mu.Lock()
	shutdown := r.shutdown
	done := r.done
	r.mu.Unlock()

	select {
	case <-shutdown:
	default:
		close(shutdown)
	}

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return errors.WrapTransient(fmt.Errorf("stop timeout after %v", timeout),
			"reporter", "Stop", "graceful shutdown")
	}
}

func (r *reporter) report() {
	id := r.config.GetConfig().Get().Identity
	if id.UID == "" || id.Callsign == "" {
		return
	}

	ev := cot.NewSelfReport(id.UID, id.Callsign, id.Team, id.Role, id.Lat, id.Lon, 0)
	if _, err := r.markers.Ingest(ev); err != nil {
		r.logger.Warn("Self marker ingest failed", "uid", id.UID, "error", err)
	}

	sent, err := r.fed.Broadcast(ev)
	if err != nil {
		r.logger.Warn("Self report broadcast failed", "uid", id.UID, "error", err)
		return
	}
	r.logger.Debug("Self report sent", "uid", id.UID, "callsign", id.Callsign, "servers", sent)
}
