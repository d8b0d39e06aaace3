package main

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/omnitak/takcore/config"
	"github.com/omnitak/takcore/errors"
	"github.com/omnitak/takcore/federation"
)

// rosterDeps holds what the roster watcher needs.
type rosterDeps struct {
	Config     *config.Manager
	Federation *federation.Manager
	Logger     *slog.Logger
}

// roster keeps the federation manager's server registry in sync with the
// servers section of the configuration. The config manager delivers the
// full roster on subscribe and again after every KV edit, so adding a
// federated server is a KV write, not a restart.
type roster struct {
	config *config.Manager
	fed    *federation.Manager
	logger *slog.Logger

	mu       sync.Mutex
	shutdown chan struct{}
	done     chan struct{}
	running  atomic.Bool
}

func newRoster(deps rosterDeps) *roster {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default().With("component", "roster")
	}
	return &roster{
		config: deps.Config,
		fed:    deps.Federation,
		logger: logger,
	}
}

func (r *roster) Initialize() error {
	if r.config == nil || r.fed == nil {
		return errors.WrapInvalid(fmt.Errorf("config and federation are required"),
			"roster", "Initialize", "dependency check")
	}
	return nil
}

func (r *roster) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running.Load() {
		return nil
	}

	updates := r.config.OnChange("servers.*")
	shutdown := make(chan struct{})
	done := make(chan struct{})
	r.shutdown = shutdown
	r.done = done
	r.running.Store(true)

	go func() {
		defer close(done)

		r.logger.Info("roster watch started")
		applied := make(map[string]config.ServerDefinition)
		for {
			select {
			case <-ctx.Done():
				return
			case <-shutdown:
				return
			case update, ok := <-updates:
				if !ok {
					return
				}
				r.apply(ctx, update.Config.Get(), applied)
			}
		}
	}()
	return nil
}

func (r *roster) Stop(timeout time.Duration) error {
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
			"roster", "Stop", "graceful shutdown")
	}
}

// apply reconciles the federation registry against the configured server
// list. applied tracks the definitions currently registered so unchanged
// servers keep their live connections across unrelated roster edits.
func (r *roster) apply(ctx context.Context, cfg *config.Config, applied map[string]config.ServerDefinition) {
	desired := make(map[string]config.ServerDefinition, len(cfg.Servers))
	for _, def := range cfg.Servers {
		desired[def.ID] = def
	}

	for id := range applied {
		if _, ok := desired[id]; ok {
			continue
		}
		if err := r.fed.RemoveServer(id); err != nil {
			r.logger.Warn("Remove federated server failed", "server", id, "error", err)
		}
		delete(applied, id)
	}

	var connect []string
	for id, def := range desired {
		prev, seen := applied[id]
		if seen && reflect.DeepEqual(prev, def) {
			continue
		}
		if seen {
			// Changed definition: tear down the old registration first.
			if err := r.fed.RemoveServer(id); err != nil {
				r.logger.Warn("Remove federated server failed", "server", id, "error", err)
			}
			delete(applied, id)
		}

		tc, err := def.Connection.TransportConfig(cfg.Security)
		if err != nil {
			r.logger.Error("Resolve server connection failed", "server", id, "error", err)
			continue
		}
		if err := r.fed.AddServer(id, def.Name, tc, def.EffectivePolicy()); err != nil {
			r.logger.Error("Add federated server failed", "server", id, "error", err)
			continue
		}
		applied[id] = def
		connect = append(connect, id)
	}

	if len(connect) == 0 {
		return
	}

	// Dials are independent; one unreachable server must not hold up or
	// cancel the rest.
	var g errgroup.Group
	for _, id := range connect {
		g.Go(func() error {
			return r.fed.ConnectServer(ctx, id)
		})
	}
	if err := g.Wait(); err != nil {
		r.logger.Warn("Roster connect incomplete", "error", err)
	}
}
