package main

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/omnitak/takcore/alert"
	"github.com/omnitak/takcore/chat"
	"github.com/omnitak/takcore/cot"
	"github.com/omnitak/takcore/errors"
	"github.com/omnitak/takcore/federation"
	"github.com/omnitak/takcore/marker"
	"github.com/omnitak/takcore/router"
)

// pipelineDeps holds what the dispatch loop feeds.
type pipelineDeps struct {
	Federation *federation.Manager
	Markers    *marker.Store
	Chat       *chat.Manager
	Alerts     *alert.Manager
	Logger     *slog.Logger
}

// pipeline routes accepted federation traffic into the local managers:
// position updates into the marker store, GeoChat into the chat manager,
// emergency beacons into the alert manager, and t-x-d-d deletion tasking
// into explicit marker removal. Waypoints and unknown types have no
// local consumer; they already flowed through fan-out and the bridge.
type pipeline struct {
	fed     *federation.Manager
	markers *marker.Store
	chat    *chat.Manager
	alerts  *alert.Manager
	logger  *slog.Logger

	mu       sync.Mutex
	shutdown chan struct{}
	done     chan struct{}
	running  atomic.Bool
}

func newPipeline(deps pipelineDeps) *pipeline {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default().With("component", "pipeline")
	}
	return &pipeline{
		fed:     deps.Federation,
		markers: deps.Markers,
		chat:    deps.Chat,
		alerts:  deps.Alerts,
		logger:  logger,
	}
}

func (p *pipeline) Initialize() error {
	if p.fed == nil || p.markers == nil || p.chat == nil || p.alerts == nil {
		return errors.WrapInvalid(fmt.Errorf("federation, markers, chat and alerts are required"),
			"pipeline", "Initialize", "dependency check")
	}
	return nil
}

func (p *pipeline) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running.Load() {
		return nil
	}

	sub := p.fed.Subscribe()
	shutdown := make(chan struct{})
	done := make(chan struct{})
	p.shutdown = shutdown
	p.done = done
	p.running.Store(true)

	go func() {
		defer close(done)
		defer sub.Unsubscribe()

		p.logger.Info("pipeline started")
		for {
			select {
			case <-ctx.Done():
				return
			case <-shutdown:
				return
			case in, ok := <-sub.C():
				if !ok {
					return
				}
				p.dispatch(in)
			}
		}
	}()
	return nil
}

func (p *pipeline) Stop(timeout time.Duration) error {
	if !p.running.Load() {
		return nil
	}
	p.running.Store(false)

	p.mu.Lock()
	shutdown := p.shutdown
	done := p.done
	p.mu.Unlock()

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
			"pipeline", "Stop", "graceful shutdown")
	}
}

func (p *pipeline) dispatch(in federation.Inbound) {
	cls := in.Classified
	switch cls.Kind {
	case router.KindPositionUpdate:
		if _, err := p.markers.Ingest(in.Event); err != nil {
			p.logger.Warn("Marker ingest failed",
				"server", in.ServerID, "uid", in.Event.UID, "error", err)
		}
	case router.KindChatMessage:
		if cls.Chat == nil {
			return
		}
		if _, err := p.chat.Handle(cls.Chat); err != nil {
			p.logger.Warn("Chat handling failed",
				"server", in.ServerID, "sender", cls.Chat.Sender, "error", err)
		}
	case router.KindEmergencyAlert:
		if cls.Alert == nil {
			return
		}
		if err := p.alerts.Handle(cls.Alert); err != nil {
			p.logger.Warn("Alert handling failed",
				"server", in.ServerID, "sender", cls.Alert.SenderUID, "error", err)
		}
	case router.KindWaypoint:
		// No local waypoint state; fan-out and the bridge already saw it.
	default:
		if in.Event != nil && in.Event.Type == cot.TypeRemove {
			p.removeTargets(in)
		}
	}
}

// removeTargets applies a t-x-d-d deletion: every linked UID is dropped
// from the marker store.
func (p *pipeline) removeTargets(in federation.Inbound) {
	if in.Event.Detail == nil {
		return
	}
	for _, link := range in.Event.Detail.Links {
		if link == nil || link.UID == "" {
			continue
		}
		if p.markers.Remove(link.UID) {
			p.logger.Info("Marker removed by deletion tasking",
				"server", in.ServerID, "uid", link.UID)
		}
	}
}
