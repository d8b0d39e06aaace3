package transport

import (
	"context"
	"log/slog"
	"sync"

	"github.com/omnitak/takcore/errors"
	"github.com/omnitak/takcore/metric"
)

// NetDialer is the production Dialer covering all four protocols. The
// zero value is ready to use.
type NetDialer struct {
	// Logger receives connection lifecycle events. Defaults to
	// slog.Default.
	Logger *slog.Logger

	// MetricsRegistry enables per-connection counters. Nil disables
	// them.
	MetricsRegistry *metric.MetricsRegistry

	metricsOnce sync.Once
	metrics     *Metrics
}

// Dial validates cfg and opens the endpoint. The returned Conn already
// runs its dispatch goroutine; register a callback with OnMessage to
// start consuming frames.
func (d *NetDialer) Dial(ctx context.Context, cfg Config) (Conn, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "transport", "Dial", "config validation")
	}

	logger := d.Logger
	if logger == nil {
		logger = slog.Default().With("component", "transport")
	}
	d.metricsOnce.Do(func() {
		d.metrics = newMetrics(d.MetricsRegistry)
	})

	if cfg.Protocol == ProtocolWebSocket {
		return dialWebSocket(ctx, cfg, logger, d.metrics)
	}
	return dialStream(ctx, cfg, logger, d.metrics)
}
