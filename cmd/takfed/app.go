package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/omnitak/takcore/alert"
	"github.com/omnitak/takcore/bridge"
	"github.com/omnitak/takcore/chat"
	"github.com/omnitak/takcore/component"
	"github.com/omnitak/takcore/config"
	"github.com/omnitak/takcore/federation"
	gatewayhttp "github.com/omnitak/takcore/gateway/http"
	"github.com/omnitak/takcore/health"
	"github.com/omnitak/takcore/marker"
	"github.com/omnitak/takcore/metric"
	"github.com/omnitak/takcore/natsclient"
	"github.com/omnitak/takcore/transport"
)

// app holds the wired process: the infrastructure handles that outlive
// the runner plus the runner itself. The chat manager sits outside the
// runner because it has no background loop; it is initialized here and
// closed during shutdown.
type app struct {
	logger    *slog.Logger
	metrics   *metric.MetricsRegistry
	nats      *natsclient.Client
	configMgr *config.Manager
	monitor   *health.Monitor
	runner    *component.Runner
	chat      *chat.Manager
}

// buildApp wires every component from the loaded configuration and
// registers them with the runner. Registration order is start order:
// state stores before the federation manager, consumers of the
// federation feed before the roster. The roster goes last so server
// connections only dial once every subscriber is attached.
func buildApp(ctx context.Context, cfg *config.Config, cliCfg *CLIConfig, logger *slog.Logger) (*app, error) {
	metrics := metric.NewMetricsRegistry()

	natsClient, err := createNATSClient(cfg, metrics, logger)
	if err != nil {
		return nil, fmt.Errorf("create NATS client: %w", err)
	}

	slog.Info("Connecting to NATS")
	if err := natsClient.Connect(ctx); err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	waitCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	err = natsClient.WaitForConnection(waitCtx)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("NATS connection timeout: %w", err)
	}

	configMgr, err := config.NewConfigManager(cfg, natsClient, logger)
	if err != nil {
		return nil, fmt.Errorf("create config manager: %w", err)
	}
	if err := configMgr.Start(ctx); err != nil {
		return nil, fmt.Errorf("start config manager: %w", err)
	}

	monitor := health.NewMonitor()

	markers := marker.NewStore(marker.StoreDeps{
		Config:          cfg.Markers,
		MetricsRegistry: metrics,
		Logger:          logger.With("component", "marker"),
	})

	chatCfg := cfg.Chat
	if chatCfg.SelfUID == "" {
		chatCfg.SelfUID = cfg.Identity.UID
	}
	if chatCfg.SelfCallsign == "" {
		chatCfg.SelfCallsign = cfg.Identity.Callsign
	}
	chatMgr := chat.NewManager(chat.ManagerDeps{
		Config:          chatCfg,
		MetricsRegistry: metrics,
		Logger:          logger.With("component", "chat"),
	})
	if err := chatMgr.Initialize(); err != nil {
		return nil, fmt.Errorf("initialize chat manager: %w", err)
	}

	alerts := alert.NewManager(alert.ManagerDeps{
		Config:          cfg.Alert,
		MetricsRegistry: metrics,
		Logger:          logger.With("component", "alert"),
	})

	dialer := &transport.NetDialer{
		Logger:          logger.With("component", "transport"),
		MetricsRegistry: metrics,
	}
	fed := federation.NewManager(federation.ManagerDeps{
		Config:          cfg.Federation,
		Dialer:          dialer,
		MetricsRegistry: metrics,
		Logger:          logger.With("component", "federation"),
	})

	type registration struct {
		name string
		comp component.Component
	}
	regs := []registration{
		{"markers", markers},
		{"alerts", alerts},
		{"federation", fed},
		{"pipeline", newPipeline(pipelineDeps{
			Federation: fed,
			Markers:    markers,
			Chat:       chatMgr,
			Alerts:     alerts,
			Logger:     logger.With("component", "pipeline"),
		})},
	}

	if cliCfg.SelfReport > 0 {
		regs = append(regs, registration{"reporter", newReporter(reporterDeps{
			Config:     configMgr,
			Federation: fed,
			Markers:    markers,
			Interval:   cliCfg.SelfReport,
			Logger:     logger.With("component", "reporter"),
		})})
	}

	var br *bridge.Bridge
	if cfg.Bridge.Enabled {
		br = bridge.New(bridge.Deps{
			Config:          bridge.Config{SubjectPrefix: cfg.Bridge.SubjectPrefix},
			Publisher:       natsClient,
			Events:          fed,
			Markers:         markers,
			Alerts:          alerts,
			MetricsRegistry: metrics,
			Logger:          logger.With("component", "bridge"),
		})
		regs = append(regs, registration{"bridge", br})
	}

	if cfg.Gateway.Enabled {
		regs = append(regs, registration{"gateway", gatewayhttp.NewGateway(gatewayhttp.Deps{
			Config: gatewayhttp.Config{
				Addr:         cfg.Gateway.Addr,
				ReadTimeout:  cfg.Gateway.ReadTimeout,
				WriteTimeout: cfg.Gateway.WriteTimeout,
			},
			Monitor:         monitor,
			Federation:      fed,
			Markers:         markers,
			Chat:            chatMgr,
			Alerts:          alerts,
			Bridge:          br,
			TLS:             cfg.Security.TLS.Server,
			MetricsRegistry: metrics,
			Logger:          logger.With("component", "gateway"),
		})})
	}

	regs = append(regs, registration{"roster", newRoster(rosterDeps{
		Config:     configMgr,
		Federation: fed,
		Logger:     logger.With("component", "roster"),
	})})

	runner := component.NewRunner(logger, metrics.CoreMetrics())
	for _, reg := range regs {
		if err := runner.Add(reg.name, reg.comp); err != nil {
			return nil, fmt.Errorf("register %s: %w", reg.name, err)
		}
	}

	return &app{
		logger:    logger,
		metrics:   metrics,
		nats:      natsClient,
		configMgr: configMgr,
		monitor:   monitor,
		runner:    runner,
		chat:      chatMgr,
	}, nil
}

// createNATSClient builds the client from the nats config section. The
// loader already applied TAKCORE_NATS_* environment overrides.
func createNATSClient(cfg *config.Config, metrics *metric.MetricsRegistry, logger *slog.Logger) (*natsclient.Client, error) {
	urls := "nats://localhost:4222"
	if len(cfg.NATS.URLs) > 0 {
		urls = strings.Join(cfg.NATS.URLs, ",")
	}

	opts := []natsclient.ClientOption{
		natsclient.WithName(appName),
		natsclient.WithMetrics(metrics),
		natsclient.WithLogger(&natsLogger{logger: logger.With("component", "nats")}),
	}
	if cfg.NATS.MaxReconnects != 0 {
		opts = append(opts, natsclient.WithMaxReconnects(cfg.NATS.MaxReconnects))
	}
	if cfg.NATS.ReconnectWait > 0 {
		opts = append(opts, natsclient.WithReconnectWait(cfg.NATS.ReconnectWait))
	}
	if cfg.NATS.Username != "" {
		opts = append(opts, natsclient.WithCredentials(cfg.NATS.Username, cfg.NATS.Password))
	}
	if cfg.NATS.Token != "" {
		opts = append(opts, natsclient.WithToken(cfg.NATS.Token))
	}
	if cfg.NATS.TLS.Enabled {
		opts = append(opts, natsclient.WithTLS(cfg.NATS.TLS.CertFile, cfg.NATS.TLS.KeyFile, cfg.NATS.TLS.CAFile))
	}

	return natsclient.NewClient(urls, opts...)
}

// watchHealth feeds the monitor behind /healthz from the runner's view
// of each component plus the NATS connection state.
func (a *app) watchHealth(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	a.updateHealth()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.updateHealth()
		}
	}
}

func (a *app) updateHealth() {
	for name, hs := range a.runner.Health() {
		a.monitor.Update(name, health.FromComponentHealth(name, hs))
	}
	if a.nats.IsHealthy() {
		a.monitor.Update("nats", health.NewHealthy("nats", "connected"))
	} else {
		a.monitor.Update("nats", health.NewUnhealthy("nats", "connection down"))
	}
}

// shutdown stops runner components in reverse start order, then closes
// the chat manager's event bus. NATS and the config manager are closed
// by the deferred handles in run.
func (a *app) shutdown(timeout time.Duration) error {
	if err := a.runner.Stop(timeout); err != nil {
		a.logger.Error("Error stopping components", "error", err)
		return err
	}

	if err := a.chat.Close(); err != nil {
		a.logger.Warn("Chat manager close failed", "error", err)
	}

	return nil
}
