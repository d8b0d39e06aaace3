// Package main implements the takfed daemon, a TAK federation node.
// It maintains persistent links to multiple TAK servers, keeps local
// marker, chat, and alert state from the accepted traffic, and bridges
// that traffic onto NATS for downstream consumers.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/omnitak/takcore/config"
)

// Build identity. Release builds override these with
// -ldflags "-X main.Version=... -X main.BuildTime=...".
var (
	Version   = "0.1.0"
	BuildTime = "dev"
)

const appName = "takfed"

func main() {
	defer logPanic()

	if err := run(); err != nil {
		slog.Error("takfed failed", "error", err)
		os.Exit(1)
	}
}

// logPanic prints the panic value and a stack trace to stderr, then
// exits. Deferred first in main so it fires after every other defer.
func logPanic() {
	r := recover()
	if r == nil {
		return
	}
	buf := make([]byte, 8192)
	buf = buf[:runtime.Stack(buf, false)]
	_, _ = fmt.Fprintf(os.Stderr, "panic: %v\n%s\n", r, buf)
	os.Exit(2)
}

func run() error {
	cli := parseFlags()
	if err := cli.validate(); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}

	// Version and help requests exit before anything is wired.
	if cli.ShowVersion {
		fmt.Printf("%s %s (built %s)\n", appName, Version, BuildTime)
		return nil
	}
	if cli.ShowHelp {
		printUsage()
		return nil
	}

	logger := newLogger(cli.LogLevel, cli.LogFormat)
	slog.SetDefault(logger)
	slog.Info("Starting takfed",
		"version", Version,
		"build_time", BuildTime,
		"config_path", cli.ConfigPath)

	cfg, err := loadConfig(cli.ConfigPath)
	if err != nil {
		return err
	}
	if cli.Validate {
		slog.Info("Configuration is valid", "path", cli.ConfigPath)
		return nil
	}

	ctx := context.Background()
	a, err := buildApp(ctx, cfg, cli, logger)
	if err != nil {
		return err
	}
	defer a.nats.Close(ctx)
	defer a.configMgr.Stop(5 * time.Second)

	return serve(ctx, a, cli.ShutdownTimeout)
}

// loadConfig reads the layered config file and validates the merged
// result.
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.NewLoader().LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// serve starts the runner and blocks until SIGINT or SIGTERM, then
// shuts everything down within the configured timeout.
func serve(ctx context.Context, a *app, shutdownTimeout time.Duration) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := a.runner.Initialize(); err != nil {
		return fmt.Errorf("initialize components: %w", err)
	}
	if err := a.runner.Start(ctx); err != nil {
		return fmt.Errorf("start components: %w", err)
	}
	go a.watchHealth(ctx, 10*time.Second)

	slog.Info("takfed started", "components", a.runner.Names())

	<-ctx.Done()
	slog.Info("Received shutdown signal")

	if err := a.shutdown(shutdownTimeout); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	slog.Info("takfed shutdown complete")
	return nil
}
