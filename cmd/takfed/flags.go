package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"
)

// CLIConfig carries the settings decided on the command line, before
// the config file is read. Every value has a TAKFED_* environment twin
// that supplies the default, so containers can run flagless.
type CLIConfig struct {
	ConfigPath      string
	LogLevel        string
	LogFormat       string
	Debug           bool
	SelfReport      time.Duration
	ShutdownTimeout time.Duration
	ShowVersion     bool
	ShowHelp        bool
	Validate        bool
}

// defaultCLIConfig resolves the environment-backed defaults once, so
// the long and short forms of a flag share one value.
func defaultCLIConfig() CLIConfig {
	return CLIConfig{
		ConfigPath:      envString("TAKFED_CONFIG", "configs/takfed.json"),
		LogLevel:        envString("TAKFED_LOG_LEVEL", "info"),
		LogFormat:       envString("TAKFED_LOG_FORMAT", "json"),
		Debug:           envBool("TAKFED_DEBUG"),
		SelfReport:      envDuration("TAKFED_SELF_REPORT", time.Minute),
		ShutdownTimeout: envDuration("TAKFED_SHUTDOWN_TIMEOUT", 30*time.Second),
	}
}

func parseFlags() *CLIConfig {
	cfg := defaultCLIConfig()

	flag.StringVar(&cfg.ConfigPath, "config", cfg.ConfigPath,
		"Path to the configuration file (env: TAKFED_CONFIG)")
	flag.StringVar(&cfg.ConfigPath, "c", cfg.ConfigPath,
		"Shorthand for -config")
	flag.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel,
		"Log level: debug, info, warn, error (env: TAKFED_LOG_LEVEL)")
	flag.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat,
		"Log format: json, text (env: TAKFED_LOG_FORMAT)")
	flag.BoolVar(&cfg.Debug, "debug", cfg.Debug,
		"Force debug logging (env: TAKFED_DEBUG)")
	flag.DurationVar(&cfg.SelfReport, "self-report", cfg.SelfReport,
		"Own position report interval, 0 disables (env: TAKFED_SELF_REPORT)")
	flag.DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout", cfg.ShutdownTimeout,
		"Graceful shutdown budget (env: TAKFED_SHUTDOWN_TIMEOUT)")
	flag.BoolVar(&cfg.ShowVersion, "version", false, "Print version and exit")
	flag.BoolVar(&cfg.ShowVersion, "v", false, "Shorthand for -version")
	flag.BoolVar(&cfg.ShowHelp, "help", false, "Print usage and exit")
	flag.BoolVar(&cfg.ShowHelp, "h", false, "Shorthand for -help")
	flag.BoolVar(&cfg.Validate, "validate", false, "Check the configuration file and exit")

	flag.Usage = printUsage
	flag.Parse()

	if cfg.Debug {
		cfg.LogLevel = "debug"
	}
	return &cfg
}

// validate rejects flag values the daemon cannot start with. Version
// and help requests skip the checks; they exit before anything runs.
func (c *CLIConfig) validate() error {
	if c.ShowVersion || c.ShowHelp {
		return nil
	}

	if _, err := os.Stat(c.ConfigPath); err != nil {
		return fmt.Errorf("config file not found: %s", c.ConfigPath)
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s", c.LogLevel)
	}

	switch c.LogFormat {
	case "json", "text":
	default:
		return fmt.Errorf("invalid log format: %s", c.LogFormat)
	}

	if c.SelfReport < 0 {
		return fmt.Errorf("self-report interval cannot be negative: %v", c.SelfReport)
	}
	return nil
}

func printUsage() {
	_, _ = fmt.Fprintf(os.Stderr, `%s - TAK federation node

Usage: %s [options]

Options:
`, appName, os.Args[0])
	flag.PrintDefaults()
	_, _ = fmt.Fprintf(os.Stderr, `
Examples:
  %[1]s --config /etc/takfed/takfed.json
  %[1]s --log-level debug --log-format text
  %[1]s --validate

Flags fall back to their TAKFED_* environment variables when unset.

Version: %s (built %s)
`, os.Args[0], Version, BuildTime)
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	return err == nil && v
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
