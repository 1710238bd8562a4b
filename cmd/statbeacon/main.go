// StatBeacon - a lightweight host monitoring beacon
//
// Samples CPU, memory and temperature at a fixed interval, posts the stats
// to a remote endpoint and sends an alert when a threshold is exceeded.
//
// Usage:
//
//	statbeacon                       # reads ./StatBeacon.toml
//	statbeacon --config /etc/statbeacon/beacon.toml
//	statbeacon -c beacon.yaml
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/gravito-framework/statbeacon-go/internal/redis"
	"github.com/gravito-framework/statbeacon-go/pkg/beacon"
	"github.com/gravito-framework/statbeacon-go/pkg/config"
	"github.com/gravito-framework/statbeacon-go/pkg/metrics"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

type cliArgs struct {
	Config  string
	Version bool
	Help    bool
}

// parseArgs reads --config/-c. Unknown flags and malformed invocations
// fall back to the default path instead of failing.
func parseArgs(args []string) cliArgs {
	defaults := cliArgs{Config: config.DefaultPath}

	fs := pflag.NewFlagSet("statbeacon", pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.ParseErrorsWhitelist.UnknownFlags = true

	var parsed cliArgs
	fs.StringVarP(&parsed.Config, "config", "c", config.DefaultPath, "path to the configuration file")
	fs.BoolVarP(&parsed.Version, "version", "v", false, "show version information")
	fs.BoolVarP(&parsed.Help, "help", "h", false, "show this help message")

	if err := fs.Parse(args); err != nil {
		return defaults
	}
	if strings.TrimSpace(parsed.Config) == "" {
		parsed.Config = config.DefaultPath
	}
	return parsed
}

func main() {
	args := parseArgs(os.Args[1:])

	if args.Help {
		printHelp()
		os.Exit(0)
	}
	if args.Version {
		fmt.Printf("statbeacon %s (commit: %s, built: %s)\n", version, commit, date)
		os.Exit(0)
	}

	if err := run(args); err != nil {
		slog.Error("StatBeacon failed", "error", err)
		os.Exit(1)
	}
}

func run(args cliArgs) error {
	cfg, err := config.Load(args.Config)
	if err != nil {
		return err
	}

	logger := buildLogger(cfg)
	slog.SetDefault(logger)
	logger.Info("Configuration loaded",
		"path", args.Config,
		"name", cfg.Name,
		"interval_seconds", cfg.IntervalSeconds,
		"stat_payload", cfg.StatPayload,
		"alert_payload", cfg.AlertPayload,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts := []beacon.Option{beacon.WithLogger(logger)}

	var m *metrics.Metrics
	if cfg.MetricsAddr != "" {
		m = metrics.New()
		opts = append(opts, beacon.WithMetrics(m))
	}

	if cfg.RedisURL != "" {
		pub, err := redis.NewPublisher(cfg.RedisURL, 3*cfg.Interval())
		if err != nil {
			return err
		}
		defer pub.Close()
		if err := pub.Ping(ctx); err != nil {
			logger.Warn("Failed to connect to Redis, heartbeats will be retried every iteration", "error", err)
		}
		opts = append(opts, beacon.WithPublisher(pub))
	}

	b, err := beacon.New(ctx, cfg, opts...)
	if err != nil {
		return startupError(err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return b.Run(gctx)
	})
	if m != nil {
		g.Go(func() error {
			return serveMetrics(gctx, cfg.MetricsAddr, m, logger)
		})
	}

	return g.Wait()
}

// startupError treats a shutdown signal received while the beacon is
// still starting as a clean exit.
func startupError(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// serveMetrics runs the metrics listener. A listener failure is logged and
// leaves the beacon running.
func serveMetrics(ctx context.Context, addr string, m *metrics.Metrics, logger *slog.Logger) error {
	if err := metrics.Serve(ctx, addr, m, logger); err != nil {
		logger.Error("Metrics listener failed, continuing without metrics", "addr", addr, "error", err)
	}
	return nil
}

func buildLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

func printHelp() {
	fmt.Println(`Usage: statbeacon [options]

StatBeacon samples CPU, memory and temperature, posts the readings to a
stat endpoint and sends an alert when a configured threshold is exceeded.

Options:
  -c, --config <path>   Configuration file (default: StatBeacon.toml)
                        Files ending in .yaml or .yml are read as YAML.
  -h, --help            Show this help message
  -v, --version         Show version information

Example StatBeacon.toml:

  name = "web-1"
  interval_seconds = 60
  target_stat_url = "https://hooks.example.com/stat"
  target_alert_url = "https://hooks.example.com/alert"
  cpu_alert_threshold = 80.0
  memory_alert_threshold = 90.0
  temperature_alert_threshold = 70.0
  # proxy = "http://proxy.local:3128"
  # metrics_addr = ":9102"
  # redis_url = "redis://localhost:6379/0"`)
}
