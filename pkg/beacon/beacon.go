// Package beacon provides the StatBeacon sampling and alerting loop.
package beacon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gravito-framework/statbeacon-go/internal/httpclient"
	"github.com/gravito-framework/statbeacon-go/pkg/config"
	"github.com/gravito-framework/statbeacon-go/pkg/metrics"
	"github.com/gravito-framework/statbeacon-go/pkg/probes"
	"github.com/gravito-framework/statbeacon-go/pkg/types"
)

// Poster delivers a JSON body to a URL
type Poster interface {
	Post(ctx context.Context, url string, body interface{}) error
}

// Publisher receives every info Report as a heartbeat
type Publisher interface {
	Publish(ctx context.Context, report types.Report) error
}

// Sleeper blocks for d or until ctx is done
type Sleeper func(ctx context.Context, d time.Duration) error

// Thresholds are the alert limits; a breach of any one triggers an alert
type Thresholds struct {
	CPU         float64
	Memory      float64
	Temperature float64
}

// ShouldAlert reports whether any metric exceeds its threshold. The
// temperature term is skipped when the sample carries no sensor data.
func ShouldAlert(s types.Sample, t Thresholds) bool {
	if s.CPUPercent > t.CPU {
		return true
	}
	if s.MemoryPercent > t.Memory {
		return true
	}
	return s.HasTemperature && s.Temperature > t.Temperature
}

// Beacon samples the host and posts stats and alerts at a fixed cadence
type Beacon struct {
	config *config.Config
	logger *slog.Logger

	probe     probes.SystemProbe
	poster    Poster
	publisher Publisher
	metrics   *metrics.Metrics
	sleep     Sleeper

	publishTimeout time.Duration
}

// defaultPublishTimeout bounds a single heartbeat write
const defaultPublishTimeout = 2 * time.Second

// Option is a functional option for configuring the Beacon
type Option func(*Beacon)

// WithLogger sets a custom logger
func WithLogger(logger *slog.Logger) Option {
	return func(b *Beacon) {
		b.logger = logger
	}
}

// WithSystemProbe sets a custom metrics provider
func WithSystemProbe(probe probes.SystemProbe) Option {
	return func(b *Beacon) {
		b.probe = probe
	}
}

// WithPoster replaces the HTTP poster
func WithPoster(poster Poster) Option {
	return func(b *Beacon) {
		b.poster = poster
	}
}

// WithPublisher enables heartbeat publishing
func WithPublisher(publisher Publisher) Option {
	return func(b *Beacon) {
		b.publisher = publisher
	}
}

// WithPublishTimeout bounds each heartbeat write
func WithPublishTimeout(d time.Duration) Option {
	return func(b *Beacon) {
		if d > 0 {
			b.publishTimeout = d
		}
	}
}

// WithMetrics enables self-metrics
func WithMetrics(m *metrics.Metrics) Option {
	return func(b *Beacon) {
		b.metrics = m
	}
}

// WithSleeper replaces the interruptible sleep between iterations
func WithSleeper(sleep Sleeper) Option {
	return func(b *Beacon) {
		b.sleep = sleep
	}
}

// New creates a Beacon. Unless overridden by options it builds the HTTP
// client from the config and a gopsutil probe; either failing is fatal.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Beacon, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	b := &Beacon{
		config: cfg,
		logger: slog.Default(),
		sleep:  sleepContext,

		publishTimeout: defaultPublishTimeout,
	}

	for _, opt := range opts {
		opt(b)
	}

	if b.poster == nil {
		client, err := httpclient.New(cfg.Proxy, cfg.RequestTimeout())
		if err != nil {
			return nil, fmt.Errorf("failed to build http client: %w", err)
		}
		if cfg.Proxy != "" {
			b.logger.Info("Using proxy", "proxy", cfg.Proxy)
		}
		b.poster = newHTTPPoster(client, cfg)
	}

	if b.probe == nil {
		probe, err := probes.NewGoSystemProbe(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to create system probe: %w", err)
		}
		b.probe = probe
	}

	return b, nil
}

func newHTTPPoster(client *http.Client, cfg *config.Config) *httpclient.Poster {
	return httpclient.NewPoster(client, httpclient.WithRetry(cfg.RetryAttempts, cfg.RetryInitialInterval()))
}

// Thresholds returns the configured alert limits
func (b *Beacon) Thresholds() Thresholds {
	return Thresholds{
		CPU:         b.config.CPUAlertThreshold,
		Memory:      b.config.MemoryAlertThreshold,
		Temperature: b.config.TemperatureAlertThreshold,
	}
}

// Run loops until ctx is cancelled: tick, then sleep for the configured
// interval. The period is the sleep plus whatever the tick took.
func (b *Beacon) Run(ctx context.Context) error {
	b.logger.Info("StatBeacon started",
		"name", b.config.Name,
		"interval", b.config.Interval(),
		"stat_url", b.config.TargetStatURL,
		"alert_url", b.config.TargetAlertURL,
	)

	for {
		if err := b.Tick(ctx); err != nil {
			b.logger.Error("Sampling failed", "error", err)
		}

		if err := b.sleep(ctx, b.config.Interval()); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				b.logger.Info("StatBeacon stopped")
				return nil
			}
			return err
		}
	}
}

// Tick runs one iteration. Only a sampling failure is returned; post
// failures are logged and never stop the alert evaluation.
func (b *Beacon) Tick(ctx context.Context) error {
	if b.metrics != nil {
		b.metrics.ObserveIteration()
	}

	sample, err := b.probe.Refresh(ctx)
	if err != nil {
		return fmt.Errorf("failed to collect metrics: %w", err)
	}

	if b.metrics != nil {
		b.metrics.ObserveSample(*sample)
	}

	stat := types.NewReport(b.config.Name, types.LevelInfo, *sample)
	b.post(ctx, metrics.TargetStat, b.config.TargetStatURL, b.config.StatPayload, stat)

	if ShouldAlert(*sample, b.Thresholds()) {
		b.logger.Warn("Alerting",
			"cpu", stat.CPU,
			"memory", stat.Mem,
			"temperature", stat.Temp,
		)
		if b.metrics != nil {
			b.metrics.ObserveAlert()
		}

		alert := types.NewReport(b.config.Name, types.LevelWarn, *sample)
		b.post(ctx, metrics.TargetAlert, b.config.TargetAlertURL, b.config.AlertPayload, alert)
	} else {
		b.logger.Debug("Stats sent", "cpu", stat.CPU, "memory", stat.Mem, "temperature", stat.Temp)
	}

	b.publish(ctx, stat)
	return nil
}

// publish runs after both posts, bounded by publishTimeout.
func (b *Beacon) publish(ctx context.Context, stat types.Report) {
	if b.publisher == nil {
		return
	}
	pctx, cancel := context.WithTimeout(ctx, b.publishTimeout)
	defer cancel()

	if err := b.publisher.Publish(pctx, stat); err != nil {
		b.logger.Error("Error publishing heartbeat", "error", err)
	}
}

func (b *Beacon) post(ctx context.Context, target, url, mode string, report types.Report) {
	err := b.poster.Post(ctx, url, Payload(mode, report))
	if b.metrics != nil {
		b.metrics.ObservePost(target, err)
	}
	if err != nil {
		b.logger.Error("Error posting data", "target", target, "error", err)
	}
}

// Payload returns the body sent for report: the flat Report in "report"
// mode, the Notification otherwise.
func Payload(mode string, report types.Report) interface{} {
	if mode == config.PayloadReport {
		return report
	}
	return types.NewNotification(report)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
