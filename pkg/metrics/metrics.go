// Package metrics exposes Prometheus self-metrics for the beacon.
//
// Metric naming follows Prometheus conventions:
//   - statbeacon_ prefix for all metrics
//   - _total suffix for counters
package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gravito-framework/statbeacon-go/pkg/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Post targets
const (
	TargetStat  = "stat"
	TargetAlert = "alert"
)

// Metrics holds the beacon's collectors on a private registry
type Metrics struct {
	registry *prometheus.Registry

	CPUPercent         prometheus.Gauge
	MemoryPercent      prometheus.Gauge
	TemperatureCelsius prometheus.Gauge
	PostsTotal         *prometheus.CounterVec
	AlertsTotal        prometheus.Counter
	IterationsTotal    prometheus.Counter
}

// New creates and registers all collectors
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		CPUPercent: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "statbeacon_cpu_percent",
			Help: "Last sampled aggregate CPU utilization (0-100).",
		}),
		MemoryPercent: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "statbeacon_memory_percent",
			Help: "Last sampled memory utilization (0-100).",
		}),
		TemperatureCelsius: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "statbeacon_temperature_celsius",
			Help: "Last sampled average sensor temperature. Unchanged when no sensors report.",
		}),
		PostsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "statbeacon_posts_total",
				Help: "Total outbound posts by target and result.",
			},
			[]string{"target", "result"},
		),
		AlertsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "statbeacon_alerts_total",
			Help: "Total iterations in which a threshold was breached.",
		}),
		IterationsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "statbeacon_iterations_total",
			Help: "Total loop iterations, including those whose sampling failed.",
		}),
	}

	m.registry.MustRegister(
		m.CPUPercent,
		m.MemoryPercent,
		m.TemperatureCelsius,
		m.PostsTotal,
		m.AlertsTotal,
		m.IterationsTotal,
	)
	return m
}

// ObserveIteration counts a loop iteration, whether or not sampling succeeds
func (m *Metrics) ObserveIteration() {
	m.IterationsTotal.Inc()
}

// ObserveSample records the sampled values
func (m *Metrics) ObserveSample(s types.Sample) {
	m.CPUPercent.Set(s.CPUPercent)
	m.MemoryPercent.Set(s.MemoryPercent)
	if s.HasTemperature {
		m.TemperatureCelsius.Set(s.Temperature)
	}
}

// ObservePost records the outcome of a post to target
func (m *Metrics) ObservePost(target string, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	m.PostsTotal.WithLabelValues(target, result).Inc()
}

// ObserveAlert records a threshold breach
func (m *Metrics) ObserveAlert() {
	m.AlertsTotal.Inc()
}

// Handler serves /metrics and /healthz
func (m *Metrics) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})
	return mux
}

// Serve listens on addr until ctx is cancelled
func Serve(ctx context.Context, addr string, m *Metrics, logger *slog.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           m.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Metrics listener started", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("metrics listener: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("metrics shutdown: %w", err)
		}
		return nil
	}
}
