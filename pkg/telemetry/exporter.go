// Package telemetry exports guard and scheduler state to Prometheus
// and bridges live assessment progress into structured logs.
//
// The resilience packages stay free of metrics plumbing: telemetry
// pulls breaker, limiter and retry snapshots at scrape time, and
// counts task lifecycle transitions through the orchestrator's event
// callback.
package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wraithscan/wraithscan/pkg/duration"
	"github.com/wraithscan/wraithscan/pkg/guard"
	"github.com/wraithscan/wraithscan/pkg/scan"
	"github.com/wraithscan/wraithscan/pkg/scheduler"
)

// Options configures the metrics endpoint.
type Options struct {
	// Port for the metrics server (default: 9090).
	Port int

	// Path for the metrics endpoint (default: "/metrics").
	Path string
}

// Exporter owns a private Prometheus registry, the collectors over the
// scan stack, and the HTTP server that exposes them.
type Exporter struct {
	opts     Options
	registry *prometheus.Registry
	logger   *slog.Logger

	tasksStarted   *prometheus.CounterVec
	tasksCompleted *prometheus.CounterVec
	tasksFailed    *prometheus.CounterVec
	tasksRetried   *prometheus.CounterVec
	taskSeconds    *prometheus.HistogramVec
	progressPct    *prometheus.GaugeVec
	assessments    *prometheus.CounterVec
	assessSeconds  *prometheus.GaugeVec

	mu     sync.Mutex
	server *http.Server
	closed bool
}

// Option customizes an Exporter.
type Option func(*Exporter)

// WithLogger routes server lifecycle messages to the given logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Exporter) {
		if l != nil {
			e.logger = l
		}
	}
}

// New builds an Exporter with a fresh registry. The server does not
// listen until Start; embedders can mount Handler themselves.
func New(opts Options, optFns ...Option) (*Exporter, error) {
	if opts.Port == 0 {
		opts.Port = 9090
	}
	if opts.Path == "" {
		opts.Path = "/metrics"
	}

	e := &Exporter{
		opts:     opts,
		registry: prometheus.NewRegistry(),
		logger:   slog.Default(),
	}
	for _, fn := range optFns {
		fn(e)
	}
	if err := e.initMetrics(); err != nil {
		return nil, fmt.Errorf("telemetry: register metrics: %w", err)
	}
	return e, nil
}

// initMetrics creates and registers the event-driven metrics.
func (e *Exporter) initMetrics() error {
	e.tasksStarted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wraithscan_tasks_started_total",
			Help: "Task launches, including retry launches",
		},
		[]string{"target", "kind"},
	)
	e.tasksCompleted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wraithscan_tasks_completed_total",
			Help: "Tasks that finished successfully",
		},
		[]string{"target", "kind"},
	)
	e.tasksFailed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wraithscan_tasks_failed_total",
			Help: "Tasks that exhausted their attempt budget or were cancelled",
		},
		[]string{"target", "kind"},
	)
	e.tasksRetried = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wraithscan_tasks_retried_total",
			Help: "Tasks requeued after a failed attempt",
		},
		[]string{"target", "kind"},
	)
	e.taskSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "wraithscan_task_duration_seconds",
			Help:    "Wall-clock duration of successful task attempts",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 5, 15, 60, 300, 900},
		},
		[]string{"target", "kind"},
	)
	e.progressPct = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "wraithscan_assessment_progress_percent",
			Help: "Weighted completion percentage of the running assessment",
		},
		[]string{"target"},
	)
	e.assessments = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wraithscan_assessments_total",
			Help: "Finished assessments by outcome",
		},
		[]string{"target", "outcome"},
	)
	e.assessSeconds = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "wraithscan_assessment_duration_seconds",
			Help: "Wall-clock duration of the last assessment",
		},
		[]string{"target"},
	)

	collectors := []prometheus.Collector{
		e.tasksStarted,
		e.tasksCompleted,
		e.tasksFailed,
		e.tasksRetried,
		e.taskSeconds,
		e.progressPct,
		e.assessments,
		e.assessSeconds,
	}
	for _, c := range collectors {
		if err := e.registry.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// WatchGuard registers scrape-time collection over the guard's
// breaker, limiter and retry snapshots. Register a guard once;
// services show up as label values.
func (e *Exporter) WatchGuard(g *guard.Guard) error {
	return e.registry.Register(newGuardCollector(g))
}

// Observer returns the callback to hang on an orchestrator's
// WithEvents hook. It counts task lifecycle transitions per target and
// kind.
func (e *Exporter) Observer() func(target string, ev scheduler.Event) {
	return func(target string, ev scheduler.Event) {
		switch ev.Type {
		case scheduler.EventStarted:
			e.tasksStarted.WithLabelValues(target, ev.Kind).Inc()
		case scheduler.EventCompleted:
			e.tasksCompleted.WithLabelValues(target, ev.Kind).Inc()
			if ev.Duration > 0 {
				e.taskSeconds.WithLabelValues(target, ev.Kind).Observe(ev.Duration.Seconds())
			}
		case scheduler.EventFailed:
			e.tasksFailed.WithLabelValues(target, ev.Kind).Inc()
		case scheduler.EventRetried:
			e.tasksRetried.WithLabelValues(target, ev.Kind).Inc()
		}
	}
}

// Progress returns the callback to hang on an orchestrator's
// WithProgress hook. It tracks the weighted completion gauge.
func (e *Exporter) Progress() func(scan.Progress) {
	return func(p scan.Progress) {
		e.progressPct.WithLabelValues(p.Target).Set(float64(p.Percent))
	}
}

// RecordReport folds a finished assessment into the outcome counters.
func (e *Exporter) RecordReport(rep *scan.Report) {
	if rep == nil {
		return
	}
	outcome := "succeeded"
	if !rep.Succeeded() {
		outcome = "failed"
	}
	e.assessments.WithLabelValues(rep.Target, outcome).Inc()
	e.assessSeconds.WithLabelValues(rep.Target).Set(rep.Finished.Sub(rep.Started).Seconds())
}

// Handler returns the scrape handler over the exporter's registry.
func (e *Exporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Registry exposes the private registry for callers that mount extra
// collectors next to the exporter's own.
func (e *Exporter) Registry() *prometheus.Registry { return e.registry }

// Start serves the metrics endpoint in the background until Close.
func (e *Exporter) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return fmt.Errorf("telemetry: exporter closed")
	}
	if e.server != nil {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle(e.opts.Path, e.Handler())
	e.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", e.opts.Port),
		Handler:      mux,
		ReadTimeout:  duration.MetricsRead,
		WriteTimeout: duration.MetricsWrite,
	}

	go func() {
		if err := e.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			e.logger.Error("metrics server error", slog.String("error", err.Error()))
		}
	}()
	return nil
}

// MetricsAddr returns the address where metrics are served.
func (e *Exporter) MetricsAddr() string {
	return fmt.Sprintf("http://localhost:%d%s", e.opts.Port, e.opts.Path)
}

// Close shuts the metrics server down. Safe to call without Start and
// safe to call twice.
func (e *Exporter) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true

	if e.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), duration.MetricsRead)
		defer cancel()
		return e.server.Shutdown(ctx)
	}
	return nil
}
