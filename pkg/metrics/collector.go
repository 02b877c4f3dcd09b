// Package metrics exposes Prometheus counters for program executions.
//
// The CLI has no HTTP server, so metrics are exported by writing the
// registry in the Prometheus text format (node_exporter textfile style).
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/thomasrohde/mocha/go/pkg/evaluator"
)

// Run statuses used as the "status" label.
const (
	StatusOK     = "ok"
	StatusExit   = "exit"
	StatusError  = "error"
	StatusBudget = "budget"
)

const namespace = "mocha"

// Collector records execution metrics. It is safe for concurrent use.
type Collector struct {
	registry *prometheus.Registry

	runsTotal       *prometheus.CounterVec
	runDuration     prometheus.Histogram
	statementsTotal prometheus.Counter
	callsTotal      prometheus.Counter
	iterationsTotal prometheus.Counter
	errorsTotal     *prometheus.CounterVec
	maxCallDepth    prometheus.Gauge
}

// NewCollector creates a collector registered on registry, or on a fresh
// registry when nil.
func NewCollector(registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	c := &Collector{
		registry: registry,
		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Program executions by outcome.",
		}, []string{"status"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of program executions.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
		}),
		statementsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "statements_total",
			Help:      "Statements evaluated.",
		}),
		callsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "calls_total",
			Help:      "Function calls made.",
		}),
		iterationsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "loop_iterations_total",
			Help:      "While and for body executions.",
		}),
		errorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "Diagnostics and runtime errors by code.",
		}, []string{"code"}),
		maxCallDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "max_call_depth",
			Help:      "Deepest call nesting reached by the most recent run.",
		}),
	}

	registry.MustRegister(
		c.runsTotal,
		c.runDuration,
		c.statementsTotal,
		c.callsTotal,
		c.iterationsTotal,
		c.errorsTotal,
		c.maxCallDepth,
	)
	return c
}

// Registry returns the registry the collector's metrics live in.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// RecordRun records one finished execution.
func (c *Collector) RecordRun(status string, duration time.Duration, stats evaluator.Stats) {
	c.runsTotal.WithLabelValues(status).Inc()
	c.runDuration.Observe(duration.Seconds())
	c.statementsTotal.Add(float64(stats.Statements))
	c.callsTotal.Add(float64(stats.Calls))
	c.iterationsTotal.Add(float64(stats.Iterations))
	c.maxCallDepth.Set(float64(stats.MaxDepth))
}

// RecordError counts a diagnostic or runtime error code.
func (c *Collector) RecordError(code string) {
	c.errorsTotal.WithLabelValues(code).Inc()
}

// WriteToTextfile writes the registry to path in the Prometheus text format.
func (c *Collector) WriteToTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, c.registry); err != nil {
		return fmt.Errorf("write metrics to %s: %w", path, err)
	}
	return nil
}
