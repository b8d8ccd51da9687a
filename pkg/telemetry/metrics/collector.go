// Package metrics exposes Prometheus metrics for the export pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"loomworks/trawl/pkg/config"
)

// Collector implements the export pipeline's metrics sink on top of a
// Prometheus registry. The zero-value MetricsConfig disables recording
// while keeping the call sites unconditional.
type Collector struct {
	config   *config.MetricsConfig
	registry *prometheus.Registry

	pagesFetched    *prometheus.CounterVec
	retriesTotal    prometheus.Counter
	throttlesTotal  *prometheus.CounterVec
	recordsExported *prometheus.CounterVec
	entityFailures  *prometheus.CounterVec
	runsTotal       *prometheus.CounterVec
}

// NewCollector creates a collector registered against registry. If
// registry is nil a fresh one is created.
func NewCollector(cfg *config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	// Defaults are applied locally so construction never writes back
	// into the caller's config.
	namespace := cfg.Namespace
	if namespace == "" {
		namespace = "trawl"
	}
	subsystem := cfg.Subsystem
	if subsystem == "" {
		subsystem = "export"
	}

	c := &Collector{
		config:   cfg,
		registry: registry,

		pagesFetched: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "pages_fetched_total",
				Help:      "Total number of record pages fetched from the API",
			},
			[]string{"kind"},
		),

		retriesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "retries_total",
				Help:      "Total number of retries scheduled after retryable failures",
			},
		),

		throttlesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "throttles_total",
				Help:      "Total number of proactive throttle pauses between pages",
			},
			[]string{"kind"},
		),

		recordsExported: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "records_exported_total",
				Help:      "Total number of records written to CSV files",
			},
			[]string{"kind"},
		),

		entityFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "entity_failures_total",
				Help:      "Total number of entity exports that failed",
			},
			[]string{"kind"},
		),

		runsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "runs_total",
				Help:      "Total number of export runs by outcome",
			},
			[]string{"status"},
		),
	}

	registry.MustRegister(
		c.pagesFetched,
		c.retriesTotal,
		c.throttlesTotal,
		c.recordsExported,
		c.entityFailures,
		c.runsTotal,
	)

	return c
}

// RetryScheduled counts one scheduled retry.
func (c *Collector) RetryScheduled() {
	if !c.config.Enabled {
		return
	}
	c.retriesTotal.Inc()
}

// PageFetched counts one fetched page for the given entity kind.
func (c *Collector) PageFetched(kind string) {
	if !c.config.Enabled {
		return
	}
	c.pagesFetched.WithLabelValues(kind).Inc()
}

// ThrottleApplied counts one proactive throttle pause.
func (c *Collector) ThrottleApplied(kind string) {
	if !c.config.Enabled {
		return
	}
	c.throttlesTotal.WithLabelValues(kind).Inc()
}

// RecordsExported adds count records written for the given kind.
func (c *Collector) RecordsExported(kind string, count int) {
	if !c.config.Enabled || count <= 0 {
		return
	}
	c.recordsExported.WithLabelValues(kind).Add(float64(count))
}

// EntityFailed counts one failed entity export.
func (c *Collector) EntityFailed(kind string) {
	if !c.config.Enabled {
		return
	}
	c.entityFailures.WithLabelValues(kind).Inc()
}

// RunCompleted counts one finished export run. status is "success" or
// "partial" (at least one entity failed).
func (c *Collector) RunCompleted(status string) {
	if !c.config.Enabled {
		return
	}
	c.runsTotal.WithLabelValues(status).Inc()
}

// Registry returns the Prometheus registry used by this collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}
