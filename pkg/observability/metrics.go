package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the engine's Prometheus collectors
type Metrics struct {
	registry *prometheus.Registry

	PermissionChecksTotal  *prometheus.CounterVec
	PermissionCheckSeconds prometheus.Histogram
	CacheHitsTotal         prometheus.Counter
	CacheMissesTotal       prometheus.Counter
	CacheRebuildsTotal     prometheus.Counter
	CacheInvalidations     prometheus.Counter
	SnapshotsPurgedTotal   prometheus.Counter
}

// NewMetrics creates and registers all collectors on the registry
// (a fresh one when nil).
func NewMetrics(registry *prometheus.Registry) *Metrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	m := &Metrics{
		registry: registry,
		PermissionChecksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "planwise_permission_checks_total",
				Help: "Permission checks by result",
			},
			[]string{"result"},
		),
		PermissionCheckSeconds: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "planwise_permission_check_duration_seconds",
				Help:    "Permission check latency",
				Buckets: prometheus.DefBuckets,
			},
		),
		CacheHitsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "planwise_permission_cache_hits_total",
			Help: "Permission checks answered from the snapshot cache",
		}),
		CacheMissesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "planwise_permission_cache_misses_total",
			Help: "Permission checks that fell through to full evaluation",
		}),
		CacheRebuildsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "planwise_permission_cache_rebuilds_total",
			Help: "Explicit snapshot rebuilds",
		}),
		CacheInvalidations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "planwise_permission_cache_invalidations_total",
			Help: "Snapshot invalidations triggered by assignment writes",
		}),
		SnapshotsPurgedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "planwise_permission_snapshots_purged_total",
			Help: "Expired snapshots reclaimed by the janitor",
		}),
	}

	registry.MustRegister(
		m.PermissionChecksTotal,
		m.PermissionCheckSeconds,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.CacheRebuildsTotal,
		m.CacheInvalidations,
		m.SnapshotsPurgedTotal,
	)
	return m
}

// Handler serves the registry over HTTP
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordCheck counts a permission check outcome
func (m *Metrics) RecordCheck(allowed bool) {
	if allowed {
		m.PermissionChecksTotal.WithLabelValues("allowed").Inc()
	} else {
		m.PermissionChecksTotal.WithLabelValues("denied").Inc()
	}
}
