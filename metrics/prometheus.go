// Package metrics provides Prometheus metrics for the model registry.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the registry manager.
type Metrics struct {
	// Registration metrics
	RegistrationsTotal        prometheus.Counter
	ReuseHitsTotal            prometheus.Counter
	FingerprintFallbacksTotal prometheus.Counter

	// Owner query cache metrics
	OwnerCacheHitsTotal   prometheus.Counter
	OwnerCacheMissesTotal prometheus.Counter

	// Cleanup metrics
	CleanupsTotal        prometheus.Counter
	CleanupModelsRemoved prometheus.Counter
	CleanupDuration      prometheus.Histogram

	// Population gauges
	ModelsLive           prometheus.Gauge
	TenantRegistriesLive prometheus.Gauge
}

// NewMetrics creates all registry metrics registered against reg. A nil reg
// yields working but unregistered metrics, which keeps instrumented code
// paths identical when no scrape endpoint exists and lets tests construct
// managers without registration conflicts.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		// Registration metrics
		RegistrationsTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: "modelreg",
			Subsystem: "registry",
			Name:      "registrations_total",
			Help:      "Total number of model registrations",
		}),
		ReuseHitsTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: "modelreg",
			Subsystem: "registry",
			Name:      "reuse_hits_total",
			Help:      "Total number of registrations satisfied by structural reuse",
		}),
		FingerprintFallbacksTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: "modelreg",
			Subsystem: "fingerprint",
			Name:      "fallbacks_total",
			Help:      "Total number of structures fingerprinted by unique fallback",
		}),

		// Owner query cache metrics
		OwnerCacheHitsTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: "modelreg",
			Subsystem: "owner_cache",
			Name:      "hits_total",
			Help:      "Total number of owner query cache hits",
		}),
		OwnerCacheMissesTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: "modelreg",
			Subsystem: "owner_cache",
			Name:      "misses_total",
			Help:      "Total number of owner query cache misses",
		}),

		// Cleanup metrics
		CleanupsTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: "modelreg",
			Subsystem: "cleanup",
			Name:      "runs_total",
			Help:      "Total number of tenant cleanup runs",
		}),
		CleanupModelsRemoved: f.NewCounter(prometheus.CounterOpts{
			Namespace: "modelreg",
			Subsystem: "cleanup",
			Name:      "models_removed_total",
			Help:      "Total number of models removed by tenant cleanup",
		}),
		CleanupDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "modelreg",
			Subsystem: "cleanup",
			Name:      "duration_seconds",
			Help:      "Histogram of tenant cleanup durations",
			Buckets:   prometheus.ExponentialBuckets(0.000001, 4, 10), // 1us to ~262ms
		}),

		// Population gauges
		ModelsLive: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "modelreg",
			Subsystem: "registry",
			Name:      "models_live",
			Help:      "Current number of registered models across all tenants",
		}),
		TenantRegistriesLive: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "modelreg",
			Subsystem: "registry",
			Name:      "tenant_registries_live",
			Help:      "Current number of tenant registries",
		}),
	}
}

// RecordRegistration records a model registration, counting structural reuse
// separately.
func (m *Metrics) RecordRegistration(reused bool) {
	m.RegistrationsTotal.Inc()
	if reused {
		m.ReuseHitsTotal.Inc()
	}
}

// RecordFingerprintFallback records a structure that received a unique
// fallback fingerprint.
func (m *Metrics) RecordFingerprintFallback() {
	m.FingerprintFallbacksTotal.Inc()
}

// RecordOwnerCacheHit records an owner query served from cache.
func (m *Metrics) RecordOwnerCacheHit() {
	m.OwnerCacheHitsTotal.Inc()
}

// RecordOwnerCacheMiss records an owner query that had to be recomputed.
func (m *Metrics) RecordOwnerCacheMiss() {
	m.OwnerCacheMissesTotal.Inc()
}

// RecordCleanup records a tenant cleanup run.
func (m *Metrics) RecordCleanup(modelsRemoved int, duration time.Duration) {
	m.CleanupsTotal.Inc()
	m.CleanupModelsRemoved.Add(float64(modelsRemoved))
	m.CleanupDuration.Observe(duration.Seconds())
}

// UpdatePopulation updates the live model and tenant registry gauges.
func (m *Metrics) UpdatePopulation(models, tenantRegistries int) {
	m.ModelsLive.Set(float64(models))
	m.TenantRegistriesLive.Set(float64(tenantRegistries))
}
