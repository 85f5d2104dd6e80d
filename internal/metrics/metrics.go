// Package metrics exposes Prometheus metrics for property lookups and page ingestion.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// LookupMetrics collects cache-aside and ingest counters. A nil *LookupMetrics is valid
// and records nothing.
type LookupMetrics struct {
	registry *prometheus.Registry

	lookupHitsTotal        *prometheus.CounterVec
	lookupMissesTotal      *prometheus.CounterVec
	notFoundTotal          *prometheus.CounterVec
	upstreamFailuresTotal  *prometheus.CounterVec
	storeFailuresTotal     *prometheus.CounterVec
	fetchDurationSeconds   *prometheus.HistogramVec
	ingestPriceChangeTotal prometheus.Counter
	ingestedPagesTotal     *prometheus.CounterVec
}

// NewLookupMetrics creates the metrics and registers them with registry.
func NewLookupMetrics(registry *prometheus.Registry) (*LookupMetrics, error) {
	m := &LookupMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *LookupMetrics) initMetrics() {
	m.lookupHitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "homeworth_lookup_hits_total",
			Help: "Lookups answered from the store",
		},
		[]string{"source"},
	)

	m.lookupMissesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "homeworth_lookup_misses_total",
			Help: "Lookups that required a call to the external source",
		},
		[]string{"source"},
	)

	m.notFoundTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "homeworth_not_found_total",
			Help: "Lookups where the source had no data",
		},
		[]string{"source"},
	)

	m.upstreamFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "homeworth_upstream_failures_total",
			Help: "Failed calls to an external source",
		},
		[]string{"source"},
	)

	m.storeFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "homeworth_store_failures_total",
			Help: "Failed store operations",
		},
		[]string{"operation"}, // operation: lookup, persist
	)

	m.fetchDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "homeworth_fetch_duration_seconds",
			Help:    "Duration of external source calls",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~20s
		},
		[]string{"source", "status"},
	)

	m.ingestPriceChangeTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "homeworth_ingest_price_changes_total",
		Help: "Ingested pages whose price differed from the stored one",
	})

	m.ingestedPagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "homeworth_ingested_pages_total",
			Help: "Pages run through the ingest pipeline",
		},
		[]string{"status"},
	)
}

// Describe implements the Collector interface
func (m *LookupMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.lookupHitsTotal.Describe(ch)
	m.lookupMissesTotal.Describe(ch)
	m.notFoundTotal.Describe(ch)
	m.upstreamFailuresTotal.Describe(ch)
	m.storeFailuresTotal.Describe(ch)
	m.fetchDurationSeconds.Describe(ch)
	m.ingestPriceChangeTotal.Describe(ch)
	m.ingestedPagesTotal.Describe(ch)
}

// Collect implements the Collector interface
func (m *LookupMetrics) Collect(ch chan<- prometheus.Metric) {
	m.lookupHitsTotal.Collect(ch)
	m.lookupMissesTotal.Collect(ch)
	m.notFoundTotal.Collect(ch)
	m.upstreamFailuresTotal.Collect(ch)
	m.storeFailuresTotal.Collect(ch)
	m.fetchDurationSeconds.Collect(ch)
	m.ingestPriceChangeTotal.Collect(ch)
	m.ingestedPagesTotal.Collect(ch)
}

func (m *LookupMetrics) RecordHit(source string) {
	if m == nil {
		return
	}
	m.lookupHitsTotal.WithLabelValues(source).Inc()
}

func (m *LookupMetrics) RecordMiss(source string) {
	if m == nil {
		return
	}
	m.lookupMissesTotal.WithLabelValues(source).Inc()
}

func (m *LookupMetrics) RecordNotFound(source string) {
	if m == nil {
		return
	}
	m.notFoundTotal.WithLabelValues(source).Inc()
}

func (m *LookupMetrics) RecordUpstreamFailure(source string) {
	if m == nil {
		return
	}
	m.upstreamFailuresTotal.WithLabelValues(source).Inc()
}

func (m *LookupMetrics) RecordStoreFailure(operation string) {
	if m == nil {
		return
	}
	m.storeFailuresTotal.WithLabelValues(operation).Inc()
}

// ObserveFetch records how long one external call took; status is success, empty or error.
func (m *LookupMetrics) ObserveFetch(source, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.fetchDurationSeconds.WithLabelValues(source, status).Observe(d.Seconds())
}

func (m *LookupMetrics) RecordPriceChange() {
	if m == nil {
		return
	}
	m.ingestPriceChangeTotal.Inc()
}

func (m *LookupMetrics) RecordIngest(status string) {
	if m == nil {
		return
	}
	m.ingestedPagesTotal.WithLabelValues(status).Inc()
}

// Handler serves the registry the metrics were registered with.
func (m *LookupMetrics) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
