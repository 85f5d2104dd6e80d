package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookupMetricsCounters(t *testing.T) {
	registry := prometheus.NewRegistry()
	m, err := NewLookupMetrics(registry)
	require.NoError(t, err)

	m.RecordHit("valuation_api")
	m.RecordHit("valuation_api")
	m.RecordMiss("valuation_api")
	m.RecordNotFound("page_scrape")
	m.RecordUpstreamFailure("valuation_api")
	m.RecordStoreFailure("persist")
	m.RecordPriceChange()
	m.RecordIngest("ok")
	m.ObserveFetch("valuation_api", "success", 120*time.Millisecond)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.lookupHitsTotal.WithLabelValues("valuation_api")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.lookupMissesTotal.WithLabelValues("valuation_api")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.notFoundTotal.WithLabelValues("page_scrape")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.upstreamFailuresTotal.WithLabelValues("valuation_api")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.storeFailuresTotal.WithLabelValues("persist")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ingestPriceChangeTotal))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ingestedPagesTotal.WithLabelValues("ok")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.fetchDurationSeconds))
}

func TestLookupMetricsDuplicateRegistration(t *testing.T) {
	registry := prometheus.NewRegistry()
	_, err := NewLookupMetrics(registry)
	require.NoError(t, err)

	_, err = NewLookupMetrics(registry)
	assert.Error(t, err)
}

func TestNilLookupMetrics(t *testing.T) {
	var m *LookupMetrics
	assert.NotPanics(t, func() {
		m.RecordHit("x")
		m.RecordMiss("x")
		m.RecordNotFound("x")
		m.RecordUpstreamFailure("x")
		m.RecordStoreFailure("x")
		m.ObserveFetch("x", "error", time.Second)
		m.RecordPriceChange()
		m.RecordIngest("error")
	})
}

func TestHandler(t *testing.T) {
	registry := prometheus.NewRegistry()
	m, err := NewLookupMetrics(registry)
	require.NoError(t, err)
	m.RecordHit("valuation_api")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "homeworth_lookup_hits_total")
}
