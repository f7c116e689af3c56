package observability

import (
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordCheck(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordCheck(true)
	m.RecordCheck(true)
	m.RecordCheck(false)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.PermissionChecksTotal.WithLabelValues("allowed")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.PermissionChecksTotal.WithLabelValues("denied")))
}

func TestCacheCounters(t *testing.T) {
	m := NewMetrics(nil)

	m.CacheHitsTotal.Inc()
	m.CacheMissesTotal.Inc()
	m.CacheMissesTotal.Inc()
	m.SnapshotsPurgedTotal.Add(5)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.CacheHitsTotal))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.CacheMissesTotal))
	assert.Equal(t, float64(5), testutil.ToFloat64(m.SnapshotsPurgedTotal))
}

func TestMetricsHandlerServesRegistry(t *testing.T) {
	m := NewMetrics(nil)
	m.RecordCheck(true)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	require.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), "planwise_permission_checks_total")
}
