package observability

import (
	"database/sql"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetrics_RegistersEverything(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)
	require.NotNil(t, metrics)

	// Registering twice must panic on the same registry
	assert.Panics(t, func() { NewMetrics(registry) })
}

func TestMetrics_ObserveQuery(t *testing.T) {
	metrics := NewMetrics(prometheus.NewRegistry())

	metrics.ObserveQuery("products", 15*time.Millisecond, 3, nil)
	metrics.ObserveQuery("products", 5*time.Millisecond, 0, errors.New("boom"))
	metrics.ObserveQuery("products", 5*time.Millisecond, 1, nil)

	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.QueriesTotal.WithLabelValues("products", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.QueriesTotal.WithLabelValues("products", "error")))
	assert.Equal(t, 1, testutil.CollectAndCount(metrics.QueryDuration))
}

func TestMetrics_Cache(t *testing.T) {
	metrics := NewMetrics(prometheus.NewRegistry())

	metrics.RecordCacheHit("l1")
	metrics.RecordCacheHit("l1")
	metrics.RecordCacheHit("l2")
	metrics.RecordCacheMiss()
	metrics.RecordCacheError("get")

	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.CacheHitsTotal.WithLabelValues("l1")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.CacheHitsTotal.WithLabelValues("l2")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.CacheMissesTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.CacheErrorsTotal.WithLabelValues("get")))
}

func TestMetrics_NilReceiver(t *testing.T) {
	var metrics *Metrics
	assert.NotPanics(t, func() {
		metrics.ObserveQuery("idx", time.Second, 1, nil)
		metrics.RecordCacheHit("l1")
		metrics.RecordCacheMiss()
		metrics.RecordCacheError("set")
		metrics.UpdatePoolStats(sql.DBStats{}, 0)
	})
}

func TestMetrics_UpdatePoolStats(t *testing.T) {
	metrics := NewMetrics(prometheus.NewRegistry())

	metrics.UpdatePoolStats(sql.DBStats{OpenConnections: 5, InUse: 2, Idle: 3, WaitCount: 7}, 2)

	assert.Equal(t, 5.0, testutil.ToFloat64(metrics.DBConnectionsOpen))
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.DBConnectionsInUse))
	assert.Equal(t, 3.0, testutil.ToFloat64(metrics.DBConnectionsIdle))
	assert.Equal(t, 7.0, testutil.ToFloat64(metrics.DBWaitCount))
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.ReplicasHealthy))
}

func TestHTTPMetricsMiddleware(t *testing.T) {
	metrics := NewMetrics(prometheus.NewRegistry())

	handler := HTTPMetricsMiddleware(metrics)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		w.Write([]byte("short and stout"))
	}))

	req := httptest.NewRequest(http.MethodGet, "/search", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusTeapot, rr.Code)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.HTTPRequestsTotal.WithLabelValues("GET", "/search", "418")))
}

func TestMetricsHandler(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)
	metrics.RecordCacheMiss()

	srv := httptest.NewServer(MetricsHandler(registry))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), "sphinxql_cache_misses_total 1"))
}
