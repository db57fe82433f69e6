package observability

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	err error
}

func (f fakeBackend) HealthCheck(ctx context.Context) error {
	return f.err
}

func newTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return client, mr
}

func TestHealthChecker_Liveness(t *testing.T) {
	checker := NewHealthChecker(nil, nil)

	rr := httptest.NewRecorder()
	checker.Liveness(rr, httptest.NewRequest(http.MethodGet, "/health/live", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, StatusHealthy, body["status"])
}

func TestHealthChecker_Check(t *testing.T) {
	t.Run("no dependencies", func(t *testing.T) {
		status := NewHealthChecker(nil, nil).Check(context.Background())
		assert.Equal(t, StatusHealthy, status.Status)
		assert.Empty(t, status.Dependencies)
		assert.NotEmpty(t, status.Version)
	})

	t.Run("healthy searchd and redis", func(t *testing.T) {
		client, _ := newTestRedis(t)
		status := NewHealthChecker(fakeBackend{}, client).Check(context.Background())

		assert.Equal(t, StatusHealthy, status.Status)
		assert.Equal(t, StatusHealthy, status.Dependencies["searchd"].Status)
		assert.Equal(t, StatusHealthy, status.Dependencies["redis"].Status)
	})

	t.Run("searchd down is unhealthy", func(t *testing.T) {
		status := NewHealthChecker(fakeBackend{err: errors.New("connection refused")}, nil).Check(context.Background())

		assert.Equal(t, StatusUnhealthy, status.Status)
		assert.Equal(t, "connection refused", status.Dependencies["searchd"].Message)
	})

	t.Run("redis down is degraded", func(t *testing.T) {
		client, mr := newTestRedis(t)
		mr.Close()

		status := NewHealthChecker(fakeBackend{}, client).Check(context.Background())
		assert.Equal(t, StatusDegraded, status.Status)
		assert.Equal(t, StatusUnhealthy, status.Dependencies["redis"].Status)
	})

	t.Run("both down stays unhealthy", func(t *testing.T) {
		client, mr := newTestRedis(t)
		mr.Close()

		status := NewHealthChecker(fakeBackend{err: errors.New("down")}, client).Check(context.Background())
		assert.Equal(t, StatusUnhealthy, status.Status)
	})
}

func TestHealthChecker_Readiness(t *testing.T) {
	tests := []struct {
		name       string
		backend    Backend
		wantStatus int
	}{
		{"healthy", fakeBackend{}, http.StatusOK},
		{"unhealthy", fakeBackend{err: errors.New("down")}, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checker := NewHealthChecker(tt.backend, nil)

			rr := httptest.NewRecorder()
			checker.Readiness(rr, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

			assert.Equal(t, tt.wantStatus, rr.Code)

			var status HealthStatus
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &status))
			assert.Contains(t, status.Dependencies, "searchd")
		})
	}
}
