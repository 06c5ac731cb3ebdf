package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/apidelta/pkg/config"
	"github.com/platinummonkey/apidelta/pkg/middleware"
	"github.com/platinummonkey/apidelta/pkg/observability"
	"github.com/platinummonkey/apidelta/pkg/webhooks"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.FromViper(config.New())
	require.NoError(t, err)
	cfg.Storage.FilesystemRoot = t.TempDir()
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = "0"
	cfg.Server.ShutdownTimeout = 5 * time.Second
	return cfg
}

const baseline = `
name: r1
components:
  - id: a.b
    version: 1.0.0
`

func TestNewRuntime(t *testing.T) {
	cfg := testConfig(t)
	rt, err := NewRuntime(context.Background(), cfg, observability.NewNopLogger(), "test")
	require.NoError(t, err)
	defer rt.Close(context.Background())

	require.NotNil(t, rt.Store)
	require.NotNil(t, rt.Cache)
	require.NotNil(t, rt.Metrics)
	assert.Nil(t, rt.OTel)

	handler := NewHTTPServer(rt).Handler
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/baselines", strings.NewReader(baseline)))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/compare", strings.NewReader(`{"before":"r1","after":"r1"}`)))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "storage")

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "apidelta_storage_operations_total")
}

func TestNewRuntime_RedisCache(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig(t)
	cfg.Storage.RedisURL = "redis://" + mr.Addr()
	cfg.Observability.MetricsEnabled = false

	rt, err := NewRuntime(context.Background(), cfg, observability.NewNopLogger(), "test")
	require.NoError(t, err)

	status := rt.Health.Check(context.Background())
	assert.Equal(t, observability.StatusHealthy, status.Status)
	assert.Contains(t, status.Dependencies, "redis")
	assert.Nil(t, rt.Metrics)

	require.NoError(t, rt.Close(context.Background()))
}

func TestNewRuntime_WebhooksAndRateLimit(t *testing.T) {
	var events atomic.Int32
	receiver := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(webhooks.HeaderEvent) == string(webhooks.EventBaselinePushed) {
			events.Add(1)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer receiver.Close()

	cfg := testConfig(t)
	cfg.Webhooks.URLs = []string{receiver.URL}
	cfg.Server.RateLimitRequests = 1
	cfg.Server.RateLimitWindow = time.Hour

	rt, err := NewRuntime(context.Background(), cfg, observability.NewNopLogger(), "test")
	require.NoError(t, err)
	require.NotNil(t, rt.Webhooks)
	require.IsType(t, &middleware.RateLimiter{}, rt.Limiter)

	handler := NewHTTPServer(rt).Handler
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/baselines", strings.NewReader(baseline)))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/baselines", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	assert.Eventually(t, func() bool { return events.Load() == 1 }, 5*time.Second, 10*time.Millisecond)
	require.NoError(t, rt.Close(context.Background()))
}

func TestNewRuntime_DistributedRateLimit(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig(t)
	cfg.Storage.RedisURL = "redis://" + mr.Addr()
	cfg.Server.RateLimitRequests = 5

	rt, err := NewRuntime(context.Background(), cfg, observability.NewNopLogger(), "test")
	require.NoError(t, err)
	defer rt.Close(context.Background())

	require.IsType(t, &middleware.DistributedRateLimiter{}, rt.Limiter)
	d, err := rt.Limiter.Allow(context.Background(), "ip:192.0.2.1")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, 5, d.Limit)
}

func TestNewRuntime_BadStorage(t *testing.T) {
	cfg := testConfig(t)
	cfg.Storage.Type = "memory"
	_, err := NewRuntime(context.Background(), cfg, observability.NewNopLogger(), "test")
	assert.Error(t, err)
}

func TestRun_StopsOnCancel(t *testing.T) {
	cfg := testConfig(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- Run(ctx, cfg, observability.NewNopLogger(), "test") }()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not stop")
	}
}
