package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestLogger_Fields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(DebugLevel, &buf)

	logger.WithComparison("r1", "r2").WithComponent("a.b.c").WithError(errors.New("boom")).Info("compared")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "compared", entry["msg"])
	assert.Equal(t, "r1", entry["before"])
	assert.Equal(t, "r2", entry["after"])
	assert.Equal(t, "a.b.c", entry["component"])
	assert.Equal(t, "boom", entry["error"])
}

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(WarnLevel, &buf)
	logger.Info("hidden")
	logger.Debugf("hidden %d", 1)
	assert.Empty(t, buf.String())

	logger.Warnf("shown %d", 2)
	assert.Contains(t, buf.String(), "shown 2")
}

func TestTextLogger(t *testing.T) {
	var buf bytes.Buffer
	NewTextLogger(InfoLevel, &buf).WithComponent("a.b").Info("loaded")
	assert.Contains(t, buf.String(), "level=INFO")
	assert.Contains(t, buf.String(), "msg=loaded")
	assert.Contains(t, buf.String(), "component=a.b")
	assert.Equal(t, "LogLevel(9)", LogLevel(9).String())
}

func TestParseLogLevel(t *testing.T) {
	tests := map[string]LogLevel{
		"debug":   DebugLevel,
		"INFO":    InfoLevel,
		"":        InfoLevel,
		"warning": WarnLevel,
		"error":   ErrorLevel,
	}
	for in, want := range tests {
		got, err := ParseLogLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseLogLevel("loud")
	assert.Error(t, err)
}

func TestFromContext(t *testing.T) {
	var buf bytes.Buffer
	ctx := WithLogger(context.Background(), NewLogger(InfoLevel, &buf))
	ctx = WithRequestID(ctx, "req-1")
	ctx = WithComparisonID(ctx, "cmp-1")

	FromContext(ctx).Info("hello")
	out := buf.String()
	assert.Contains(t, out, `"request_id":"req-1"`)
	assert.Contains(t, out, `"comparison_id":"cmp-1"`)
	assert.Equal(t, "", RequestID(context.Background()))
	assert.Equal(t, "cmp-1", ComparisonID(ctx))
}

func TestHTTPMetricsMiddleware(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)

	router := mux.NewRouter()
	router.Use(HTTPMetricsMiddleware(metrics))
	router.HandleFunc("/api/v1/baselines/{name}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short and stout"))
	})

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/baselines/r1", nil))
		assert.Equal(t, http.StatusTeapot, rec.Code)
	}

	count := testutil.ToFloat64(metrics.HTTPRequestsTotal.WithLabelValues("GET", "/api/v1/baselines/{name}", "418"))
	assert.Equal(t, float64(2), count)
}

func TestMetrics_ObserveStorage(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)

	metrics.ObserveStorage("get_baseline", "filesystem", time.Now(), nil)
	metrics.ObserveStorage("get_baseline", "filesystem", time.Now(), errors.New("x"))

	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.StorageOperationsTotal.WithLabelValues("get_baseline", "filesystem", "success")))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.StorageOperationsTotal.WithLabelValues("get_baseline", "filesystem", "error")))

	var nilMetrics *Metrics
	nilMetrics.ObserveStorage("noop", "none", time.Now(), nil)
}

func TestMetricsHandler(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)
	metrics.ComparisonsTotal.WithLabelValues("baseline", "compatible").Inc()

	rec := httptest.NewRecorder()
	MetricsHandler(registry).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "apidelta_comparisons_total")
}

func TestHealthChecker(t *testing.T) {
	tests := []struct {
		name       string
		storeErr   error
		redisErr   error
		wantStatus string
		wantCode   int
	}{
		{"all healthy", nil, nil, StatusHealthy, http.StatusOK},
		{"optional down", nil, errors.New("connection refused"), StatusDegraded, http.StatusOK},
		{"critical down", errors.New("disk gone"), nil, StatusUnhealthy, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checker := NewHealthChecker("test")
			checker.Register("store", func(context.Context) error { return tt.storeErr }, true)
			checker.Register("redis", func(context.Context) error { return tt.redisErr }, false)

			status := checker.Check(context.Background())
			assert.Equal(t, tt.wantStatus, status.Status)
			assert.Len(t, status.Dependencies, 2)

			rec := httptest.NewRecorder()
			checker.Readiness(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
			assert.Equal(t, tt.wantCode, rec.Code)
		})
	}

	rec := httptest.NewRecorder()
	NewHealthChecker("x").Liveness(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestShutdownManager_RunsHooks(t *testing.T) {
	sm := NewShutdownManager(NewNopLogger(), nil, time.Second)

	var ran []string
	done := make(chan string, 2)
	sm.Register("store", func(context.Context) error {
		done <- "store"
		return nil
	})
	sm.Register("cache", func(context.Context) error {
		done <- "cache"
		return errors.New("flush failed")
	})

	err := sm.Shutdown(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cache: flush failed")

	close(done)
	for name := range done {
		ran = append(ran, name)
	}
	assert.ElementsMatch(t, []string{"store", "cache"}, ran)
}

func TestShutdownManager_Timeout(t *testing.T) {
	sm := NewShutdownManager(NewNopLogger(), nil, 20*time.Millisecond)
	sm.Register("slow", func(ctx context.Context) error {
		<-ctx.Done()
		time.Sleep(50 * time.Millisecond)
		return nil
	})

	err := sm.Shutdown(context.Background())
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "timeout"))
}

func TestRecoverPanic(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, &buf)

	func() {
		defer RecoverPanic(logger, "test")
		panic("kaboom")
	}()

	assert.Contains(t, buf.String(), "kaboom")
	assert.NoError(t, PanicError(nil))
	assert.EqualError(t, PanicError("x"), "panic: x")
}

func TestInitOTel_Disabled(t *testing.T) {
	providers, err := InitOTel(context.Background(), OTelConfig{}, NewNopLogger())
	require.NoError(t, err)
	assert.Nil(t, providers)
	assert.NoError(t, providers.Shutdown(context.Background()))
	assert.NotNil(t, Tracer())
}

func TestTracer_FollowsGlobalProvider(t *testing.T) {
	_, span := Tracer().Start(context.Background(), "noop")
	assert.False(t, span.IsRecording())
	span.End()

	previous := otel.GetTracerProvider()
	tp := sdktrace.NewTracerProvider()
	otel.SetTracerProvider(tp)
	defer func() {
		otel.SetTracerProvider(previous)
		_ = tp.Shutdown(context.Background())
	}()

	_, span = Tracer().Start(context.Background(), "compare")
	defer span.End()
	assert.True(t, span.IsRecording())
}

func TestLogger_WithSpan(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, &buf)

	logger.WithSpan(context.Background()).Info("no span")
	assert.NotContains(t, buf.String(), "trace_id")

	tp := sdktrace.NewTracerProvider()
	defer tp.Shutdown(context.Background())
	ctx, span := tp.Tracer("test").Start(context.Background(), "compare")
	defer span.End()

	buf.Reset()
	FromContext(WithLogger(ctx, logger)).Info("in span")
	assert.Contains(t, buf.String(), span.SpanContext().TraceID().String())
	assert.Contains(t, buf.String(), `"span_id"`)
}

func TestOTelMetrics_NoopProvider(t *testing.T) {
	m, err := NewOTelMetrics()
	require.NoError(t, err)
	m.RecordComparison(context.Background(), "baseline", true, time.Millisecond)
	m.RecordDeltas(context.Background(), map[string]int{"ADDED": 2})
	m.RecordCacheLookup(context.Background(), "memory", false)
}
