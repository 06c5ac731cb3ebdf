package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/apidelta/pkg/checker"
	"github.com/platinummonkey/apidelta/pkg/middleware"
	"github.com/platinummonkey/apidelta/pkg/observability"
	"github.com/platinummonkey/apidelta/pkg/report"
	"github.com/platinummonkey/apidelta/pkg/storage"
)

const releaseOne = `
name: r1
components:
  - id: a.b
    version: 1.0.0
    packages:
      - name: a.b
        visibility: api
    types:
      - name: a.b.Widget
        modifiers: [public]
        methods:
          - name: run
            descriptor: ()V
            modifiers: [public]
          - name: stop
            descriptor: ()V
            modifiers: [public]
`

const releaseTwo = `{
  "name": "r2",
  "components": [{
    "id": "a.b",
    "version": "1.1.0",
    "packages": [{"name": "a.b", "visibility": "api"}],
    "types": [{
      "name": "a.b.Widget",
      "modifiers": ["public"],
      "methods": [{"name": "run", "descriptor": "()V", "modifiers": ["public"]}]
    }]
  }]
}`

func newTestServer(t *testing.T, opts ...Option) *Server {
	t.Helper()
	store, err := storage.NewFileSystemStorage(t.TempDir())
	require.NoError(t, err)
	chk, err := checker.New(nil, checker.WithStore(store))
	require.NoError(t, err)
	return NewServer(chk, opts...)
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)
	return w
}

func seed(t *testing.T, s *Server) {
	t.Helper()
	for _, body := range []string{releaseOne, releaseTwo} {
		w := do(t, s, http.MethodPost, "/api/v1/baselines", body)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	}
}

func TestBaselineLifecycle(t *testing.T) {
	s := newTestServer(t)
	seed(t, s)

	w := do(t, s, http.MethodGet, "/api/v1/baselines", "")
	require.Equal(t, http.StatusOK, w.Code)
	var list BaselineListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Equal(t, 2, list.Total)
	assert.Equal(t, "r1", list.Baselines[0].Name)
	assert.Equal(t, 1, list.Baselines[0].Components)
	assert.NotEmpty(t, list.Baselines[0].Fingerprint)

	w = do(t, s, http.MethodGet, "/api/v1/baselines/r2", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"version":"1.1.0"`)

	w = do(t, s, http.MethodGet, "/api/v1/baselines/r1?format=yaml", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/yaml", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), "name: r1")

	w = do(t, s, http.MethodDelete, "/api/v1/baselines/r1", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = do(t, s, http.MethodDelete, "/api/v1/baselines/r1", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = do(t, s, http.MethodGet, "/api/v1/baselines/r1", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPutBaseline_Invalid(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name string
		body string
		want string
	}{
		{"unparseable", "name: [", "failed to parse"},
		{"missing name", "components: []", "invalid"},
		{"bad version", "name: r\ncomponents:\n  - id: a\n    version: x.y\n", "components[0].version"},
		{"path in name", "name: ../etc\n", "invalid"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, s, http.MethodPost, "/api/v1/baselines", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, w.Body.String(), tt.want)
		})
	}
}

func TestCompare(t *testing.T) {
	s := newTestServer(t)
	seed(t, s)

	w := do(t, s, http.MethodPost, "/api/v1/compare", `{"before":"r1","after":"r2","visibility":"api"}`)
	require.Equal(t, http.StatusConflict, w.Code, w.Body.String())
	rep, err := report.Decode(w.Body.Bytes())
	require.NoError(t, err)
	assert.False(t, rep.Passed())
	assert.Equal(t, "r1", rep.Before)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	w = do(t, s, http.MethodPost, "/api/v1/compare", `{"before":"r1","after":"r1"}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = do(t, s, http.MethodGet, "/api/v1/reports", "")
	require.Equal(t, http.StatusOK, w.Code)
	var list ReportListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Equal(t, 2, list.Total)

	w = do(t, s, http.MethodGet, "/api/v1/reports?baseline=r2&limit=5", "")
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Equal(t, 1, list.Total)
	assert.Equal(t, rep.ID, list.Reports[0].ID)

	w = do(t, s, http.MethodGet, "/api/v1/reports/"+rep.ID, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), rep.ID)

	w = do(t, s, http.MethodGet, "/api/v1/reports/missing", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCompare_BadInput(t *testing.T) {
	s := newTestServer(t)
	seed(t, s)

	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"malformed", `{`, http.StatusBadRequest},
		{"missing after", `{"before":"r1"}`, http.StatusBadRequest},
		{"bad visibility", `{"before":"r1","after":"r2","visibility":"public"}`, http.StatusBadRequest},
		{"unknown field", `{"before":"r1","after":"r2","mode":"FULL"}`, http.StatusBadRequest},
		{"unknown baseline", `{"before":"r1","after":"r9"}`, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, s, http.MethodPost, "/api/v1/compare", tt.body)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
		})
	}
}

func TestCompareComponent(t *testing.T) {
	s := newTestServer(t)
	seed(t, s)

	w := do(t, s, http.MethodGet, "/api/v1/baselines/r2/components/a.b/compare?against=r1&visibility=api", "")
	require.Equal(t, http.StatusConflict, w.Code, w.Body.String())
	rep, err := report.Decode(w.Body.Bytes())
	require.NoError(t, err)
	assert.Equal(t, "a.b", rep.Component)
	assert.Equal(t, "r1", rep.Before)
	assert.Equal(t, "r2", rep.After)

	w = do(t, s, http.MethodGet, "/api/v1/baselines/r1/components/a.b/compare?against=r1", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(t, s, http.MethodGet, "/api/v1/baselines/r2/components/a.b/compare", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = do(t, s, http.MethodGet, "/api/v1/baselines/r2/components/x.y/compare?against=r1", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestNoStore(t *testing.T) {
	chk, err := checker.New(nil)
	require.NoError(t, err)
	s := NewServer(chk)

	w := do(t, s, http.MethodGet, "/api/v1/baselines", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	w = do(t, s, http.MethodGet, "/api/v1/reports", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)
	health := observability.NewHealthChecker("test")
	health.Register("store", func(ctx context.Context) error { return nil }, true)

	s := newTestServer(t, WithMetrics(metrics, registry), WithHealth(health))
	seed(t, s)

	w := do(t, s, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	w = do(t, s, http.MethodGet, "/ready", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "store")

	w = do(t, s, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "/api/v1/baselines")
}

func TestMaxBodyBytes(t *testing.T) {
	s := newTestServer(t, WithMaxBodyBytes(16))
	w := do(t, s, http.MethodPost, "/api/v1/baselines", releaseOne)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, s, http.MethodPost, "/api/v1/compare", `{"before":"r1","after":"r2"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

type baselineEvents struct {
	pushed  []string
	deleted []string
}

func (b *baselineEvents) NotifyBaselinePushed(_ context.Context, info storage.BaselineInfo) {
	b.pushed = append(b.pushed, info.Name)
}

func (b *baselineEvents) NotifyBaselineDeleted(_ context.Context, name string) {
	b.deleted = append(b.deleted, name)
}

func TestBaselineNotifications(t *testing.T) {
	events := &baselineEvents{}
	s := newTestServer(t, WithNotifier(events))
	seed(t, s)

	w := do(t, s, http.MethodDelete, "/api/v1/baselines/r1", "")
	require.Equal(t, http.StatusNoContent, w.Code)
	w = do(t, s, http.MethodDelete, "/api/v1/baselines/r1", "")
	require.Equal(t, http.StatusNotFound, w.Code)

	assert.Equal(t, []string{"r1", "r2"}, events.pushed)
	assert.Equal(t, []string{"r1"}, events.deleted)
}

func TestRateLimit(t *testing.T) {
	limiter := middleware.NewRateLimiter(middleware.RateLimitConfig{RequestsPerWindow: 2, WindowDuration: time.Hour})
	s := newTestServer(t, WithRateLimit(limiter))

	for i := 0; i < 2; i++ {
		w := do(t, s, http.MethodGet, "/api/v1/baselines", "")
		require.Equal(t, http.StatusOK, w.Code)
	}
	w := do(t, s, http.MethodGet, "/api/v1/baselines", "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	w = do(t, s, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
}
