package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPResponseSize    *prometheus.HistogramVec

	// Comparison metrics
	ComparisonsTotal        *prometheus.CounterVec
	ComparisonDuration      *prometheus.HistogramVec
	ComponentsComparedTotal prometheus.Counter
	TypesComparedTotal      prometheus.Counter
	TypesSkippedTotal       prometheus.Counter
	DeltasTotal             *prometheus.CounterVec
	VersionProblemsTotal    *prometheus.CounterVec

	// Storage metrics
	StorageOperationsTotal   *prometheus.CounterVec
	StorageOperationDuration *prometheus.HistogramVec

	// Cache metrics
	CacheHitsTotal   *prometheus.CounterVec
	CacheMissesTotal *prometheus.CounterVec

	// Watcher metrics
	WatcherRunsTotal *prometheus.CounterVec

	WebhookDeliveriesTotal *prometheus.CounterVec
	RateLimitedTotal       *prometheus.CounterVec

	BaselinesTotal prometheus.Gauge
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "apidelta_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "apidelta_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		HTTPResponseSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "apidelta_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 8),
			},
			[]string{"method", "route"},
		),

		ComparisonsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "apidelta_comparisons_total",
				Help: "Total number of comparisons by outcome",
			},
			[]string{"scope", "result"},
		),
		ComparisonDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "apidelta_comparison_duration_seconds",
				Help:    "Comparison duration in seconds",
				Buckets: []float64{.001, .005, .01, .05, .1, .5, 1, 5, 10, 30},
			},
			[]string{"scope"},
		),
		ComponentsComparedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "apidelta_components_compared_total",
				Help: "Components compared structurally",
			},
		),
		TypesComparedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "apidelta_types_compared_total",
				Help: "Types compared structurally",
			},
		),
		TypesSkippedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "apidelta_types_skipped_total",
				Help: "Types skipped because their fingerprints matched",
			},
		),
		DeltasTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "apidelta_deltas_total",
				Help: "Leaf deltas reported by kind and compatibility",
			},
			[]string{"kind", "compatible"},
		),
		VersionProblemsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "apidelta_version_problems_total",
				Help: "Components whose version increment does not match their changes",
			},
			[]string{"rule"},
		),

		StorageOperationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "apidelta_storage_operations_total",
				Help: "Total number of storage operations",
			},
			[]string{"operation", "backend", "status"},
		),
		StorageOperationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "apidelta_storage_operation_duration_seconds",
				Help:    "Storage operation duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation", "backend"},
		),

		CacheHitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "apidelta_cache_hits_total",
				Help: "Report cache hits",
			},
			[]string{"tier"},
		),
		CacheMissesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "apidelta_cache_misses_total",
				Help: "Report cache misses",
			},
			[]string{"tier"},
		),

		WatcherRunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "apidelta_watcher_runs_total",
				Help: "Watcher checks by trigger and result",
			},
			[]string{"trigger", "result"},
		),

		WebhookDeliveriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "apidelta_webhook_deliveries_total",
				Help: "Webhook deliveries by event and result",
			},
			[]string{"event", "result"},
		),
		RateLimitedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "apidelta_http_rate_limited_total",
				Help: "Requests rejected by the rate limiter",
			},
			[]string{"limiter"},
		),

		BaselinesTotal: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "apidelta_baselines_total",
				Help: "Number of stored baselines",
			},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPResponseSize,
		m.ComparisonsTotal,
		m.ComparisonDuration,
		m.ComponentsComparedTotal,
		m.TypesComparedTotal,
		m.TypesSkippedTotal,
		m.DeltasTotal,
		m.VersionProblemsTotal,
		m.StorageOperationsTotal,
		m.StorageOperationDuration,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.WatcherRunsTotal,
		m.WebhookDeliveriesTotal,
		m.RateLimitedTotal,
		m.BaselinesTotal,
	)

	return m
}

// ObserveStorage records one storage call
func (m *Metrics) ObserveStorage(operation, backend string, start time.Time, err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.StorageOperationsTotal.WithLabelValues(operation, backend, status).Inc()
	m.StorageOperationDuration.WithLabelValues(operation, backend).Observe(time.Since(start).Seconds())
}

// responseWriter wraps http.ResponseWriter to capture status code and size
type responseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += n
	return n, err
}

// HTTPMetricsMiddleware instruments requests, labelled by the mux route template
func HTTPMetricsMiddleware(metrics *Metrics) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &responseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(rw, r)

			route := routeTemplate(r)
			status := strconv.Itoa(rw.statusCode)
			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, route, status).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
			metrics.HTTPResponseSize.WithLabelValues(r.Method, route).Observe(float64(rw.bytesWritten))
		})
	}
}

func routeTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return "unmatched"
}

// MetricsHandler serves the registry in the Prometheus exposition format
func MetricsHandler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
