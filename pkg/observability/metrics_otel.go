package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// InstrumentationName names the otel tracer and meter of this module
const InstrumentationName = "github.com/platinummonkey/apidelta"

// OTelMetrics mirrors the comparison metrics through the global otel meter provider
type OTelMetrics struct {
	comparisons        metric.Int64Counter
	comparisonDuration metric.Float64Histogram
	deltas             metric.Int64Counter
	cacheLookups       metric.Int64Counter
}

// NewOTelMetrics creates the instruments on the global meter provider
func NewOTelMetrics() (*OTelMetrics, error) {
	meter := otel.Meter(InstrumentationName)

	m := &OTelMetrics{}
	var err error

	m.comparisons, err = meter.Int64Counter(
		"apidelta.comparisons",
		metric.WithDescription("Comparisons by scope and outcome"),
		metric.WithUnit("{comparison}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create comparisons counter: %w", err)
	}

	m.comparisonDuration, err = meter.Float64Histogram(
		"apidelta.comparison.duration",
		metric.WithDescription("Comparison duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create comparison duration histogram: %w", err)
	}

	m.deltas, err = meter.Int64Counter(
		"apidelta.deltas",
		metric.WithDescription("Leaf deltas by kind"),
		metric.WithUnit("{delta}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create deltas counter: %w", err)
	}

	m.cacheLookups, err = meter.Int64Counter(
		"apidelta.cache.lookups",
		metric.WithDescription("Report cache lookups by tier and result"),
		metric.WithUnit("{lookup}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create cache lookups counter: %w", err)
	}

	return m, nil
}

// RecordComparison records one finished comparison
func (m *OTelMetrics) RecordComparison(ctx context.Context, scope string, compatible bool, duration time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("scope", scope),
		attribute.Bool("compatible", compatible),
	)
	m.comparisons.Add(ctx, 1, attrs)
	m.comparisonDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attribute.String("scope", scope)))
}

// RecordDeltas adds leaf counts keyed by delta kind
func (m *OTelMetrics) RecordDeltas(ctx context.Context, byKind map[string]int) {
	if m == nil {
		return
	}
	for kind, n := range byKind {
		m.deltas.Add(ctx, int64(n), metric.WithAttributes(attribute.String("kind", kind)))
	}
}

// RecordCacheLookup records a hit or miss on a cache tier
func (m *OTelMetrics) RecordCacheLookup(ctx context.Context, tier string, hit bool) {
	if m == nil {
		return
	}
	m.cacheLookups.Add(ctx, 1, metric.WithAttributes(
		attribute.String("tier", tier),
		attribute.Bool("hit", hit),
	))
}
