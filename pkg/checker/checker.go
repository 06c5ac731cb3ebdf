package checker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/platinummonkey/apidelta/pkg/cache"
	"github.com/platinummonkey/apidelta/pkg/comparator"
	"github.com/platinummonkey/apidelta/pkg/delta"
	"github.com/platinummonkey/apidelta/pkg/descriptor"
	"github.com/platinummonkey/apidelta/pkg/model"
	"github.com/platinummonkey/apidelta/pkg/observability"
	"github.com/platinummonkey/apidelta/pkg/report"
	"github.com/platinummonkey/apidelta/pkg/storage"
)

// ErrNoStore is returned by operations that resolve baselines by name when the checker
// was built without a store
var ErrNoStore = errors.New("no baseline store configured")

// Checker runs comparisons end to end: resolve, build, compare, analyse, persist
type Checker struct {
	store      storage.Store
	loader     *descriptor.Loader
	comparator *comparator.Comparator
	cache      cache.ReportCache
	metrics    *observability.Metrics
	otel       *observability.OTelMetrics
	logger     *observability.Logger
	notifier   ReportNotifier
}

// ReportNotifier is told about every newly computed report. Cache hits are not announced.
type ReportNotifier interface {
	NotifyReport(ctx context.Context, r *report.Report)
}

// Option configures a Checker
type Option func(*Checker)

// WithStore resolves baselines by name and persists every report
func WithStore(store storage.Store) Option {
	return func(c *Checker) { c.store = store }
}

// WithCache answers repeated comparisons from cache
func WithCache(rc cache.ReportCache) Option {
	return func(c *Checker) { c.cache = rc }
}

// WithMetrics records version problems in the Prometheus metrics
func WithMetrics(m *observability.Metrics) Option {
	return func(c *Checker) { c.metrics = m }
}

// WithOTelMetrics mirrors comparison outcomes to OpenTelemetry
func WithOTelMetrics(m *observability.OTelMetrics) Option {
	return func(c *Checker) { c.otel = m }
}

// WithLogger sets the logger
func WithLogger(l *observability.Logger) Option {
	return func(c *Checker) { c.logger = l }
}

// WithNotifier announces new reports, e.g. to webhooks
func WithNotifier(n ReportNotifier) Option {
	return func(c *Checker) { c.notifier = n }
}

// WithLoader shares a descriptor loader, and with it the converted type cache
func WithLoader(l *descriptor.Loader) Option {
	return func(c *Checker) { c.loader = l }
}

// New creates a Checker around cmp
func New(cmp *comparator.Comparator, opts ...Option) (*Checker, error) {
	c := &Checker{comparator: cmp, logger: observability.NewNopLogger()}
	for _, opt := range opts {
		opt(c)
	}
	if c.comparator == nil {
		c.comparator = comparator.New(comparator.WithLogger(c.logger), comparator.WithMetrics(c.metrics))
	}
	if c.loader == nil {
		loader, err := descriptor.NewLoader(descriptor.DefaultCacheSize)
		if err != nil {
			return nil, err
		}
		c.loader = loader
	}
	return c, nil
}

// Loader returns the descriptor loader
func (c *Checker) Loader() *descriptor.Loader {
	return c.loader
}

// Store returns the configured store, nil when none
func (c *Checker) Store() storage.Store {
	return c.store
}

func (c *Checker) compareOptions(opts report.Options) comparator.Options {
	return comparator.Options{Visibility: opts.Visibility, IncludeMinor: opts.IncludeMinor}
}

// CompareBaselines compares two built baselines and returns the report. Identical inputs
// are served from cache when one is configured. New reports are persisted when a store is
// configured.
func (c *Checker) CompareBaselines(ctx context.Context, before, after *model.Baseline, opts report.Options) (*report.Report, error) {
	if before == nil || after == nil {
		return nil, fmt.Errorf("%w: both baselines are required", comparator.ErrInvalidArgument)
	}
	opts.Component = ""
	return c.run(ctx, "baseline", before.Name(), after.Name(), opts,
		func() (string, string, error) {
			return fingerprints(before.Fingerprint, after.Fingerprint)
		},
		func(ctx context.Context) (*delta.Delta, error) {
			return c.comparator.CompareBaselines(ctx, before, after, c.compareOptions(opts))
		})
}

// CompareDocuments builds both documents and compares them
func (c *Checker) CompareDocuments(ctx context.Context, before, after *descriptor.BaselineDocument, opts report.Options) (*report.Report, error) {
	bb, err := c.loader.Build(before)
	if err != nil {
		return nil, fmt.Errorf("before: %w", err)
	}
	ab, err := c.loader.Build(after)
	if err != nil {
		return nil, fmt.Errorf("after: %w", err)
	}
	return c.CompareBaselines(ctx, bb, ab, opts)
}

// CompareByName compares two stored baselines
func (c *Checker) CompareByName(ctx context.Context, beforeName, afterName string, opts report.Options) (*report.Report, error) {
	before, err := c.Resolve(ctx, beforeName)
	if err != nil {
		return nil, err
	}
	after, err := c.Resolve(ctx, afterName)
	if err != nil {
		return nil, err
	}
	return c.CompareBaselines(ctx, before, after, opts)
}

// CompareComponentByName compares one component of a stored baseline with the component
// of the same ID in the reference baseline named against
func (c *Checker) CompareComponentByName(ctx context.Context, baselineName, componentID, against string, opts report.Options) (*report.Report, error) {
	source, err := c.Resolve(ctx, baselineName)
	if err != nil {
		return nil, err
	}
	component := source.Component(componentID)
	if component == nil {
		return nil, fmt.Errorf("component %s in baseline %s: %w", componentID, baselineName, storage.ErrNotFound)
	}
	reference, err := c.Resolve(ctx, against)
	if err != nil {
		return nil, err
	}

	opts.Component = componentID
	return c.run(ctx, "component", against, baselineName, opts,
		func() (string, string, error) {
			return fingerprints(reference.Fingerprint, func() (string, error) {
				fp, err := component.Fingerprint()
				return "component:" + fp, err
			})
		},
		func(ctx context.Context) (*delta.Delta, error) {
			return c.comparator.CompareComponentToBaseline(ctx, component, reference, c.compareOptions(opts))
		})
}

// Resolve loads and builds a stored baseline
func (c *Checker) Resolve(ctx context.Context, name string) (*model.Baseline, error) {
	if c.store == nil {
		return nil, ErrNoStore
	}
	doc, err := c.store.GetBaseline(ctx, name)
	if err != nil {
		return nil, err
	}
	return c.loader.Build(doc)
}

func fingerprints(before, after func() (string, error)) (string, string, error) {
	bfp, err := before()
	if err != nil {
		return "", "", err
	}
	afp, err := after()
	if err != nil {
		return "", "", err
	}
	return bfp, afp, nil
}

func (c *Checker) run(
	ctx context.Context,
	scope, before, after string,
	opts report.Options,
	fps func() (string, string, error),
	compare func(context.Context) (*delta.Delta, error),
) (*report.Report, error) {
	logger := c.logger.WithComparison(before, after)
	if opts.Component != "" {
		logger = logger.WithComponent(opts.Component)
	}

	var key string
	if c.cache != nil {
		bfp, afp, err := fps()
		if err != nil {
			return nil, fmt.Errorf("failed to fingerprint baselines: %w", err)
		}
		key = cache.Key(cache.Subject{
			Before:    before,
			After:     after,
			BeforeFP:  bfp,
			AfterFP:   afp,
			Component: opts.Component,
		}, opts.Visibility, opts.IncludeMinor)
		if cached, err := c.cache.Get(ctx, key); err == nil {
			c.otel.RecordCacheLookup(ctx, "report", true)
			logger.WithField("report", cached.ID).Debug("Comparison served from cache")
			return cached, nil
		}
		c.otel.RecordCacheLookup(ctx, "report", false)
	}

	start := time.Now()
	d, err := compare(ctx)
	if err != nil {
		logger.WithError(err).Warn("Comparison failed")
		return nil, err
	}
	elapsed := time.Since(start)

	r := report.New(before, after, opts, d, elapsed)
	c.record(ctx, scope, r)

	if c.store != nil {
		if err := c.store.SaveReport(ctx, r); err != nil {
			return nil, fmt.Errorf("failed to save report: %w", err)
		}
	}
	if c.cache != nil {
		if err := c.cache.Set(ctx, key, r); err != nil {
			logger.WithError(err).Warn("Failed to cache report")
		}
	}

	if c.notifier != nil {
		c.notifier.NotifyReport(ctx, r)
	}

	logger.WithFields(map[string]interface{}{
		"report":     r.ID,
		"compatible": r.Result.Compatible,
		"passed":     r.Passed(),
		"deltas":     delta.Count(d),
		"duration":   elapsed.String(),
	}).Info("Comparison finished")
	return r, nil
}

func (c *Checker) record(ctx context.Context, scope string, r *report.Report) {
	if c.metrics != nil {
		for _, p := range r.VersionProblems {
			c.metrics.VersionProblemsTotal.WithLabelValues(p.Rule).Inc()
		}
	}
	if c.otel != nil {
		c.otel.RecordComparison(ctx, scope, r.Result.Compatible, r.Duration)
		byKind := map[string]int{}
		for _, leaf := range delta.Leaves(r.Delta) {
			byKind[leaf.Kind().String()]++
		}
		c.otel.RecordDeltas(ctx, byKind)
	}
}
