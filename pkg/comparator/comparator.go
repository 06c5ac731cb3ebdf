package comparator

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/platinummonkey/apidelta/pkg/compatibility"
	"github.com/platinummonkey/apidelta/pkg/delta"
	"github.com/platinummonkey/apidelta/pkg/model"
	"github.com/platinummonkey/apidelta/pkg/observability"
)

var (
	// ErrInvalidArgument is returned for argument combinations that cannot be resolved
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrCanceled wraps the context error when a comparison is aborted
	ErrCanceled = errors.New("comparison canceled")
)

// Options control a single comparison
type Options struct {
	// Visibility selects the packages whose types take part. Zero means VisibilityAll.
	Visibility model.Visibility
	// IncludeMinor reports minor version changes even when Visibility has no API bit
	IncludeMinor bool
	// SkipUnchangedVersions skips the type walk of components whose version did not change
	SkipUnchangedVersions bool
}

func (o Options) mask() model.Visibility {
	if o.Visibility == 0 {
		return model.VisibilityAll
	}
	return o.Visibility
}

// Progress is reported after each component of a baseline comparison
type Progress struct {
	Component string
	Done      int
	Total     int
}

// ProgressFunc receives progress updates. It may be called from several goroutines.
type ProgressFunc func(Progress)

// Comparator computes delta trees. It holds no per-comparison state and is safe for
// concurrent use.
type Comparator struct {
	logger      *observability.Logger
	metrics     *observability.Metrics
	tracer      trace.Tracer
	progress    ProgressFunc
	concurrency int
}

// Option configures a Comparator
type Option func(*Comparator)

func WithLogger(logger *observability.Logger) Option {
	return func(c *Comparator) { c.logger = logger }
}

func WithMetrics(metrics *observability.Metrics) Option {
	return func(c *Comparator) { c.metrics = metrics }
}

func WithTracer(tracer trace.Tracer) Option {
	return func(c *Comparator) { c.tracer = tracer }
}

func WithProgress(fn ProgressFunc) Option {
	return func(c *Comparator) { c.progress = fn }
}

// WithConcurrency bounds the number of components compared at once
func WithConcurrency(n int) Option {
	return func(c *Comparator) {
		if n > 0 {
			c.concurrency = n
		}
	}
}

// New creates a Comparator
func New(opts ...Option) *Comparator {
	c := &Comparator{
		logger:      observability.NewNopLogger(),
		tracer:      observability.Tracer(),
		concurrency: runtime.GOMAXPROCS(0),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func canceled(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrCanceled, err)
	}
	return nil
}

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

// CompareBaselines compares every component of two baselines. Components present in only
// one baseline are reported as added or removed. Components present in both are compared
// concurrently and assembled in ID order.
func (c *Comparator) CompareBaselines(ctx context.Context, before, after *model.Baseline, opts Options) (*delta.Delta, error) {
	if before == nil || after == nil {
		return nil, invalid("both baselines are required")
	}

	start := time.Now()
	ctx, span := c.tracer.Start(ctx, "apidelta.CompareBaselines", trace.WithAttributes(
		attribute.String("apidelta.before", before.Name()),
		attribute.String("apidelta.after", after.Name()),
		attribute.String("apidelta.visibility", opts.mask().String()),
	))
	defer span.End()

	logger := c.logger.WithComparison(before.Name(), after.Name())
	logger.Debug("Comparing baselines")

	if err := canceled(ctx); err != nil {
		return nil, c.fail(span, "baseline", err)
	}

	ids := union(before.ComponentIDs(), after.ComponentIDs())
	results := make([]*delta.Delta, len(ids))
	var done atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for i, id := range ids {
		bc, ac := before.Component(id), after.Component(id)
		switch {
		case bc == nil:
			results[i] = componentLeaf(delta.Added, ac)
			c.report(id, &done, len(ids))
		case ac == nil:
			results[i] = componentLeaf(delta.Removed, bc)
			c.report(id, &done, len(ids))
		default:
			g.Go(func() error {
				if err := canceled(gctx); err != nil {
					return err
				}
				d, err := c.compareComponents(gctx, bc, ac, before, after, opts)
				if err != nil {
					return err
				}
				results[i] = d
				c.report(id, &done, len(ids))
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		logger.WithError(err).Warn("Baseline comparison failed")
		return nil, c.fail(span, "baseline", err)
	}

	root := delta.NewContainer(delta.Params{
		Element:   delta.ElementBaseline,
		Key:       after.Name(),
		Arguments: []string{before.Name(), after.Name()},
	}, results...)

	c.observe("baseline", root, start)
	logger.WithField("deltas", delta.Count(root)).Debug("Baselines compared")
	return root, nil
}

// CompareComponents compares two components outside of any baseline. Supertypes are
// resolved within the components themselves.
func (c *Comparator) CompareComponents(ctx context.Context, before, after *model.Component, opts Options) (*delta.Delta, error) {
	if before == nil && after == nil {
		return nil, invalid("at least one component is required")
	}
	bb, err := model.NewBaseline("before", before)
	if err != nil {
		return nil, invalid("%v", err)
	}
	ab, err := model.NewBaseline("after", after)
	if err != nil {
		return nil, invalid("%v", err)
	}
	return c.CompareComponentsInBaselines(ctx, before, after, bb, ab, opts)
}

// CompareComponentsInBaselines compares two components, resolving supertypes through the
// baselines they belong to. Either component may be nil, never both. Both baselines are
// required.
func (c *Comparator) CompareComponentsInBaselines(ctx context.Context, before, after *model.Component, beforeBaseline, afterBaseline *model.Baseline, opts Options) (*delta.Delta, error) {
	if before == nil && after == nil {
		return nil, invalid("at least one component is required")
	}
	if beforeBaseline == nil || afterBaseline == nil {
		return nil, invalid("both baselines are required")
	}
	if err := canceled(ctx); err != nil {
		return nil, err
	}

	switch {
	case before == nil:
		return componentLeaf(delta.Added, after), nil
	case after == nil:
		return componentLeaf(delta.Removed, before), nil
	}

	start := time.Now()
	d, err := c.compareComponents(ctx, before, after, beforeBaseline, afterBaseline, opts)
	if err != nil {
		return nil, err
	}
	c.observe("component", d, start)
	return d, nil
}

// CompareComponentToBaseline compares component with the component of the same ID in
// reference. A component unknown to reference is reported as added.
func (c *Comparator) CompareComponentToBaseline(ctx context.Context, component *model.Component, reference *model.Baseline, opts Options) (*delta.Delta, error) {
	if component == nil || reference == nil {
		return nil, invalid("component and reference baseline are required")
	}
	previous := reference.Component(component.ID)
	if previous == nil {
		return componentLeaf(delta.Added, component), nil
	}

	after, err := overlay(reference, component)
	if err != nil {
		return nil, invalid("%v", err)
	}
	return c.CompareComponentsInBaselines(ctx, previous, component, reference, after, opts)
}

// CompareTypes compares two versions of a type. A nil type means the type was added or
// removed. The component of every present type and both baselines are required.
func (c *Comparator) CompareTypes(ctx context.Context, before, after *model.TypeRoot, beforeComponent, afterComponent *model.Component, beforeBaseline, afterBaseline *model.Baseline, opts Options) (*delta.Delta, error) {
	if before == nil && after == nil {
		return nil, invalid("at least one type is required")
	}
	if before != nil && beforeComponent == nil {
		return nil, invalid("type %s has no component", before.Name)
	}
	if after != nil && afterComponent == nil {
		return nil, invalid("type %s has no component", after.Name)
	}
	if beforeBaseline == nil || afterBaseline == nil {
		return nil, invalid("both baselines are required")
	}
	if err := canceled(ctx); err != nil {
		return nil, err
	}

	start := time.Now()
	d, err := c.compareTypes(ctx, before, after, beforeComponent, afterComponent, beforeBaseline, afterBaseline, opts)
	if err != nil {
		return nil, err
	}
	c.observe("type", d, start)
	return d, nil
}

// CompareTypeToComponent compares typeRoot, taken from component, with the type of the
// same name in reference
func (c *Comparator) CompareTypeToComponent(ctx context.Context, typeRoot *model.TypeRoot, reference, component *model.Component, beforeBaseline, afterBaseline *model.Baseline, opts Options) (*delta.Delta, error) {
	if typeRoot == nil || reference == nil || component == nil {
		return nil, invalid("type, reference component and component are required")
	}
	previous, err := reference.FindTypeRoot(typeRoot.Name)
	if err != nil {
		return nil, err
	}
	if previous == nil {
		return c.CompareTypes(ctx, nil, typeRoot, nil, component, beforeBaseline, afterBaseline, opts)
	}
	return c.CompareTypes(ctx, previous, typeRoot, reference, component, beforeBaseline, afterBaseline, opts)
}

func componentLeaf(kind delta.Kind, comp *model.Component) *delta.Delta {
	return delta.New(delta.Params{
		Kind:        kind,
		Flag:        delta.FlagAPIComponent,
		Element:     delta.ElementBaseline,
		Key:         comp.ID,
		ComponentID: comp.ID,
		Arguments:   []string{comp.ID, comp.Version.String()},
	})
}

// overlay returns reference with component replacing the component of the same ID
func overlay(reference *model.Baseline, component *model.Component) (*model.Baseline, error) {
	comps := []*model.Component{component}
	for _, other := range reference.Components() {
		if other.ID != component.ID {
			comps = append(comps, other)
		}
	}
	return model.NewBaseline(reference.Name(), comps...)
}

func (c *Comparator) report(id string, done *atomic.Int64, total int) {
	n := done.Add(1)
	if c.progress != nil {
		c.progress(Progress{Component: id, Done: int(n), Total: total})
	}
}

func (c *Comparator) fail(span trace.Span, scope string, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	if c.metrics != nil {
		result := "error"
		if errors.Is(err, ErrCanceled) {
			result = "canceled"
		}
		c.metrics.ComparisonsTotal.WithLabelValues(scope, result).Inc()
	}
	return err
}

func (c *Comparator) observe(scope string, d *delta.Delta, start time.Time) {
	if c.metrics == nil {
		return
	}
	result := "compatible"
	if !compatibility.IsCompatible(d) {
		result = "incompatible"
	}
	c.metrics.ComparisonsTotal.WithLabelValues(scope, result).Inc()
	c.metrics.ComparisonDuration.WithLabelValues(scope).Observe(time.Since(start).Seconds())
	for _, leaf := range delta.Leaves(d) {
		c.metrics.DeltasTotal.WithLabelValues(leaf.Kind().String(), fmt.Sprint(compatibility.IsCompatible(leaf))).Inc()
	}
}
