package comparator

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/platinummonkey/apidelta/pkg/delta"
	"github.com/platinummonkey/apidelta/pkg/model"
)

func (c *Comparator) compareComponents(ctx context.Context, before, after *model.Component, bb, ab *model.Baseline, opts Options) (*delta.Delta, error) {
	ctx, span := c.tracer.Start(ctx, "apidelta.CompareComponent", trace.WithAttributes(
		attribute.String("apidelta.component", after.ID),
		attribute.String("apidelta.version.before", before.Version.String()),
		attribute.String("apidelta.version.after", after.Version.String()),
	))
	defer span.End()

	if c.metrics != nil {
		c.metrics.ComponentsComparedTotal.Inc()
	}

	id := after.ID
	var children []*delta.Delta
	children = append(children, versionDeltas(before, after, opts)...)
	children = append(children, environmentDeltas(before, after)...)

	if opts.SkipUnchangedVersions && before.Version == after.Version {
		c.logger.WithComponent(id).Debug("Version unchanged, skipping types")
	} else {
		typeDeltas, err := c.compareComponentTypes(ctx, before, after, bb, ab, opts)
		if err != nil {
			span.RecordError(err)
			return nil, err
		}
		children = append(children, typeDeltas...)
	}

	return delta.NewContainer(delta.Params{
		Element:     delta.ElementComponent,
		Key:         id,
		ComponentID: id,
		Arguments:   []string{id, before.Version.String(), after.Version.String()},
	}, children...), nil
}

func versionDeltas(before, after *model.Component, opts Options) []*delta.Delta {
	var flag delta.Flag
	switch {
	case before.Version.Major != after.Version.Major:
		flag = delta.FlagMajorVersion
	case before.Version.Minor != after.Version.Minor && (opts.IncludeMinor || opts.mask().Includes(model.VisibilityAPI)):
		flag = delta.FlagMinorVersion
	default:
		return nil
	}
	return []*delta.Delta{delta.New(delta.Params{
		Kind:        delta.Changed,
		Flag:        flag,
		Element:     delta.ElementComponent,
		Key:         after.ID,
		ComponentID: after.ID,
		Arguments:   []string{after.ID, before.Version.String(), after.Version.String()},
	})}
}

// environmentDeltas reports the symmetric difference of the execution environment sets.
// A changed environment therefore shows up as an added and a removed entry.
func environmentDeltas(before, after *model.Component) []*delta.Delta {
	var out []*delta.Delta
	beforeSet, afterSet := newSet(before.ExecutionEnvironments...), newSet(after.ExecutionEnvironments...)
	for _, ee := range union(before.ExecutionEnvironments, after.ExecutionEnvironments) {
		var kind delta.Kind
		switch {
		case !beforeSet.Contains(ee):
			kind = delta.Added
		case !afterSet.Contains(ee):
			kind = delta.Removed
		default:
			continue
		}
		out = append(out, delta.New(delta.Params{
			Kind:        kind,
			Flag:        delta.FlagExecutionEnvironment,
			Element:     delta.ElementComponent,
			Key:         ee,
			ComponentID: after.ID,
			Arguments:   []string{ee, after.ID},
		}))
	}
	return out
}

func (c *Comparator) compareComponentTypes(ctx context.Context, before, after *model.Component, bb, ab *model.Baseline, opts Options) ([]*delta.Delta, error) {
	beforeNames, err := before.TypeNames()
	if err != nil {
		return nil, err
	}
	afterNames, err := after.TypeNames()
	if err != nil {
		return nil, err
	}

	var out []*delta.Delta
	for _, name := range union(beforeNames, afterNames) {
		if err := canceled(ctx); err != nil {
			return nil, err
		}
		bt, err := before.FindTypeRoot(name)
		if err != nil {
			return nil, err
		}
		at, err := after.FindTypeRoot(name)
		if err != nil {
			return nil, err
		}
		d, err := c.compareTypes(ctx, bt, at, before, after, bb, ab, opts)
		if err != nil {
			return nil, err
		}
		if !d.IsEmpty() {
			out = append(out, d)
		}
	}
	return out, nil
}
