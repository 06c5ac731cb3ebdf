package comparator

import (
	"context"
	"strings"

	"github.com/tidwall/btree"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/platinummonkey/apidelta/pkg/delta"
	"github.com/platinummonkey/apidelta/pkg/model"
)

func visible(t *model.TypeRoot, comp *model.Component, mask model.Visibility) bool {
	return comp.Exposes(t, mask)
}

func isAPI(t *model.TypeRoot, comp *model.Component) bool {
	return comp.TypeVisibility(t.Name) == model.VisibilityAPI && t.Modifiers.IsExposed()
}

func typeLeaf(kind delta.Kind, t *model.TypeRoot, comp *model.Component) *delta.Delta {
	return delta.New(delta.Params{
		Kind:        kind,
		Flag:        delta.FlagAPIType,
		Element:     delta.ElementComponent,
		Key:         t.Name,
		TypeName:    t.Name,
		ComponentID: comp.ID,
		Modifiers:   t.Modifiers,
		Arguments:   []string{t.Name, comp.ID},
	})
}

func (c *Comparator) compareTypes(ctx context.Context, bt, at *model.TypeRoot, bc, ac *model.Component, bb, ab *model.Baseline, opts Options) (*delta.Delta, error) {
	mask := opts.mask()

	switch {
	case bt == nil:
		if visible(at, ac, mask) {
			return typeLeaf(delta.Added, at, ac), nil
		}
		return delta.NoDelta, nil
	case at == nil:
		if visible(bt, bc, mask) {
			return typeLeaf(delta.Removed, bt, bc), nil
		}
		return delta.NoDelta, nil
	}

	beforeVisible, afterVisible := visible(bt, bc, mask), visible(at, ac, mask)
	switch {
	case !beforeVisible && !afterVisible:
		return delta.NoDelta, nil
	case !beforeVisible:
		return typeLeaf(delta.Added, at, ac), nil
	case !afterVisible:
		// the type left the compared surface; to clients it is gone
		return typeLeaf(delta.Removed, bt, bc), nil
	case mask.Includes(model.VisibilityAPI) && isAPI(bt, bc) && !isAPI(at, ac):
		return delta.New(delta.Params{
			Kind:        delta.Changed,
			Flag:        delta.FlagTypeVisibility,
			Element:     delta.ElementForKind(bt.Kind),
			Key:         bt.Name,
			TypeName:    bt.Name,
			ComponentID: ac.ID,
			Modifiers:   at.Modifiers,
			Arguments:   []string{bt.Name, ac.ID},
		}), nil
	}

	if bt.Fingerprint() == at.Fingerprint() {
		if c.metrics != nil {
			c.metrics.TypesSkippedTotal.Inc()
		}
		return delta.NoDelta, nil
	}
	if c.metrics != nil {
		c.metrics.TypesComparedTotal.Inc()
	}

	_, span := c.tracer.Start(ctx, "apidelta.CompareType", trace.WithAttributes(
		attribute.String("apidelta.type", at.Name),
		attribute.String("apidelta.component", ac.ID),
	))
	defer span.End()

	td := &typeDiff{
		before:      bt,
		after:       at,
		component:   ac.ID,
		mask:        mask,
		beforeTypes: hierarchy{baseline: bb},
		afterTypes:  hierarchy{baseline: ab},
	}
	children, err := td.run()
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	return delta.NewContainer(delta.Params{
		Element:           delta.ElementForKind(at.Kind),
		Key:               at.Name,
		TypeName:          at.Name,
		ComponentID:       ac.ID,
		Modifiers:         at.Modifiers,
		PreviousModifiers: bt.Modifiers,
		Arguments:         []string{at.Name},
	}, children...), nil
}

// typeDiff holds the state of one structural type comparison
type typeDiff struct {
	before, after *model.TypeRoot
	component     string
	mask          model.Visibility
	beforeTypes   hierarchy
	afterTypes    hierarchy
	out           []*delta.Delta
}

func (d *typeDiff) element() delta.ElementType {
	return delta.ElementForKind(d.after.Kind)
}

// changed records a type level CHANGED leaf
func (d *typeDiff) changed(flag delta.Flag, args ...string) {
	d.out = append(d.out, delta.New(delta.Params{
		Kind:              delta.Changed,
		Flag:              flag,
		Element:           d.element(),
		Key:               d.after.Name,
		TypeName:          d.after.Name,
		ComponentID:       d.component,
		Modifiers:         d.after.Modifiers,
		PreviousModifiers: d.before.Modifiers,
		Arguments:         append([]string{d.after.Name}, args...),
	}))
}

func (d *typeDiff) run() ([]*delta.Delta, error) {
	bt, at := d.before, d.after

	if bt.Kind != at.Kind {
		d.changed(delta.FlagTypeConversion, bt.Kind.String(), at.Kind.String())
		return d.out, nil
	}

	d.typeModifiers()
	if err := d.superclasses(); err != nil {
		return nil, err
	}
	if err := d.superinterfaces(); err != nil {
		return nil, err
	}
	if err := d.members(bt.Fields, at.Fields, true); err != nil {
		return nil, err
	}
	if err := d.members(bt.Methods, at.Methods, false); err != nil {
		return nil, err
	}
	return d.out, nil
}

func (d *typeDiff) typeModifiers() {
	bm, am := d.before.Modifiers, d.after.Modifiers

	if flag, ok := toggle(bm.IsFinal(), am.IsFinal(), delta.FlagNonFinalToFinal, delta.FlagFinalToNonFinal); ok && d.after.Kind != model.KindEnum {
		d.changed(flag)
	}
	if flag, ok := toggle(bm.IsAbstract(), am.IsAbstract(), delta.FlagNonAbstractToAbstract, delta.FlagAbstractToNonAbstract); ok && d.after.Kind == model.KindClass {
		d.changed(flag)
	}
	// static only means something for nested types
	if flag, ok := toggle(bm.IsStatic(), am.IsStatic(), delta.FlagNonStaticToStatic, delta.FlagStaticToNonStatic); ok && strings.Contains(d.after.SimpleName(), "$") {
		d.changed(flag)
	}
	if flag, ok := accessChange(bm.Access(), am.Access()); ok {
		d.changed(flag, bm.Access().String(), am.Access().String())
	}
	if kind, ok := deprecation(d.before.Deprecated, d.after.Deprecated); ok {
		d.out = append(d.out, delta.New(delta.Params{
			Kind:        kind,
			Flag:        delta.FlagDeprecation,
			Element:     d.element(),
			Key:         d.after.Name,
			TypeName:    d.after.Name,
			ComponentID: d.component,
			Modifiers:   am,
			Arguments:   []string{d.after.Name},
		}))
	}
}

func (d *typeDiff) superclasses() error {
	before, err := d.beforeTypes.superclasses(d.before)
	if err != nil {
		return err
	}
	after, err := d.afterTypes.superclasses(d.after)
	if err != nil {
		return err
	}
	d.setChange(newSet(before...), newSet(after...), delta.FlagExpandedSuperclassSet, delta.FlagContractedSuperclassSet)
	return nil
}

func (d *typeDiff) superinterfaces() error {
	before, err := d.beforeTypes.superinterfaces(d.before)
	if err != nil {
		return err
	}
	after, err := d.afterTypes.superinterfaces(d.after)
	if err != nil {
		return err
	}
	d.setChange(before, after, delta.FlagExpandedSuperinterfacesSet, delta.FlagContractedSuperinterfacesSet)
	return nil
}

// setChange reports a contracted set when anything was lost, else an expanded one when
// anything was gained
func (d *typeDiff) setChange(before, after *btree.Set[string], expanded, contracted delta.Flag) {
	if lost := difference(before, after); len(lost) > 0 {
		d.changed(contracted, strings.Join(lost, ","))
		return
	}
	if gained := difference(after, before); len(gained) > 0 {
		d.changed(expanded, strings.Join(gained, ","))
	}
}

func toggle(before, after bool, on, off delta.Flag) (delta.Flag, bool) {
	switch {
	case !before && after:
		return on, true
	case before && !after:
		return off, true
	}
	return delta.FlagNone, false
}

func accessChange(before, after model.Access) (delta.Flag, bool) {
	switch {
	case after > before:
		return delta.FlagIncreaseAccess, true
	case after < before:
		return delta.FlagDecreaseAccess, true
	}
	return delta.FlagNone, false
}

func deprecation(before, after bool) (delta.Kind, bool) {
	switch {
	case !before && after:
		return delta.Added, true
	case before && !after:
		return delta.Removed, true
	}
	return 0, false
}
