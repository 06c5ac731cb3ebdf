package comparator

import (
	"github.com/platinummonkey/apidelta/pkg/delta"
	"github.com/platinummonkey/apidelta/pkg/model"
)

func memberFlag(m model.Member) delta.Flag {
	switch delta.ElementForMember(m) {
	case delta.ElementConstructor:
		return delta.FlagConstructor
	case delta.ElementMethod:
		return delta.FlagMethod
	default:
		return delta.FlagField
	}
}

func memberModifiers(m model.Member) model.Modifiers {
	if m.HasDefault {
		return m.Modifiers | model.ModDefault
	}
	return m.Modifiers
}

func indexMembers(members []model.Member) (map[string]model.Member, []string) {
	index := make(map[string]model.Member, len(members))
	keys := make([]string, 0, len(members))
	for _, m := range members {
		index[m.Key()] = m
		keys = append(keys, m.Key())
	}
	return index, keys
}

func (d *typeDiff) keep(m model.Member) bool {
	return d.mask.Includes(model.VisibilityPrivate) || m.Modifiers.IsExposed()
}

// members diffs one member list by key. Members filtered out on both sides are ignored.
func (d *typeDiff) members(before, after []model.Member, fields bool) error {
	bm, bkeys := indexMembers(before)
	am, akeys := indexMembers(after)

	for _, key := range union(bkeys, akeys) {
		b, inBefore := bm[key]
		a, inAfter := am[key]

		switch {
		case inBefore && !inAfter:
			if !d.keep(b) {
				continue
			}
			super, err := d.movedUp(b, fields)
			if err != nil {
				return err
			}
			if super != "" {
				flag := delta.FlagMethodMovedUp
				if fields {
					flag = delta.FlagFieldMovedUp
				}
				d.memberChanged(flag, b, b, super)
				continue
			}
			d.memberLeaf(delta.Removed, b)
		case !inBefore && inAfter:
			if d.keep(a) {
				d.memberLeaf(delta.Added, a)
			}
		default:
			if d.keep(b) || d.keep(a) {
				d.memberChanges(b, a, fields)
			}
		}
	}
	return nil
}

// movedUp returns the supertype in the after baseline that still provides m, or "".
// Constructors are never inherited.
func (d *typeDiff) movedUp(m model.Member, field bool) (string, error) {
	if m.IsConstructor() {
		return "", nil
	}
	lookup := func(t *model.TypeRoot) *model.Member {
		if field {
			return t.Field(m.Name)
		}
		return t.Method(m.Key())
	}
	keep := func(found model.Member) bool {
		return d.keep(found) && found.Modifiers.IsStatic() == m.Modifiers.IsStatic()
	}
	return d.afterTypes.inherited(d.after, lookup, keep)
}

// memberLeaf records an added or removed member at the level of the enclosing type
func (d *typeDiff) memberLeaf(kind delta.Kind, m model.Member) {
	d.out = append(d.out, delta.New(delta.Params{
		Kind:               kind,
		Flag:               memberFlag(m),
		Element:            d.element(),
		Key:                m.Key(),
		TypeName:           d.after.Name,
		ComponentID:        d.component,
		Modifiers:          memberModifiers(m),
		EnclosingModifiers: d.after.Modifiers,
		Arguments:          []string{d.after.Name, m.Key()},
	}))
}

func (d *typeDiff) memberDelta(kind delta.Kind, flag delta.Flag, b, a model.Member, args ...string) {
	d.out = append(d.out, delta.New(delta.Params{
		Kind:               kind,
		Flag:               flag,
		Element:            delta.ElementForMember(a),
		Key:                a.Key(),
		TypeName:           d.after.Name,
		ComponentID:        d.component,
		Modifiers:          memberModifiers(a),
		PreviousModifiers:  memberModifiers(b),
		EnclosingModifiers: d.after.Modifiers,
		Arguments:          append([]string{d.after.Name, a.Key()}, args...),
	}))
}

func (d *typeDiff) memberChanged(flag delta.Flag, b, a model.Member, args ...string) {
	d.memberDelta(delta.Changed, flag, b, a, args...)
}

func (d *typeDiff) memberChanges(b, a model.Member, field bool) {
	bm, am := b.Modifiers, a.Modifiers

	if field {
		if b.Type != a.Type {
			d.memberChanged(delta.FlagType, b, a, b.Type, a.Type)
		}
		if b.Value != a.Value {
			d.memberChanged(delta.FlagValue, b, a, b.Value, a.Value)
		}
		if flag, ok := toggle(bm.Has(model.ModTransient), am.Has(model.ModTransient), delta.FlagNonTransientToTransient, delta.FlagTransientToNonTransient); ok {
			d.memberChanged(flag, b, a)
		}
	} else if flag, ok := toggle(bm.IsAbstract(), am.IsAbstract(), delta.FlagNonAbstractToAbstract, delta.FlagAbstractToNonAbstract); ok {
		d.memberChanged(flag, b, a)
	}

	if flag, ok := toggle(bm.IsFinal(), am.IsFinal(), delta.FlagNonFinalToFinal, delta.FlagFinalToNonFinal); ok {
		d.memberChanged(flag, b, a)
	}
	if flag, ok := toggle(bm.IsStatic(), am.IsStatic(), delta.FlagNonStaticToStatic, delta.FlagStaticToNonStatic); ok {
		d.memberChanged(flag, b, a)
	}
	if flag, ok := accessChange(bm.Access(), am.Access()); ok {
		d.memberChanged(flag, b, a, bm.Access().String(), am.Access().String())
	}
	if kind, ok := deprecation(b.Deprecated, a.Deprecated); ok {
		d.memberDelta(kind, delta.FlagDeprecation, b, a)
	}

	switch {
	case !b.HasDefault && a.HasDefault:
		d.memberDelta(delta.Added, delta.FlagAnnotationDefaultValue, b, a, a.Value)
	case b.HasDefault && !a.HasDefault:
		d.memberDelta(delta.Removed, delta.FlagAnnotationDefaultValue, b, a, b.Value)
	case b.HasDefault && b.Value != a.Value:
		d.memberChanged(delta.FlagAnnotationDefaultValue, b, a, b.Value, a.Value)
	}
}
