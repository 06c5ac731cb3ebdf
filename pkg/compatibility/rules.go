package compatibility

import (
	"github.com/platinummonkey/apidelta/pkg/delta"
	"github.com/platinummonkey/apidelta/pkg/model"
)

// anyElement matches every element type in a rule key
const anyElement delta.ElementType = 0

type ruleKey struct {
	kind    delta.Kind
	flag    delta.Flag
	element delta.ElementType
}

// rules is the fixed compatibility table. Element specific entries win over anyElement.
var rules = map[ruleKey]bool{
	{delta.Added, delta.FlagAPIComponent, delta.ElementBaseline}:   true,
	{delta.Removed, delta.FlagAPIComponent, delta.ElementBaseline}: false,

	{delta.Added, delta.FlagExecutionEnvironment, delta.ElementComponent}:   true,
	{delta.Removed, delta.FlagExecutionEnvironment, delta.ElementComponent}: true,
	{delta.Changed, delta.FlagMajorVersion, delta.ElementComponent}:         true,
	{delta.Changed, delta.FlagMinorVersion, delta.ElementComponent}:         true,
	{delta.Added, delta.FlagAPIType, delta.ElementComponent}:                true,
	{delta.Removed, delta.FlagAPIType, delta.ElementComponent}:              false,

	{delta.Changed, delta.FlagTypeVisibility, anyElement}: false,
	{delta.Changed, delta.FlagTypeConversion, anyElement}: false,

	{delta.Added, delta.FlagField, anyElement}:           true,
	{delta.Removed, delta.FlagField, anyElement}:         false,
	{delta.Added, delta.FlagMethod, anyElement}:          true,
	{delta.Removed, delta.FlagMethod, anyElement}:        false,
	{delta.Added, delta.FlagConstructor, anyElement}:     true,
	{delta.Removed, delta.FlagConstructor, anyElement}:   false,
	{delta.Changed, delta.FlagMethodMovedUp, anyElement}: true,
	{delta.Changed, delta.FlagFieldMovedUp, anyElement}:  true,

	{delta.Changed, delta.FlagExpandedSuperclassSet, anyElement}:        true,
	{delta.Changed, delta.FlagContractedSuperclassSet, anyElement}:      false,
	{delta.Changed, delta.FlagExpandedSuperinterfacesSet, anyElement}:   true,
	{delta.Changed, delta.FlagContractedSuperinterfacesSet, anyElement}: false,

	{delta.Changed, delta.FlagNonFinalToFinal, anyElement}:         false,
	{delta.Changed, delta.FlagFinalToNonFinal, anyElement}:         true,
	{delta.Changed, delta.FlagNonAbstractToAbstract, anyElement}:   false,
	{delta.Changed, delta.FlagAbstractToNonAbstract, anyElement}:   true,
	{delta.Changed, delta.FlagNonStaticToStatic, anyElement}:       false,
	{delta.Changed, delta.FlagStaticToNonStatic, anyElement}:       false,
	{delta.Changed, delta.FlagIncreaseAccess, anyElement}:          true,
	{delta.Changed, delta.FlagDecreaseAccess, anyElement}:          false,
	{delta.Changed, delta.FlagNonTransientToTransient, anyElement}: true,
	{delta.Changed, delta.FlagTransientToNonTransient, anyElement}: true,

	{delta.Changed, delta.FlagType, delta.ElementField}:  false,
	{delta.Changed, delta.FlagValue, delta.ElementField}: false,

	{delta.Added, delta.FlagDeprecation, anyElement}:   true,
	{delta.Removed, delta.FlagDeprecation, anyElement}: true,

	{delta.Added, delta.FlagAnnotationDefaultValue, anyElement}:   true,
	{delta.Changed, delta.FlagAnnotationDefaultValue, anyElement}: true,
	{delta.Removed, delta.FlagAnnotationDefaultValue, anyElement}: false,
}

// IsCompatible reports whether a leaf delta preserves binary compatibility for existing
// clients. Container nodes are compatible when all their leaves are.
func IsCompatible(d *delta.Delta) bool {
	if d.IsEmpty() {
		return true
	}
	if !d.IsLeaf() {
		for _, leaf := range delta.Leaves(d) {
			if !IsCompatible(leaf) {
				return false
			}
		}
		return true
	}

	if refined, ok := refine(d); ok {
		return refined
	}
	if v, ok := rules[ruleKey{d.Kind(), d.Flag(), d.Element()}]; ok {
		return v
	}
	if v, ok := rules[ruleKey{d.Kind(), d.Flag(), anyElement}]; ok {
		return v
	}
	return d.Kind() == delta.Added
}

// refine handles the entries that depend on the modifiers carried by the delta
func refine(d *delta.Delta) (bool, bool) {
	mods := d.Modifiers()
	switch {
	case d.Kind() == delta.Added && d.Flag() == delta.FlagMethod:
		switch d.Element() {
		case delta.ElementInterface:
			return mods.IsStatic() || mods.Has(model.ModDefault), true
		case delta.ElementAnnotation:
			return mods.Has(model.ModDefault), true
		case delta.ElementClass, delta.ElementEnum:
			if mods.IsAbstract() {
				return d.EnclosingModifiers().IsFinal(), true
			}
			return true, true
		}
	case d.Kind() == delta.Changed && d.Flag() == delta.FlagNonFinalToFinal && d.Element() == delta.ElementMethod:
		// methods of a final class are never overridden
		if d.EnclosingModifiers().IsFinal() {
			return true, true
		}
	}
	return false, false
}
