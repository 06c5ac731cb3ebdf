package delta

import (
	"fmt"
	"strings"
)

// Message renders a leaf delta as a sentence. Only the delta itself is consulted.
func Message(d *Delta) string {
	if d.IsEmpty() {
		return "no difference"
	}
	if !d.IsLeaf() {
		return fmt.Sprintf("%s %s changed", strings.ToLower(d.element.String()), d.Argument(0))
	}

	a := d.Argument
	switch d.flag {
	case FlagAPIComponent:
		return fmt.Sprintf("Component %s%s %s", a(0), versionSuffix(a(1)), verb(d.kind))
	case FlagExecutionEnvironment:
		if d.kind == Added {
			return fmt.Sprintf("Execution environment %s added to %s", a(0), a(1))
		}
		return fmt.Sprintf("Execution environment %s removed from %s", a(0), a(1))
	case FlagMajorVersion:
		return fmt.Sprintf("Major version of %s changed from %s to %s", a(0), a(1), a(2))
	case FlagMinorVersion:
		return fmt.Sprintf("Minor version of %s changed from %s to %s", a(0), a(1), a(2))
	case FlagAPIType:
		return fmt.Sprintf("API type %s %s", a(0), verb(d.kind))
	case FlagTypeVisibility:
		return fmt.Sprintf("Type %s is no longer API in %s", a(0), a(1))
	case FlagField, FlagMethod, FlagConstructor:
		return fmt.Sprintf("%s %s %s %s %s", memberNoun(d.flag), a(1), verb(d.kind), preposition(d.kind), a(0))
	case FlagMethodMovedUp, FlagFieldMovedUp:
		noun := "Method"
		if d.flag == FlagFieldMovedUp {
			noun = "Field"
		}
		return fmt.Sprintf("%s %s moved up from %s to %s", noun, a(1), a(0), a(2))
	case FlagTypeConversion:
		return fmt.Sprintf("Type %s converted from %s to %s", a(0), a(1), a(2))
	case FlagExpandedSuperclassSet:
		return fmt.Sprintf("Superclass set of %s expanded with %s", a(0), a(1))
	case FlagContractedSuperclassSet:
		return fmt.Sprintf("Superclass set of %s contracted by %s", a(0), a(1))
	case FlagExpandedSuperinterfacesSet:
		return fmt.Sprintf("Superinterfaces set of %s expanded with %s", a(0), a(1))
	case FlagContractedSuperinterfacesSet:
		return fmt.Sprintf("Superinterfaces set of %s contracted by %s", a(0), a(1))
	case FlagNonFinalToFinal:
		return fmt.Sprintf("%s became final", subject(d))
	case FlagFinalToNonFinal:
		return fmt.Sprintf("%s is no longer final", subject(d))
	case FlagNonAbstractToAbstract:
		return fmt.Sprintf("%s became abstract", subject(d))
	case FlagAbstractToNonAbstract:
		return fmt.Sprintf("%s is no longer abstract", subject(d))
	case FlagNonStaticToStatic:
		return fmt.Sprintf("%s became static", subject(d))
	case FlagStaticToNonStatic:
		return fmt.Sprintf("%s is no longer static", subject(d))
	case FlagNonTransientToTransient:
		return fmt.Sprintf("%s became transient", subject(d))
	case FlagTransientToNonTransient:
		return fmt.Sprintf("%s is no longer transient", subject(d))
	case FlagIncreaseAccess, FlagDecreaseAccess:
		dir := "increased"
		if d.flag == FlagDecreaseAccess {
			dir = "decreased"
		}
		old, cur := trailing(d)
		return fmt.Sprintf("Access of %s %s from %s to %s", subject(d), dir, old, cur)
	case FlagType:
		old, cur := trailing(d)
		return fmt.Sprintf("Type of %s changed from %s to %s", subject(d), old, cur)
	case FlagValue:
		old, cur := trailing(d)
		return fmt.Sprintf("Value of %s changed from %s to %s", subject(d), old, cur)
	case FlagDeprecation:
		if d.kind == Added {
			return fmt.Sprintf("%s is now deprecated", subject(d))
		}
		return fmt.Sprintf("%s is no longer deprecated", subject(d))
	case FlagAnnotationDefaultValue:
		return fmt.Sprintf("Default value of %s %s", subject(d), verb(d.kind))
	}
	return fmt.Sprintf("%s %s %s %v", d.kind, d.flag, d.element, d.arguments)
}

func verb(k Kind) string {
	switch k {
	case Added:
		return "added"
	case Removed:
		return "removed"
	default:
		return "changed"
	}
}

func preposition(k Kind) string {
	if k == Removed {
		return "from"
	}
	return "to"
}

func memberNoun(f Flag) string {
	switch f {
	case FlagField:
		return "Field"
	case FlagConstructor:
		return "Constructor"
	default:
		return "Method"
	}
}

func versionSuffix(v string) string {
	if v == "" {
		return ""
	}
	return " (" + v + ")"
}

// subject names the type or member a leaf is about
func subject(d *Delta) string {
	if d.element.IsMember() {
		return d.Argument(0) + "#" + d.Argument(1)
	}
	return d.Argument(0)
}

// trailing returns the old and new values carried at the end of the arguments
func trailing(d *Delta) (string, string) {
	n := len(d.arguments)
	if n < 2 {
		return "", ""
	}
	return d.arguments[n-2], d.arguments[n-1]
}
