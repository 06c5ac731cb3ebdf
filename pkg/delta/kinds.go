package delta

import (
	"fmt"
	"strings"

	"github.com/platinummonkey/apidelta/pkg/model"
)

// Kind says whether something was added, changed or removed
type Kind int

const (
	Added   Kind = 1
	Changed Kind = 2
	Removed Kind = 3
)

func (k Kind) String() string {
	switch k {
	case Added:
		return "ADDED"
	case Changed:
		return "CHANGED"
	case Removed:
		return "REMOVED"
	}
	return ""
}

// ParseKind is the inverse of Kind.String
func ParseKind(s string) (Kind, error) {
	switch strings.ToUpper(s) {
	case "ADDED":
		return Added, nil
	case "CHANGED":
		return Changed, nil
	case "REMOVED":
		return Removed, nil
	case "":
		return 0, nil
	}
	return 0, fmt.Errorf("unknown delta kind %q", s)
}

// ElementType names the level a delta was reported at
type ElementType int

const (
	ElementBaseline ElementType = iota + 1
	ElementComponent
	ElementClass
	ElementInterface
	ElementEnum
	ElementAnnotation
	ElementField
	ElementMethod
	ElementConstructor
)

var elementNames = map[ElementType]string{
	ElementBaseline:    "BASELINE",
	ElementComponent:   "COMPONENT",
	ElementClass:       "CLASS",
	ElementInterface:   "INTERFACE",
	ElementEnum:        "ENUM",
	ElementAnnotation:  "ANNOTATION",
	ElementField:       "FIELD",
	ElementMethod:      "METHOD",
	ElementConstructor: "CONSTRUCTOR",
}

func (e ElementType) String() string {
	return elementNames[e]
}

// ParseElementType is the inverse of ElementType.String
func ParseElementType(s string) (ElementType, error) {
	if s == "" {
		return 0, nil
	}
	for e, name := range elementNames {
		if name == strings.ToUpper(s) {
			return e, nil
		}
	}
	return 0, fmt.Errorf("unknown element type %q", s)
}

// IsType reports whether the element is one of the type levels
func (e ElementType) IsType() bool {
	return e >= ElementClass && e <= ElementAnnotation
}

// IsMember reports whether the element is a field, method or constructor
func (e ElementType) IsMember() bool {
	return e >= ElementField
}

// ElementForKind maps a type kind to its element type
func ElementForKind(k model.TypeKind) ElementType {
	switch k {
	case model.KindInterface:
		return ElementInterface
	case model.KindEnum:
		return ElementEnum
	case model.KindAnnotation:
		return ElementAnnotation
	default:
		return ElementClass
	}
}

// ElementForMember maps a member to its element type
func ElementForMember(m model.Member) ElementType {
	switch {
	case m.IsConstructor():
		return ElementConstructor
	case m.Descriptor != "":
		return ElementMethod
	default:
		return ElementField
	}
}

// Flag says what changed
type Flag int

const (
	FlagNone Flag = iota
	FlagAPIComponent
	FlagAPIType
	FlagExecutionEnvironment
	FlagMajorVersion
	FlagMinorVersion
	FlagTypeVisibility
	FlagField
	FlagMethod
	FlagConstructor
	FlagMethodMovedUp
	FlagFieldMovedUp
	FlagTypeConversion
	FlagExpandedSuperclassSet
	FlagContractedSuperclassSet
	FlagExpandedSuperinterfacesSet
	FlagContractedSuperinterfacesSet
	FlagNonFinalToFinal
	FlagFinalToNonFinal
	FlagNonAbstractToAbstract
	FlagAbstractToNonAbstract
	FlagNonStaticToStatic
	FlagStaticToNonStatic
	FlagIncreaseAccess
	FlagDecreaseAccess
	FlagType
	FlagValue
	FlagDeprecation
	FlagAnnotationDefaultValue
	FlagNonTransientToTransient
	FlagTransientToNonTransient
)

var flagNames = []string{
	"",
	"API_COMPONENT",
	"API_TYPE",
	"EXECUTION_ENVIRONMENT",
	"MAJOR_VERSION",
	"MINOR_VERSION",
	"TYPE_VISIBILITY",
	"FIELD",
	"METHOD",
	"CONSTRUCTOR",
	"METHOD_MOVED_UP",
	"FIELD_MOVED_UP",
	"TYPE_CONVERSION",
	"EXPANDED_SUPERCLASS_SET",
	"CONTRACTED_SUPERCLASS_SET",
	"EXPANDED_SUPERINTERFACES_SET",
	"CONTRACTED_SUPERINTERFACES_SET",
	"NON_FINAL_TO_FINAL",
	"FINAL_TO_NON_FINAL",
	"NON_ABSTRACT_TO_ABSTRACT",
	"ABSTRACT_TO_NON_ABSTRACT",
	"NON_STATIC_TO_STATIC",
	"STATIC_TO_NON_STATIC",
	"INCREASE_ACCESS",
	"DECREASE_ACCESS",
	"TYPE",
	"VALUE",
	"DEPRECATION",
	"ANNOTATION_DEFAULT_VALUE",
	"NON_TRANSIENT_TO_TRANSIENT",
	"TRANSIENT_TO_NON_TRANSIENT",
}

func (f Flag) String() string {
	if int(f) >= 0 && int(f) < len(flagNames) {
		return flagNames[f]
	}
	return fmt.Sprintf("FLAG(%d)", int(f))
}

// ParseFlag is the inverse of Flag.String
func ParseFlag(s string) (Flag, error) {
	s = strings.ToUpper(s)
	for i, name := range flagNames {
		if name == s {
			return Flag(i), nil
		}
	}
	return 0, fmt.Errorf("unknown delta flag %q", s)
}

// Flags returns every defined flag except FlagNone
func Flags() []Flag {
	out := make([]Flag, 0, len(flagNames)-1)
	for i := 1; i < len(flagNames); i++ {
		out = append(out, Flag(i))
	}
	return out
}
