package compatibility

import (
	"fmt"
	"strings"

	"github.com/platinummonkey/apidelta/pkg/delta"
	"github.com/platinummonkey/apidelta/pkg/model"
)

// VersionAdvice is the smallest version increment that covers a set of changes
type VersionAdvice int

const (
	AdviceNone VersionAdvice = iota
	AdviceMicro
	AdviceMinor
	AdviceMajor
)

var adviceNames = []string{"none", "micro", "minor", "major"}

func (a VersionAdvice) String() string {
	return adviceNames[a]
}

func (a VersionAdvice) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *VersionAdvice) UnmarshalText(b []byte) error {
	for i, name := range adviceNames {
		if name == strings.ToLower(string(b)) {
			*a = VersionAdvice(i)
			return nil
		}
	}
	return fmt.Errorf("unknown version advice %q", string(b))
}

// Advise returns the increment required by the leaves of d. Version deltas themselves
// are ignored.
func Advise(d *delta.Delta) VersionAdvice {
	advice := AdviceNone
	for _, leaf := range delta.Leaves(d) {
		if a := adviceFor(leaf); a > advice {
			advice = a
		}
	}
	return advice
}

func adviceFor(leaf *delta.Delta) VersionAdvice {
	switch leaf.Flag() {
	case delta.FlagMajorVersion, delta.FlagMinorVersion:
		return AdviceNone
	}
	if !IsCompatible(leaf) {
		return AdviceMajor
	}
	switch leaf.Flag() {
	case delta.FlagAPIComponent, delta.FlagAPIType, delta.FlagField, delta.FlagMethod, delta.FlagConstructor:
		if leaf.Kind() == delta.Added {
			return AdviceMinor
		}
	case delta.FlagIncreaseAccess, delta.FlagExpandedSuperclassSet, delta.FlagExpandedSuperinterfacesSet:
		return AdviceMinor
	}
	return AdviceMicro
}

// CheckVersions compares the version bump of every changed component with the changes
// found inside it. Incompatible changes without a major bump are errors. API additions
// without a minor bump are warnings.
func CheckVersions(d *delta.Delta) []Violation {
	problems := make([]Violation, 0)
	delta.Walk(d, func(n *delta.Delta) bool {
		if n.IsLeaf() || n.Element() != delta.ElementComponent {
			return true
		}
		if v, ok := checkComponentVersion(n); ok {
			problems = append(problems, v)
		}
		return false
	})
	return problems
}

func checkComponentVersion(n *delta.Delta) (Violation, bool) {
	id := n.Argument(0)
	oldVersion, err := model.ParseVersion(n.Argument(1))
	if err != nil {
		return Violation{}, false
	}
	newVersion, err := model.ParseVersion(n.Argument(2))
	if err != nil {
		return Violation{}, false
	}

	switch Advise(n) {
	case AdviceMajor:
		if newVersion.Major > oldVersion.Major {
			return Violation{}, false
		}
		want := model.Version{Major: oldVersion.Major + 1}
		return NewViolationBuilder("MAJOR_VERSION_REQUIRED").
			WithLevel(ViolationLevelError).
			WithCategory(CategoryVersionChange).
			WithLocation(id).
			WithComponent(id).
			WithMessage(fmt.Sprintf("Component %s contains breaking changes and requires a major version increment", id)).
			WithChange(oldVersion.String(), newVersion.String()).
			WithBinaryBreaking(true).
			WithSuggestion(fmt.Sprintf("Set the version of %s to %s", id, want)).
			Build(), true
	case AdviceMinor:
		if newVersion.Major > oldVersion.Major || newVersion.Minor > oldVersion.Minor {
			return Violation{}, false
		}
		want := model.Version{Major: oldVersion.Major, Minor: oldVersion.Minor + 1}
		return NewViolationBuilder("MINOR_VERSION_REQUIRED").
			WithLevel(ViolationLevelWarning).
			WithCategory(CategoryVersionChange).
			WithLocation(id).
			WithComponent(id).
			WithMessage(fmt.Sprintf("Component %s adds API and requires a minor version increment", id)).
			WithChange(oldVersion.String(), newVersion.String()).
			WithSuggestion(fmt.Sprintf("Set the version of %s to %s", id, want)).
			Build(), true
	}
	return Violation{}, false
}
