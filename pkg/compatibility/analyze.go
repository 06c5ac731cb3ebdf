package compatibility

import (
	"strings"

	"github.com/platinummonkey/apidelta/pkg/delta"
	"github.com/platinummonkey/apidelta/pkg/model"
)

// Violation describes one leaf of a delta tree in reviewer terms
type Violation struct {
	Rule           string            `json:"rule"`
	Level          ViolationLevel    `json:"level"`
	Category       ViolationCategory `json:"category"`
	Message        string            `json:"message"`
	Location       string            `json:"location"`
	Component      string            `json:"component,omitempty"`
	OldValue       string            `json:"old_value,omitempty"`
	NewValue       string            `json:"new_value,omitempty"`
	BinaryBreaking bool              `json:"binary_breaking"`
	SourceBreaking bool              `json:"source_breaking"`
	Suggestion     string            `json:"suggestion,omitempty"`
}

// ViolationLevel indicates the severity
type ViolationLevel int

const (
	ViolationLevelInfo ViolationLevel = iota
	ViolationLevelWarning
	ViolationLevelError
)

func (vl ViolationLevel) String() string {
	return []string{"INFO", "WARNING", "ERROR"}[vl]
}

func (vl ViolationLevel) MarshalText() ([]byte, error) {
	return []byte(vl.String()), nil
}

func (vl *ViolationLevel) UnmarshalText(b []byte) error {
	switch strings.ToUpper(string(b)) {
	case "ERROR":
		*vl = ViolationLevelError
	case "WARNING":
		*vl = ViolationLevelWarning
	default:
		*vl = ViolationLevelInfo
	}
	return nil
}

// ViolationCategory groups related violations
type ViolationCategory int

const (
	CategoryComponentChange ViolationCategory = iota
	CategoryEnvironmentChange
	CategoryVersionChange
	CategoryTypeChange
	CategoryMemberChange
	CategoryModifierChange
	CategoryHierarchyChange
)

var categoryNames = []string{
	"component_change", "environment_change", "version_change", "type_change",
	"member_change", "modifier_change", "hierarchy_change",
}

func (vc ViolationCategory) String() string {
	return categoryNames[vc]
}

func (vc ViolationCategory) MarshalText() ([]byte, error) {
	return []byte(vc.String()), nil
}

func (vc *ViolationCategory) UnmarshalText(b []byte) error {
	for i, name := range categoryNames {
		if name == string(b) {
			*vc = ViolationCategory(i)
			return nil
		}
	}
	*vc = CategoryComponentChange
	return nil
}

// CheckResult contains the results of analysing a delta tree
type CheckResult struct {
	Compatible bool          `json:"compatible"`
	Violations []Violation   `json:"violations"`
	Summary    Summary       `json:"summary"`
	Advice     VersionAdvice `json:"advice"`
}

// Summary provides an overview of violations
type Summary struct {
	TotalViolations int            `json:"total_violations"`
	Errors          int            `json:"errors"`
	Warnings        int            `json:"warnings"`
	Infos           int            `json:"infos"`
	BinaryBreaking  int            `json:"binary_breaking"`
	SourceBreaking  int            `json:"source_breaking"`
	Compatible      int            `json:"compatible"`
	ByKind          map[string]int `json:"by_kind"`
	ByComponent     map[string]int `json:"by_component"`
}

// Analyze walks the leaves of d and classifies each of them
func Analyze(d *delta.Delta) *CheckResult {
	violations := make([]Violation, 0)
	for _, leaf := range delta.Leaves(d) {
		violations = append(violations, violationFor(leaf))
	}

	compatible := true
	for _, v := range violations {
		if v.Level == ViolationLevelError {
			compatible = false
			break
		}
	}

	return &CheckResult{
		Compatible: compatible,
		Violations: violations,
		Summary:    summarize(violations, d),
		Advice:     Advise(d),
	}
}

func violationFor(leaf *delta.Delta) Violation {
	compatible := IsCompatible(leaf)
	level := ViolationLevelInfo
	switch {
	case !compatible:
		level = ViolationLevelError
	case leaf.Flag() == delta.FlagDeprecation && leaf.Kind() == delta.Added,
		leaf.Flag() == delta.FlagExecutionEnvironment && leaf.Kind() == delta.Removed:
		level = ViolationLevelWarning
	}

	b := NewViolationBuilder(ruleName(leaf)).
		WithLevel(level).
		WithCategory(categoryOf(leaf.Flag())).
		WithLocation(location(leaf)).
		WithComponent(leaf.ComponentID()).
		WithMessage(delta.Message(leaf)).
		WithBinaryBreaking(!compatible).
		WithSourceBreaking(!compatible || sourceBreaking(leaf))
	if old, cur, ok := changeValues(leaf); ok {
		b = b.WithChange(old, cur)
	}
	if !compatible {
		b = b.WithSuggestion(suggestion(leaf))
	}
	return b.Build()
}

func ruleName(d *delta.Delta) string {
	return d.Kind().String() + "_" + d.Flag().String()
}

func categoryOf(f delta.Flag) ViolationCategory {
	switch f {
	case delta.FlagAPIComponent:
		return CategoryComponentChange
	case delta.FlagExecutionEnvironment:
		return CategoryEnvironmentChange
	case delta.FlagMajorVersion, delta.FlagMinorVersion:
		return CategoryVersionChange
	case delta.FlagAPIType, delta.FlagTypeVisibility, delta.FlagTypeConversion, delta.FlagDeprecation:
		return CategoryTypeChange
	case delta.FlagField, delta.FlagMethod, delta.FlagConstructor, delta.FlagType, delta.FlagValue,
		delta.FlagAnnotationDefaultValue, delta.FlagMethodMovedUp, delta.FlagFieldMovedUp:
		return CategoryMemberChange
	case delta.FlagExpandedSuperclassSet, delta.FlagContractedSuperclassSet,
		delta.FlagExpandedSuperinterfacesSet, delta.FlagContractedSuperinterfacesSet:
		return CategoryHierarchyChange
	default:
		return CategoryModifierChange
	}
}

func location(d *delta.Delta) string {
	parts := []string{}
	if d.ComponentID() != "" {
		parts = append(parts, d.ComponentID())
	}
	if d.TypeName() != "" {
		loc := d.TypeName()
		if d.Element().IsMember() || (d.Element().IsType() && isMemberFlag(d.Flag())) {
			loc += "#" + d.Key()
		}
		parts = append(parts, loc)
	}
	if len(parts) == 0 {
		return d.Key()
	}
	return strings.Join(parts, "/")
}

func isMemberFlag(f delta.Flag) bool {
	switch f {
	case delta.FlagField, delta.FlagMethod, delta.FlagConstructor, delta.FlagMethodMovedUp, delta.FlagFieldMovedUp:
		return true
	}
	return false
}

// sourceBreaking flags additions that break implementors at compile time even when
// existing binaries keep linking
func sourceBreaking(d *delta.Delta) bool {
	if d.Kind() != delta.Added || d.Flag() != delta.FlagMethod {
		return false
	}
	mods := d.Modifiers()
	if d.Element() == delta.ElementInterface {
		return !mods.IsStatic() && !mods.Has(model.ModDefault)
	}
	return mods.IsAbstract()
}

func changeValues(d *delta.Delta) (string, string, bool) {
	args := d.Arguments()
	switch d.Flag() {
	case delta.FlagMajorVersion, delta.FlagMinorVersion, delta.FlagTypeConversion,
		delta.FlagIncreaseAccess, delta.FlagDecreaseAccess, delta.FlagType, delta.FlagValue:
		if len(args) >= 3 {
			return args[len(args)-2], args[len(args)-1], true
		}
	case delta.FlagExecutionEnvironment, delta.FlagAPIComponent:
		if d.Kind() == delta.Added {
			return "", d.Argument(0), true
		}
		return d.Argument(0), "", true
	}
	return "", "", false
}

func suggestion(d *delta.Delta) string {
	switch d.Flag() {
	case delta.FlagAPIComponent:
		return "Keep the component available or release the consumers that depend on it together with a major version."
	case delta.FlagAPIType, delta.FlagField, delta.FlagMethod, delta.FlagConstructor:
		if d.Kind() == delta.Added {
			return "Provide a default implementation or make the enclosing type final."
		}
		return "Deprecate the element first and remove it in the next major version."
	case delta.FlagTypeVisibility:
		return "Keep the package exported or move the type out of the API only in a major version."
	case delta.FlagDecreaseAccess:
		return "Restore the previous access level."
	case delta.FlagType, delta.FlagValue:
		return "Add a new field instead of changing the existing one."
	case delta.FlagContractedSuperclassSet, delta.FlagContractedSuperinterfacesSet:
		return "Keep the removed supertypes in the hierarchy."
	default:
		return "Revert the change or bump the major version."
	}
}

func summarize(violations []Violation, d *delta.Delta) Summary {
	summary := Summary{
		TotalViolations: len(violations),
		ByKind:          make(map[string]int),
		ByComponent:     make(map[string]int),
	}

	for _, v := range violations {
		switch v.Level {
		case ViolationLevelError:
			summary.Errors++
		case ViolationLevelWarning:
			summary.Warnings++
		case ViolationLevelInfo:
			summary.Infos++
		}

		if v.BinaryBreaking {
			summary.BinaryBreaking++
		} else {
			summary.Compatible++
		}
		if v.SourceBreaking {
			summary.SourceBreaking++
		}
		if v.Component != "" {
			summary.ByComponent[v.Component]++
		}
	}
	for _, leaf := range delta.Leaves(d) {
		summary.ByKind[leaf.Kind().String()]++
	}

	return summary
}

// ViolationBuilder helps construct violations fluently
type ViolationBuilder struct {
	violation Violation
}

// NewViolationBuilder creates a new violation builder
func NewViolationBuilder(rule string) *ViolationBuilder {
	return &ViolationBuilder{
		violation: Violation{
			Rule: rule,
		},
	}
}

func (b *ViolationBuilder) WithLevel(level ViolationLevel) *ViolationBuilder {
	b.violation.Level = level
	return b
}

func (b *ViolationBuilder) WithCategory(category ViolationCategory) *ViolationBuilder {
	b.violation.Category = category
	return b
}

func (b *ViolationBuilder) WithLocation(location string) *ViolationBuilder {
	b.violation.Location = location
	return b
}

func (b *ViolationBuilder) WithComponent(id string) *ViolationBuilder {
	b.violation.Component = id
	return b
}

func (b *ViolationBuilder) WithMessage(message string) *ViolationBuilder {
	b.violation.Message = message
	return b
}

func (b *ViolationBuilder) WithChange(oldValue, newValue string) *ViolationBuilder {
	b.violation.OldValue = oldValue
	b.violation.NewValue = newValue
	return b
}

func (b *ViolationBuilder) WithBinaryBreaking(breaking bool) *ViolationBuilder {
	b.violation.BinaryBreaking = breaking
	return b
}

func (b *ViolationBuilder) WithSourceBreaking(breaking bool) *ViolationBuilder {
	b.violation.SourceBreaking = breaking
	return b
}

func (b *ViolationBuilder) WithSuggestion(suggestion string) *ViolationBuilder {
	b.violation.Suggestion = suggestion
	return b
}

func (b *ViolationBuilder) Build() Violation {
	return b.violation
}
