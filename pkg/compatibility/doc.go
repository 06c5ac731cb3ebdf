// Package compatibility classifies API deltas by their binary compatibility impact.
//
// # Overview
//
// A delta tree produced by the comparator only says what changed. This package decides
// whether each change is safe for existing clients that were compiled against the old
// baseline, and summarises the outcome for reviewers.
//
// # Classification
//
// IsCompatible is a fixed lookup over the kind, flag and element type of a leaf delta.
// A few entries also read the modifiers carried by the delta:
//
//   - an abstract method added to a class breaks subclasses unless the class is final
//   - a method added to an interface is safe only when it is static or default
//   - an element added to an annotation is safe only when it has a default value
//
// Anything missing from the table is treated as compatible when it is an addition and
// incompatible otherwise.
//
// Safe changes include:
//
//   - adding components, API types, fields, constructors and concrete methods
//   - adding or removing execution environments
//   - increasing access, dropping final or abstract
//   - expanding the superclass or superinterface set
//   - moving a member up to a supertype
//   - deprecating an element
//
// Breaking changes include:
//
//   - removing components, API types or members
//   - moving a type out of an API package
//   - decreasing access, adding final or abstract, toggling static
//   - contracting the superclass or superinterface set
//   - changing a field type or a constant value
//   - converting a class into an interface, enum or annotation
//
// # Analysis
//
// Analyze turns every leaf into a Violation:
//
//	result := compatibility.Analyze(d)
//	if !result.Compatible {
//		for _, v := range result.Violations {
//			if v.Level == compatibility.ViolationLevelError {
//				fmt.Printf("  [%s] %s: %s\n", v.Level, v.Location, v.Message)
//			}
//		}
//	}
//	fmt.Println("required increment:", result.Advice)
//
// CheckVersions compares that advice with the version numbers recorded on every
// component node and reports components whose version was not bumped far enough.
package compatibility
