package model

import (
	"encoding/hex"
	"fmt"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"lukechampine.com/blake3"
)

// PackageRule assigns a visibility to packages. Pattern is either an exact dotted package
// name or a doublestar glob over dotted names ("org.example.**").
type PackageRule struct {
	Pattern    string
	Visibility Visibility
}

// IsGlob reports whether the rule pattern contains glob metacharacters
func (r PackageRule) IsGlob() bool {
	return strings.ContainsAny(r.Pattern, "*?[{")
}

func (r PackageRule) matches(pkg string) bool {
	ok, err := doublestar.Match(dottedToPath(r.Pattern), dottedToPath(pkg))
	return err == nil && ok
}

func dottedToPath(s string) string {
	return strings.ReplaceAll(s, ".", "/")
}

// Component is one versioned bundle. It is read-only once placed in a Baseline.
type Component struct {
	ID                    string
	Version               Version
	ExecutionEnvironments []string
	Packages              []PackageRule
	Types                 TypeContainer
}

// FindTypeRoot looks up a type in the component's container
func (c *Component) FindTypeRoot(name string) (*TypeRoot, error) {
	if c.Types == nil {
		return nil, nil
	}
	t, err := c.Types.FindTypeRoot(name)
	if err != nil {
		return nil, fmt.Errorf("component %s: find type %s: %w", c.ID, name, err)
	}
	return t, nil
}

// TypeNames lists the names of all types of the component
func (c *Component) TypeNames() ([]string, error) {
	if c.Types == nil {
		return nil, nil
	}
	names, err := c.Types.TypeNames()
	if err != nil {
		return nil, fmt.Errorf("component %s: list types: %w", c.ID, err)
	}
	return names, nil
}

// PackageVisibility resolves the visibility of a package: exact rules, then glob rules,
// then VisibilityPrivate.
func (c *Component) PackageVisibility(pkg string) Visibility {
	for _, r := range c.Packages {
		if !r.IsGlob() && r.Pattern == pkg {
			return r.Visibility
		}
	}
	for _, r := range c.Packages {
		if r.IsGlob() && r.matches(pkg) {
			return r.Visibility
		}
	}
	return VisibilityPrivate
}

// TypeVisibility resolves the visibility of the package that holds typeName
func (c *Component) TypeVisibility(typeName string) Visibility {
	return c.PackageVisibility(PackageOf(typeName))
}

// IsVisible reports whether typeName falls inside mask
func (c *Component) IsVisible(typeName string, mask Visibility) bool {
	return mask.Includes(c.TypeVisibility(typeName))
}

// Exposes reports whether t belongs to the surface selected by mask. Types that are
// neither public nor protected only count when mask includes VisibilityPrivate.
func (c *Component) Exposes(t *TypeRoot, mask Visibility) bool {
	return c.IsVisible(t.Name, mask) && (mask.Includes(VisibilityPrivate) || t.Modifiers.IsExposed())
}

// HasExecutionEnvironment reports whether ee is required by the component
func (c *Component) HasExecutionEnvironment(ee string) bool {
	return slices.Contains(c.ExecutionEnvironments, ee)
}

// Fingerprint hashes the component header and the fingerprints of all its types
func (c *Component) Fingerprint() (string, error) {
	h := blake3.New(32, nil)
	fmt.Fprintf(h, "component %s %s\n", c.ID, c.Version)

	ees := slices.Clone(c.ExecutionEnvironments)
	slices.Sort(ees)
	for _, ee := range ees {
		fmt.Fprintf(h, "ee %s\n", ee)
	}
	for _, r := range c.Packages {
		fmt.Fprintf(h, "package %s %d\n", r.Pattern, r.Visibility)
	}

	names, err := c.TypeNames()
	if err != nil {
		return "", err
	}
	slices.Sort(names)
	for _, name := range names {
		t, err := c.FindTypeRoot(name)
		if err != nil {
			return "", err
		}
		if t == nil {
			continue
		}
		fmt.Fprintf(h, "type %s\n", t.Fingerprint())
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
