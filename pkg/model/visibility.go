package model

import (
	"fmt"
	"strings"
)

// Visibility is a bitmask selecting which parts of a component's surface take part in a comparison
type Visibility int

const (
	VisibilityAPI                Visibility = 0x1
	VisibilityPrivate            Visibility = 0x2
	VisibilitySPI                Visibility = 0x4
	VisibilityPrivatePermissible Visibility = 0x8

	VisibilityAll = VisibilityAPI | VisibilityPrivate | VisibilitySPI | VisibilityPrivatePermissible
)

var visibilityNames = []struct {
	v    Visibility
	name string
}{
	{VisibilityAPI, "api"},
	{VisibilityPrivate, "private"},
	{VisibilitySPI, "spi"},
	{VisibilityPrivatePermissible, "private-permissible"},
}

// Includes reports whether any bit of other is selected by v
func (v Visibility) Includes(other Visibility) bool {
	return v&other != 0
}

func (v Visibility) String() string {
	if v == VisibilityAll {
		return "all"
	}
	var parts []string
	for _, n := range visibilityNames {
		if v&n.v != 0 {
			parts = append(parts, n.name)
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, ",")
}

// ParseVisibility parses "api", "all", "spi", "private", "private-permissible" or a comma separated list
func ParseVisibility(s string) (Visibility, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return 0, fmt.Errorf("empty visibility")
	}
	if s == "all" {
		return VisibilityAll, nil
	}

	var v Visibility
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		found := false
		for _, n := range visibilityNames {
			if n.name == part {
				v |= n.v
				found = true
				break
			}
		}
		if !found {
			return 0, fmt.Errorf("unknown visibility %q", part)
		}
	}
	return v, nil
}
