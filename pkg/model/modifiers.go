package model

import (
	"fmt"
	"strings"
)

// Modifiers is the modifier set of a type or member
type Modifiers int

const (
	ModPublic Modifiers = 1 << iota
	ModProtected
	ModPrivate
	ModStatic
	ModFinal
	ModAbstract
	ModSynchronized
	ModVolatile
	ModTransient
	ModNative
	ModDefault
)

var modifierNames = []struct {
	m    Modifiers
	name string
}{
	{ModPublic, "public"},
	{ModProtected, "protected"},
	{ModPrivate, "private"},
	{ModStatic, "static"},
	{ModFinal, "final"},
	{ModAbstract, "abstract"},
	{ModSynchronized, "synchronized"},
	{ModVolatile, "volatile"},
	{ModTransient, "transient"},
	{ModNative, "native"},
	{ModDefault, "default"},
}

// Access levels ordered from least to most visible
type Access int

const (
	AccessPrivate Access = iota
	AccessPackage
	AccessProtected
	AccessPublic
)

func (a Access) String() string {
	return []string{"private", "package", "protected", "public"}[a]
}

// ParseModifiers converts modifier keywords into a bitmask
func ParseModifiers(names []string) (Modifiers, error) {
	var m Modifiers
	for _, name := range names {
		name = strings.TrimSpace(strings.ToLower(name))
		found := false
		for _, mn := range modifierNames {
			if mn.name == name {
				m |= mn.m
				found = true
				break
			}
		}
		if !found {
			return 0, fmt.Errorf("unknown modifier %q", name)
		}
	}
	return m, nil
}

// Has reports whether all bits of flag are set
func (m Modifiers) Has(flag Modifiers) bool {
	return m&flag == flag
}

func (m Modifiers) IsStatic() bool   { return m.Has(ModStatic) }
func (m Modifiers) IsFinal() bool    { return m.Has(ModFinal) }
func (m Modifiers) IsAbstract() bool { return m.Has(ModAbstract) }

// Access returns the access level encoded in the modifiers
func (m Modifiers) Access() Access {
	switch {
	case m.Has(ModPublic):
		return AccessPublic
	case m.Has(ModProtected):
		return AccessProtected
	case m.Has(ModPrivate):
		return AccessPrivate
	default:
		return AccessPackage
	}
}

// IsExposed reports whether the access is public or protected
func (m Modifiers) IsExposed() bool {
	a := m.Access()
	return a == AccessPublic || a == AccessProtected
}

// Names returns the modifier keywords in declaration order
func (m Modifiers) Names() []string {
	var names []string
	for _, mn := range modifierNames {
		if m&mn.m != 0 {
			names = append(names, mn.name)
		}
	}
	return names
}

func (m Modifiers) String() string {
	return strings.Join(m.Names(), " ")
}
