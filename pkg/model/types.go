package model

import (
	"encoding/hex"
	"fmt"
	"slices"
	"strings"

	"lukechampine.com/blake3"
)

// TypeKind distinguishes the four kinds of API types
type TypeKind int

const (
	KindClass TypeKind = iota
	KindInterface
	KindEnum
	KindAnnotation
)

var typeKindNames = []string{"class", "interface", "enum", "annotation"}

func (k TypeKind) String() string {
	if int(k) < len(typeKindNames) {
		return typeKindNames[k]
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ParseTypeKind parses a kind keyword. An empty string means class.
func ParseTypeKind(s string) (TypeKind, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return KindClass, nil
	}
	for i, name := range typeKindNames {
		if name == s {
			return TypeKind(i), nil
		}
	}
	return 0, fmt.Errorf("unknown type kind %q", s)
}

// ConstructorName is the member name used for constructors
const ConstructorName = "<init>"

// Member is a field or a method of a type. Methods carry a descriptor, fields carry a type.
type Member struct {
	Name       string
	Descriptor string
	Type       string
	Modifiers  Modifiers
	Value      string
	Deprecated bool
	HasDefault bool
}

// Key identifies the member within its type: the name for fields, name+descriptor for methods
func (m Member) Key() string {
	return m.Name + m.Descriptor
}

// IsConstructor reports whether the member is a constructor
func (m Member) IsConstructor() bool {
	return m.Name == ConstructorName
}

// TypeRoot is the structural description of one type. It must not be modified once
// handed to a container.
type TypeRoot struct {
	Name       string
	Kind       TypeKind
	Modifiers  Modifiers
	Superclass string
	Interfaces []string
	Fields     []Member
	Methods    []Member
	Deprecated bool
}

// Package returns the dotted package of the type, "" for the default package
func (t *TypeRoot) Package() string {
	return PackageOf(t.Name)
}

// SimpleName returns the name without its package
func (t *TypeRoot) SimpleName() string {
	if i := strings.LastIndexByte(t.Name, '.'); i >= 0 {
		return t.Name[i+1:]
	}
	return t.Name
}

// Field returns the field with the given name or nil
func (t *TypeRoot) Field(name string) *Member {
	for i := range t.Fields {
		if t.Fields[i].Name == name {
			return &t.Fields[i]
		}
	}
	return nil
}

// Method returns the method or constructor with the given key or nil
func (t *TypeRoot) Method(key string) *Member {
	for i := range t.Methods {
		if t.Methods[i].Key() == key {
			return &t.Methods[i]
		}
	}
	return nil
}

// Fingerprint hashes a canonical encoding of the type. Member and interface order do not matter.
func (t *TypeRoot) Fingerprint() string {
	var b strings.Builder
	fmt.Fprintf(&b, "type %s %d %d %s %t\n", t.Name, t.Kind, t.Modifiers, t.Superclass, t.Deprecated)

	ifaces := slices.Clone(t.Interfaces)
	slices.Sort(ifaces)
	for _, i := range ifaces {
		fmt.Fprintf(&b, "implements %s\n", i)
	}

	writeMembers(&b, "field", t.Fields)
	writeMembers(&b, "method", t.Methods)

	sum := blake3.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

func writeMembers(b *strings.Builder, tag string, members []Member) {
	lines := make([]string, 0, len(members))
	for _, m := range members {
		lines = append(lines, fmt.Sprintf("%s %s|%s|%d|%q|%t|%t", tag, m.Key(), m.Type, m.Modifiers, m.Value, m.Deprecated, m.HasDefault))
	}
	slices.Sort(lines)
	for _, l := range lines {
		b.WriteString(l)
		b.WriteByte('\n')
	}
}

// PackageOf returns the package part of a qualified type name
func PackageOf(typeName string) string {
	if i := strings.LastIndexByte(typeName, '.'); i >= 0 {
		return typeName[:i]
	}
	return ""
}
