package model

import (
	"fmt"
	"sort"
)

// TypeContainer gives access to the types of a component.
// FindTypeRoot returns nil, nil for names it does not hold.
type TypeContainer interface {
	TypeNames() ([]string, error)
	FindTypeRoot(name string) (*TypeRoot, error)
}

// TypeMap is an in-memory TypeContainer
type TypeMap struct {
	types map[string]*TypeRoot
	names []string
}

// NewTypeMap builds a TypeMap. Duplicate names are an error.
func NewTypeMap(types ...*TypeRoot) (*TypeMap, error) {
	m := &TypeMap{types: make(map[string]*TypeRoot, len(types))}
	for _, t := range types {
		if t == nil {
			continue
		}
		if _, exists := m.types[t.Name]; exists {
			return nil, fmt.Errorf("duplicate type %s", t.Name)
		}
		m.types[t.Name] = t
		m.names = append(m.names, t.Name)
	}
	sort.Strings(m.names)
	return m, nil
}

// MustTypeMap is NewTypeMap for fixtures
func MustTypeMap(types ...*TypeRoot) *TypeMap {
	m, err := NewTypeMap(types...)
	if err != nil {
		panic(err)
	}
	return m
}

func (m *TypeMap) TypeNames() ([]string, error) {
	out := make([]string, len(m.names))
	copy(out, m.names)
	return out, nil
}

func (m *TypeMap) FindTypeRoot(name string) (*TypeRoot, error) {
	return m.types[name], nil
}
