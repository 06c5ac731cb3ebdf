package model

import (
	"encoding/hex"
	"errors"
	"fmt"
	"sort"

	"lukechampine.com/blake3"
)

// ErrDuplicateComponent is returned when a baseline is built with two components of the same ID
var ErrDuplicateComponent = errors.New("duplicate component")

// Baseline is a named, read-only set of components keyed by ID
type Baseline struct {
	name       string
	components map[string]*Component
	ids        []string
}

// NewBaseline builds a baseline. Nil components are skipped.
func NewBaseline(name string, components ...*Component) (*Baseline, error) {
	b := &Baseline{
		name:       name,
		components: make(map[string]*Component, len(components)),
	}
	for _, c := range components {
		if c == nil {
			continue
		}
		if c.ID == "" {
			return nil, fmt.Errorf("baseline %s: component without id", name)
		}
		if _, exists := b.components[c.ID]; exists {
			return nil, fmt.Errorf("baseline %s: %w: %s", name, ErrDuplicateComponent, c.ID)
		}
		b.components[c.ID] = c
		b.ids = append(b.ids, c.ID)
	}
	sort.Strings(b.ids)
	return b, nil
}

// MustBaseline is NewBaseline for fixtures
func MustBaseline(name string, components ...*Component) *Baseline {
	b, err := NewBaseline(name, components...)
	if err != nil {
		panic(err)
	}
	return b
}

func (b *Baseline) Name() string {
	return b.name
}

// Component returns the component with the given ID or nil
func (b *Baseline) Component(id string) *Component {
	return b.components[id]
}

// Components returns all components sorted by ID
func (b *Baseline) Components() []*Component {
	out := make([]*Component, 0, len(b.ids))
	for _, id := range b.ids {
		out = append(out, b.components[id])
	}
	return out
}

// ComponentIDs returns the sorted component IDs
func (b *Baseline) ComponentIDs() []string {
	out := make([]string, len(b.ids))
	copy(out, b.ids)
	return out
}

// FindType searches every component for a type. A miss returns nil values and no error.
func (b *Baseline) FindType(name string) (*TypeRoot, *Component, error) {
	for _, id := range b.ids {
		c := b.components[id]
		t, err := c.FindTypeRoot(name)
		if err != nil {
			return nil, nil, err
		}
		if t != nil {
			return t, c, nil
		}
	}
	return nil, nil, nil
}

// Fingerprint hashes all component fingerprints. The baseline name is not part of it.
func (b *Baseline) Fingerprint() (string, error) {
	h := blake3.New(32, nil)
	for _, id := range b.ids {
		fp, err := b.components[id].Fingerprint()
		if err != nil {
			return "", fmt.Errorf("baseline %s: %w", b.name, err)
		}
		fmt.Fprintf(h, "%s %s\n", id, fp)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
