package delta

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/platinummonkey/apidelta/pkg/model"
)

// Delta is one node of a delta tree. Nodes are immutable once built.
type Delta struct {
	kind               Kind
	flag               Flag
	element            ElementType
	key                string
	typeName           string
	componentID        string
	modifiers          model.Modifiers
	previousModifiers  model.Modifiers
	enclosingModifiers model.Modifiers
	arguments          []string
	children           []*Delta
}

// NoDelta is the result of comparing two equal things
var NoDelta = &Delta{}

// Params describes a leaf delta
type Params struct {
	Kind               Kind
	Flag               Flag
	Element            ElementType
	Key                string
	TypeName           string
	ComponentID        string
	Modifiers          model.Modifiers
	PreviousModifiers  model.Modifiers
	EnclosingModifiers model.Modifiers
	Arguments          []string
}

// New builds a leaf delta
func New(p Params) *Delta {
	return &Delta{
		kind:               p.Kind,
		flag:               p.Flag,
		element:            p.Element,
		key:                p.Key,
		typeName:           p.TypeName,
		componentID:        p.ComponentID,
		modifiers:          p.Modifiers,
		previousModifiers:  p.PreviousModifiers,
		enclosingModifiers: p.EnclosingModifiers,
		arguments:          slices.Clone(p.Arguments),
	}
}

// NewContainer groups children under a CHANGED node. Empty children are dropped and
// a container left without children collapses to NoDelta.
func NewContainer(p Params, children ...*Delta) *Delta {
	kept := make([]*Delta, 0, len(children))
	for _, c := range children {
		if !c.IsEmpty() {
			kept = append(kept, c)
		}
	}
	if len(kept) == 0 {
		return NoDelta
	}
	sortChildren(kept)

	d := New(p)
	d.kind = Changed
	d.flag = FlagNone
	d.children = kept
	return d
}

func sortChildren(children []*Delta) {
	sort.SliceStable(children, func(i, j int) bool {
		return compareDeltas(children[i], children[j]) < 0
	})
}

func compareDeltas(a, b *Delta) int {
	if a.kind != b.kind {
		return int(a.kind) - int(b.kind)
	}
	if a.flag != b.flag {
		return int(a.flag) - int(b.flag)
	}
	if c := strings.Compare(a.key, b.key); c != 0 {
		return c
	}
	return slices.Compare(a.arguments, b.arguments)
}

// IsEmpty reports whether d carries no difference
func (d *Delta) IsEmpty() bool {
	return d == nil || d == NoDelta || (d.kind == 0 && len(d.children) == 0)
}

func (d *Delta) Kind() Kind                          { return d.kind }
func (d *Delta) Flag() Flag                          { return d.flag }
func (d *Delta) Element() ElementType                { return d.element }
func (d *Delta) Key() string                         { return d.key }
func (d *Delta) TypeName() string                    { return d.typeName }
func (d *Delta) ComponentID() string                 { return d.componentID }
func (d *Delta) Modifiers() model.Modifiers          { return d.modifiers }
func (d *Delta) PreviousModifiers() model.Modifiers  { return d.previousModifiers }
func (d *Delta) EnclosingModifiers() model.Modifiers { return d.enclosingModifiers }
func (d *Delta) IsLeaf() bool                        { return len(d.children) == 0 }
func (d *Delta) Arguments() []string                 { return slices.Clone(d.arguments) }
func (d *Delta) Children() []*Delta                  { return slices.Clone(d.children) }

func (d *Delta) Argument(i int) string {
	if i < 0 || i >= len(d.arguments) {
		return ""
	}
	return d.arguments[i]
}

// String renders the node on one line, e.g. "ADDED EXECUTION_ENVIRONMENT COMPONENT [J2SE-1.4 a.b.c]"
func (d *Delta) String() string {
	if d.IsEmpty() {
		return "NO_DELTA"
	}
	var b strings.Builder
	b.WriteString(d.kind.String())
	if d.flag != FlagNone {
		b.WriteByte(' ')
		b.WriteString(d.flag.String())
	}
	if d.element != 0 {
		b.WriteByte(' ')
		b.WriteString(d.element.String())
	}
	if len(d.arguments) > 0 {
		fmt.Fprintf(&b, " %v", d.arguments)
	}
	return b.String()
}

// Walk visits d and its descendants depth first. Returning false from fn skips the children.
func Walk(d *Delta, fn func(*Delta) bool) {
	if d.IsEmpty() {
		return
	}
	if !fn(d) {
		return
	}
	for _, c := range d.children {
		Walk(c, fn)
	}
}

// Leaves collects the leaf deltas in tree order
func Leaves(d *Delta) []*Delta {
	var out []*Delta
	Walk(d, func(n *Delta) bool {
		if n.IsLeaf() {
			out = append(out, n)
		}
		return true
	})
	return out
}

// Count returns the number of leaves under d
func Count(d *Delta) int {
	n := 0
	Walk(d, func(c *Delta) bool {
		if c.IsLeaf() {
			n++
		}
		return true
	})
	return n
}
