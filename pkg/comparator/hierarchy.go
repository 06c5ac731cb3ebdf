package comparator

import (
	"github.com/tidwall/btree"

	"github.com/platinummonkey/apidelta/pkg/model"
)

// hierarchy resolves supertypes of types through one baseline. Names that cannot be
// resolved stay in the sets but are not expanded further.
type hierarchy struct {
	baseline *model.Baseline
}

func (h hierarchy) find(name string) (*model.TypeRoot, error) {
	t, _, err := h.baseline.FindType(name)
	return t, err
}

// superclasses returns the superclass chain of t, nearest first
func (h hierarchy) superclasses(t *model.TypeRoot) ([]string, error) {
	var chain []string
	seen := map[string]bool{t.Name: true}
	next := t.Superclass
	for next != "" && !seen[next] {
		seen[next] = true
		chain = append(chain, next)
		st, err := h.find(next)
		if err != nil {
			return nil, err
		}
		if st == nil {
			break
		}
		next = st.Superclass
	}
	return chain, nil
}

// superinterfaces returns every interface implemented by t directly, through its
// superclasses or through other interfaces
func (h hierarchy) superinterfaces(t *model.TypeRoot) (*btree.Set[string], error) {
	var out btree.Set[string]
	queue := append([]string(nil), t.Interfaces...)

	supers, err := h.superclasses(t)
	if err != nil {
		return nil, err
	}
	for _, name := range supers {
		st, err := h.find(name)
		if err != nil {
			return nil, err
		}
		if st != nil {
			queue = append(queue, st.Interfaces...)
		}
	}

	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		if out.Contains(name) || name == t.Name {
			continue
		}
		out.Insert(name)
		it, err := h.find(name)
		if err != nil {
			return nil, err
		}
		if it != nil {
			queue = append(queue, it.Interfaces...)
		}
	}
	return &out, nil
}

// inherited finds the nearest supertype of t that declares a member matching lookup and
// accepted by keep. It returns "" when no resolvable supertype does.
func (h hierarchy) inherited(t *model.TypeRoot, lookup func(*model.TypeRoot) *model.Member, keep func(model.Member) bool) (string, error) {
	supers, err := h.superclasses(t)
	if err != nil {
		return "", err
	}
	ifaces, err := h.superinterfaces(t)
	if err != nil {
		return "", err
	}

	for _, name := range append(supers, keys(ifaces)...) {
		st, err := h.find(name)
		if err != nil {
			return "", err
		}
		if st == nil {
			continue
		}
		if m := lookup(st); m != nil && keep(*m) {
			return name, nil
		}
	}
	return "", nil
}
