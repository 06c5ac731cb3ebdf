package comparator

import (
	"github.com/tidwall/btree"
)

func newSet(items ...string) *btree.Set[string] {
	var s btree.Set[string]
	for _, item := range items {
		s.Insert(item)
	}
	return &s
}

// union returns the sorted, de-duplicated union of the inputs
func union(lists ...[]string) []string {
	var s btree.Set[string]
	for _, list := range lists {
		for _, item := range list {
			s.Insert(item)
		}
	}
	return keys(&s)
}

func keys(s *btree.Set[string]) []string {
	out := make([]string, 0, s.Len())
	s.Scan(func(key string) bool {
		out = append(out, key)
		return true
	})
	return out
}

// difference returns the sorted items of a that are not in b
func difference(a, b *btree.Set[string]) []string {
	var out []string
	a.Scan(func(key string) bool {
		if !b.Contains(key) {
			out = append(out, key)
		}
		return true
	})
	return out
}
