package reconcile

import "sort"

// Set is a set of image basenames.
type Set map[string]struct{}

// NewSet builds a Set from items.
func NewSet(items ...string) Set {
	s := make(Set, len(items))
	for _, it := range items {
		s[it] = struct{}{}
	}
	return s
}

func (s Set) Add(item string) {
	s[item] = struct{}{}
}

func (s Set) Has(item string) bool {
	_, ok := s[item]
	return ok
}

// Minus returns the items of s not in other.
func (s Set) Minus(other Set) Set {
	out := make(Set)
	for it := range s {
		if !other.Has(it) {
			out[it] = struct{}{}
		}
	}
	return out
}

// Sorted returns the items in ascending order.
func (s Set) Sorted() []string {
	out := make([]string, 0, len(s))
	for it := range s {
		out = append(out, it)
	}
	sort.Strings(out)
	return out
}
