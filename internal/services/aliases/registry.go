package aliases

import (
	"slices"
	"sort"
	"strings"
)

// Registry maps a canonical brand name to its alternate spellings. It is
// built once per scan and never mutated, so concurrent readers need no locking.
type Registry struct {
	entries map[string][]string
}

// NewRegistry copies entries into an immutable registry keyed by lowercase name.
func NewRegistry(entries map[string][]string) Registry {
	r := Registry{entries: make(map[string][]string, len(entries))}
	for name, list := range entries {
		r.entries[key(name)] = slices.Clone(list)
	}
	return r
}

// Lookup returns the aliases of name (without the name itself).
func (r Registry) Lookup(name string) []string {
	return slices.Clone(r.entries[key(name)])
}

// Names returns the canonical keys in sorted order.
func (r Registry) Names() []string {
	out := make([]string, 0, len(r.entries))
	for k := range r.entries {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (r Registry) Len() int { return len(r.entries) }

func key(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
