package connection

import (
	"slices"
)

// groupSet is the desired group membership. It is owned by the manager's
// actor goroutine and never cleared by a disconnect.
type groupSet map[string]struct{}

func newGroupSet(names []string) groupSet {
	g := make(groupSet, len(names))
	for _, n := range names {
		if n != "" {
			g[n] = struct{}{}
		}
	}
	return g
}

// add reports whether name was not already present.
func (g groupSet) add(name string) bool {
	if _, ok := g[name]; ok {
		return false
	}
	g[name] = struct{}{}
	return true
}

// remove reports whether name was present.
func (g groupSet) remove(name string) bool {
	if _, ok := g[name]; !ok {
		return false
	}
	delete(g, name)
	return true
}

// names returns the groups in sorted order so rejoin is deterministic.
func (g groupSet) names() []string {
	out := make([]string, 0, len(g))
	for n := range g {
		out = append(out, n)
	}
	slices.Sort(out)
	return out
}
