package deps

import (
	"context"
	"slices"

	"github.com/matzehuels/stackbuild/pkg/dag"
)

// Policy rewrites the dependency list of a node before the closure builder
// expands it. Policies see every component, meta and library node.
type Policy interface {
	Apply(ctx context.Context, node *dag.Node, deps []Dependency) ([]Dependency, error)
}

// PolicyFunc adapts a function to the Policy interface.
type PolicyFunc func(ctx context.Context, node *dag.Node, deps []Dependency) ([]Dependency, error)

// Apply calls f.
func (f PolicyFunc) Apply(ctx context.Context, node *dag.Node, deps []Dependency) ([]Dependency, error) {
	return f(ctx, node, deps)
}

// PreferFirst returns a policy for mutually exclusive alternatives, such as
// optional backends of which only one may be installed. When a node depends
// on several names from alternatives, only the one listed first is kept.
func PreferFirst(alternatives ...string) Policy {
	return PolicyFunc(func(_ context.Context, _ *dag.Node, deps []Dependency) ([]Dependency, error) {
		best := -1
		for _, d := range deps {
			if i := slices.Index(alternatives, d.Name); i >= 0 && (best < 0 || i < best) {
				best = i
			}
		}
		if best < 0 {
			return deps, nil
		}
		return slices.DeleteFunc(slices.Clone(deps), func(d Dependency) bool {
			i := slices.Index(alternatives, d.Name)
			return i >= 0 && i != best
		}), nil
	})
}

// Exclude returns a policy dropping dependencies on the given names, for
// packages provided by the base system.
func Exclude(names ...string) Policy {
	return PolicyFunc(func(_ context.Context, _ *dag.Node, deps []Dependency) ([]Dependency, error) {
		return slices.DeleteFunc(slices.Clone(deps), func(d Dependency) bool {
			return slices.Contains(names, d.Name)
		}), nil
	})
}
