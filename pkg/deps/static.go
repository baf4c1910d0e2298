package deps

import (
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/matzehuels/stackbuild/pkg/errors"
)

// StaticIndex is an in-memory [Index]. It serves gems declared in a
// workspace without a registry and is the index used in tests.
type StaticIndex struct {
	mu   sync.RWMutex
	gems map[string]map[string][]Requirement // name -> version -> deps
}

// NewStaticIndex creates an empty index.
func NewStaticIndex() *StaticIndex {
	return &StaticIndex{gems: make(map[string]map[string][]Requirement)}
}

// Add publishes a version of a library with its dependencies.
func (x *StaticIndex) Add(name, version string, deps ...Requirement) *StaticIndex {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.gems[name] == nil {
		x.gems[name] = make(map[string][]Requirement)
	}
	x.gems[name][version] = deps
	return x
}

// Versions returns the published versions of name in sorted string order.
func (x *StaticIndex) Versions(ctx context.Context, name string) ([]string, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	versions, ok := x.gems[name]
	if !ok {
		return nil, &errors.NotFoundError{Name: name}
	}
	return slices.Sorted(maps.Keys(versions)), nil
}

// Dependencies returns the dependencies of one published version.
func (x *StaticIndex) Dependencies(ctx context.Context, name, version string) ([]Requirement, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	deps, ok := x.gems[name][version]
	if !ok {
		return nil, &errors.NotFoundError{Name: name + " " + version}
	}
	return slices.Clone(deps), nil
}

// Ensure StaticIndex implements Index.
var _ Index = (*StaticIndex)(nil)
