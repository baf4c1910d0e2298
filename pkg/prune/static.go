package prune

import (
	"context"
	"sync"
)

// StaticIndex is an in-memory [PackageIndex].
type StaticIndex struct {
	mu       sync.RWMutex
	packages map[string]map[string]bool // "release/arch" -> package names
	queries  int
}

// NewStaticIndex creates an empty index.
func NewStaticIndex() *StaticIndex {
	return &StaticIndex{packages: make(map[string]map[string]bool)}
}

// Add publishes package names in a release for arch.
func (x *StaticIndex) Add(release, arch string, names ...string) *StaticIndex {
	x.mu.Lock()
	defer x.mu.Unlock()
	k := release + "/" + arch
	if x.packages[k] == nil {
		x.packages[k] = make(map[string]bool)
	}
	for _, n := range names {
		x.packages[k][n] = true
	}
	return x
}

// Exists implements [PackageIndex].
func (x *StaticIndex) Exists(_ context.Context, name, release, arch string) (bool, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.queries++
	return x.packages[release+"/"+arch][name], nil
}

// Queries returns how many lookups were made.
func (x *StaticIndex) Queries() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.queries
}

var _ PackageIndex = (*StaticIndex)(nil)
