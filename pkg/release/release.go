package release

import (
	"slices"
	"strings"

	"github.com/matzehuels/stackbuild/pkg/errors"
)

// Release is a named target environment that built packages are published
// into. DependsOn lists ancestor releases, closest first; a package already
// published by an ancestor is not rebuilt.
type Release struct {
	Name          string   `toml:"name" json:"name"`
	Architectures []string `toml:"arch" json:"arch,omitempty"`
	DependsOn     []string `toml:"depends_on" json:"depends_on,omitempty"`

	// Ephemeral marks a release whose content changes while a run is in
	// progress. Lookups against it are never persisted.
	Ephemeral bool `toml:"ephemeral" json:"ephemeral,omitempty"`
}

// Supports reports whether the release builds for arch. A release without
// declared architectures accepts any.
func (r *Release) Supports(arch string) bool {
	return len(r.Architectures) == 0 || slices.Contains(r.Architectures, arch)
}

// Hierarchy is a validated set of releases and their ancestor relations.
type Hierarchy struct {
	releases map[string]*Release
	order    []string
}

// NewHierarchy validates releases and builds a hierarchy. It fails with an
// ErrCodeInvalidRelease error for invalid or duplicate names, unknown
// ancestors, a release depending on itself and any other cycle.
func NewHierarchy(releases ...Release) (*Hierarchy, error) {
	h := &Hierarchy{releases: make(map[string]*Release, len(releases))}
	for _, r := range releases {
		if err := errors.ValidateReleaseName(r.Name); err != nil {
			return nil, err
		}
		if _, dup := h.releases[r.Name]; dup {
			return nil, errors.New(errors.ErrCodeInvalidRelease, "duplicate release: %s", r.Name)
		}
		for _, a := range r.Architectures {
			if err := errors.ValidateArch(a); err != nil {
				return nil, err
			}
		}
		r.Architectures = slices.Clone(r.Architectures)
		r.DependsOn = slices.Clone(r.DependsOn)
		h.releases[r.Name] = &r
		h.order = append(h.order, r.Name)
	}

	for _, name := range h.order {
		for _, dep := range h.releases[name].DependsOn {
			if dep == name {
				return nil, errors.New(errors.ErrCodeInvalidRelease, "release %s depends on itself", name)
			}
			if _, ok := h.releases[dep]; !ok {
				return nil, errors.New(errors.ErrCodeInvalidRelease, "release %s depends on unknown release %s", name, dep)
			}
		}
	}
	if cycle := h.findCycle(); cycle != nil {
		return nil, errors.New(errors.ErrCodeInvalidRelease, "release dependency cycle: %s", strings.Join(cycle, " -> "))
	}
	return h, nil
}

// Get returns the named release.
func (h *Hierarchy) Get(name string) (*Release, bool) {
	r, ok := h.releases[name]
	return r, ok
}

// Names returns release names in declaration order.
func (h *Hierarchy) Names() []string { return slices.Clone(h.order) }

// Chain returns the ancestors of name, transitively and without
// duplicates. Direct ancestors come first in declaration order, each
// followed by its own ancestors, so closer releases are queried before
// more distant ones.
func (h *Hierarchy) Chain(name string) ([]*Release, error) {
	if _, ok := h.releases[name]; !ok {
		return nil, &errors.NotFoundError{Name: "release " + name}
	}
	seen := map[string]bool{name: true}
	var chain []*Release
	var walk func(string)
	walk = func(n string) {
		for _, dep := range h.releases[n].DependsOn {
			if seen[dep] {
				continue
			}
			seen[dep] = true
			chain = append(chain, h.releases[dep])
			walk(dep)
		}
	}
	walk(name)
	return chain, nil
}

// Target resolves a build target for one release and architecture.
func (h *Hierarchy) Target(name, arch string) (Target, error) {
	if err := errors.ValidateArch(arch); err != nil {
		return Target{}, err
	}
	r, ok := h.releases[name]
	if !ok {
		return Target{}, &errors.NotFoundError{Name: "release " + name}
	}
	if !r.Supports(arch) {
		return Target{}, errors.New(errors.ErrCodeInvalidRelease, "release %s does not build for %s", name, arch)
	}
	chain, err := h.Chain(name)
	if err != nil {
		return Target{}, err
	}
	return Target{Release: r, Arch: arch, Ancestors: chain}, nil
}

func (h *Hierarchy) findCycle() []string {
	const (
		white = iota
		gray
		black
	)
	color := make(map[string]int, len(h.releases))
	var path []string
	var visit func(string) []string
	visit = func(n string) []string {
		color[n] = gray
		path = append(path, n)
		for _, dep := range h.releases[n].DependsOn {
			switch color[dep] {
			case gray:
				i := slices.Index(path, dep)
				return append(slices.Clone(path[i:]), dep)
			case white:
				if c := visit(dep); c != nil {
					return c
				}
			}
		}
		path = path[:len(path)-1]
		color[n] = black
		return nil
	}
	for _, n := range h.order {
		if color[n] == white {
			if c := visit(n); c != nil {
				return c
			}
		}
	}
	return nil
}

// Target is a release and architecture being built, with its resolved
// ancestor chain.
type Target struct {
	Release   *Release
	Arch      string
	Ancestors []*Release
}

// String renders the target as "release/arch".
func (t Target) String() string {
	if t.Release == nil {
		return "/" + t.Arch
	}
	return t.Release.Name + "/" + t.Arch
}
