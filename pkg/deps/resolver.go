package deps

import (
	"context"
	"fmt"

	"github.com/matzehuels/stackbuild/pkg/errors"
	"github.com/matzehuels/stackbuild/pkg/version"
)

// VersionResolver picks library versions from an [Index].
type VersionResolver struct {
	index Index
}

// NewVersionResolver creates a resolver over index.
func NewVersionResolver(index Index) *VersionResolver {
	return &VersionResolver{index: index}
}

// Resolve picks the newest published version of name satisfying every
// constraint and returns it with its direct dependencies.
//
// It fails with *errors.NotFoundError when the index does not know name and
// with *errors.UnsatisfiableConstraintError when no version matches. The
// choice only depends on the published versions and the constraints.
func (r *VersionResolver) Resolve(ctx context.Context, name string, constraints []string) (*version.Version, []Requirement, error) {
	req, err := version.ParseRequirement(constraints...)
	if err != nil {
		return nil, nil, fmt.Errorf("library %s: %w", name, err)
	}

	available, err := r.index.Versions(ctx, name)
	if err != nil {
		return nil, nil, err
	}

	v, ok := req.Select(available)
	if !ok {
		return nil, nil, &errors.UnsatisfiableConstraintError{
			Name:        name,
			Constraints: req.Strings(),
			Available:   sortedVersions(available),
		}
	}

	deps, err := r.index.Dependencies(ctx, name, v.String())
	if err != nil {
		return nil, nil, err
	}
	return v, deps, nil
}

// sortedVersions orders version strings by precedence, dropping unparseable ones.
func sortedVersions(available []string) []string {
	var vs []*version.Version
	for _, s := range available {
		if v, err := version.Parse(s); err == nil {
			vs = append(vs, v)
		}
	}
	version.Sort(vs)
	out := make([]string, len(vs))
	for i, v := range vs {
		out[i] = v.String()
	}
	return out
}
