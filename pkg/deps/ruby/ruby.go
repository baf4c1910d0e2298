package ruby

import (
	"context"
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/matzehuels/stackbuild/pkg/cache"
	"github.com/matzehuels/stackbuild/pkg/deps"
	bserrors "github.com/matzehuels/stackbuild/pkg/errors"
	"github.com/matzehuels/stackbuild/pkg/integrations"
	"github.com/matzehuels/stackbuild/pkg/integrations/rubygems"
)

// Index serves library versions and dependencies from RubyGems.
type Index struct {
	client  *rubygems.Client
	refresh bool
}

// NewIndex creates an index backed by RubyGems.org. Responses are cached in
// backend for ttl; refresh bypasses cached entries.
func NewIndex(backend cache.Cache, ttl time.Duration, refresh bool) *Index {
	return &Index{client: rubygems.NewClient(backend, ttl), refresh: refresh}
}

// NewIndexWithClient wraps an existing client, for mirrors and tests.
func NewIndexWithClient(client *rubygems.Client, refresh bool) *Index {
	return &Index{client: client, refresh: refresh}
}

// Versions lists published version numbers of a gem.
func (x *Index) Versions(ctx context.Context, name string) ([]string, error) {
	releases, err := x.client.FetchVersions(ctx, name, x.refresh)
	if err != nil {
		return nil, mapErr(name, err)
	}
	out := make([]string, len(releases))
	for i, r := range releases {
		out[i] = r.Number
	}
	return out, nil
}

// Dependencies returns the runtime dependencies of a gem version.
func (x *Index) Dependencies(ctx context.Context, name, version string) ([]deps.Requirement, error) {
	ds, err := x.client.FetchDependencies(ctx, name, version, x.refresh)
	if err != nil {
		return nil, mapErr(name+" "+version, err)
	}
	out := make([]deps.Requirement, len(ds))
	for i, d := range ds {
		out[i] = deps.Requirement{Name: d.Name, Constraints: splitRequirements(d.Requirements)}
	}
	return out, nil
}

func mapErr(name string, err error) error {
	if errors.Is(err, integrations.ErrNotFound) {
		return &bserrors.NotFoundError{Name: name, Err: err}
	}
	if errors.Is(err, integrations.ErrNetwork) {
		return bserrors.Wrap(bserrors.ErrCodeNetwork, err, "rubygems lookup of %s", name)
	}
	return err
}

// splitRequirements splits "~> 3.0, >= 3.0.1" into its constraints. ">= 0"
// carries no information and is dropped.
func splitRequirements(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" || part == ">= 0" || slices.Contains(out, part) {
			continue
		}
		out = append(out, part)
	}
	return out
}

// Ensure Index implements deps.Index.
var _ deps.Index = (*Index)(nil)
