package rubygems

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/matzehuels/stackbuild/pkg/cache"
	"github.com/matzehuels/stackbuild/pkg/integrations"
)

// DefaultBaseURL is the public RubyGems.org host.
const DefaultBaseURL = "https://rubygems.org"

// Release is one published version of a gem.
type Release struct {
	Number     string `json:"number"`     // Version number (e.g., "3.1.0")
	Platform   string `json:"platform"`   // "ruby" for pure gems
	Prerelease bool   `json:"prerelease"` // Whether RubyGems flags it as prerelease
}

// Dependency is a runtime dependency of a gem version.
type Dependency struct {
	Name         string `json:"name"`         // Gem name, normalized lowercase
	Requirements string `json:"requirements"` // Comma-separated constraints (e.g., ">= 1.0, < 2")
}

// Client provides access to the RubyGems.org API.
// It handles HTTP requests with caching and automatic retries.
//
// All methods are safe for concurrent use by multiple goroutines.
type Client struct {
	*integrations.Client
	baseURL string
}

// NewClient creates a RubyGems client with the given cache backend.
//
// Parameters:
//   - backend: Cache backend for HTTP response caching (nil disables caching)
//   - cacheTTL: How long responses are cached (typical: 1-24 hours)
func NewClient(backend cache.Cache, cacheTTL time.Duration) *Client {
	return NewClientWithURL(backend, cacheTTL, DefaultBaseURL)
}

// NewClientWithURL creates a client for a RubyGems-compatible server such as
// a gem mirror.
func NewClientWithURL(backend cache.Cache, cacheTTL time.Duration, baseURL string) *Client {
	return &Client{
		Client:  integrations.NewClient(backend, "rubygems", cacheTTL, nil),
		baseURL: strings.TrimSuffix(baseURL, "/"),
	}
}

// FetchVersions lists the published versions of a gem. Platform-specific
// builds are dropped; only "ruby" platform releases are returned.
//
// Returns [integrations.ErrNotFound] if the gem doesn't exist.
func (c *Client) FetchVersions(ctx context.Context, gem string, refresh bool) ([]Release, error) {
	gem = integrations.NormalizePkgName(gem)

	var releases []Release
	err := c.Cached(ctx, "versions/"+gem, refresh, &releases, func() error {
		return c.fetchVersions(ctx, gem, &releases)
	})
	if err != nil {
		return nil, err
	}
	return releases, nil
}

func (c *Client) fetchVersions(ctx context.Context, gem string, out *[]Release) error {
	var data []Release
	url := fmt.Sprintf("%s/api/v1/versions/%s.json", c.baseURL, integrations.URLEncode(gem))
	if err := c.Get(ctx, url, &data); err != nil {
		if errors.Is(err, integrations.ErrNotFound) {
			return fmt.Errorf("%w: gem %s", err, gem)
		}
		return err
	}

	seen := make(map[string]bool)
	releases := make([]Release, 0, len(data))
	for _, r := range data {
		if r.Platform != "" && r.Platform != "ruby" {
			continue
		}
		if seen[r.Number] {
			continue
		}
		seen[r.Number] = true
		releases = append(releases, r)
	}
	*out = releases
	return nil
}

// FetchDependencies returns the runtime dependencies of one gem version.
// Development dependencies are excluded.
//
// Returns [integrations.ErrNotFound] if the gem or version doesn't exist.
func (c *Client) FetchDependencies(ctx context.Context, gem, version string, refresh bool) ([]Dependency, error) {
	gem = integrations.NormalizePkgName(gem)

	var deps []Dependency
	err := c.Cached(ctx, "deps/"+gem+"@"+version, refresh, &deps, func() error {
		return c.fetchDependencies(ctx, gem, version, &deps)
	})
	if err != nil {
		return nil, err
	}
	return deps, nil
}

func (c *Client) fetchDependencies(ctx context.Context, gem, version string, out *[]Dependency) error {
	var data versionResponse
	url := fmt.Sprintf("%s/api/v2/rubygems/%s/versions/%s.json",
		c.baseURL, integrations.URLEncode(gem), integrations.URLEncode(version))
	if err := c.Get(ctx, url, &data); err != nil {
		if errors.Is(err, integrations.ErrNotFound) {
			return fmt.Errorf("%w: gem %s %s", err, gem, version)
		}
		return err
	}
	*out = runtimeDeps(data.Dependencies.Runtime)
	return nil
}

// runtimeDeps normalizes names and merges duplicate entries, joining their
// requirements.
func runtimeDeps(deps []Dependency) []Dependency {
	index := make(map[string]int)
	var result []Dependency
	for _, d := range deps {
		name := integrations.NormalizePkgName(d.Name)
		req := strings.TrimSpace(d.Requirements)
		if i, ok := index[name]; ok {
			if req != "" {
				result[i].Requirements = joinReq(result[i].Requirements, req)
			}
			continue
		}
		index[name] = len(result)
		result = append(result, Dependency{Name: name, Requirements: req})
	}
	return result
}

func joinReq(a, b string) string {
	if a == "" {
		return b
	}
	return a + ", " + b
}

type versionResponse struct {
	Name         string `json:"name"`
	Version      string `json:"version"`
	Dependencies struct {
		Runtime     []Dependency `json:"runtime"`
		Development []Dependency `json:"development"`
	} `json:"dependencies"`
}
