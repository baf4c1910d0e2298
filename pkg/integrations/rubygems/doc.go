// Package rubygems provides an HTTP client for the RubyGems.org API.
//
// # Overview
//
// The resolver needs two things from RubyGems: the list of published versions
// of a gem, and the runtime dependencies of one chosen version.
//
//	client := rubygems.NewClient(backend, 24*time.Hour)
//
//	releases, err := client.FetchVersions(ctx, "utilrb", false)
//	deps, err := client.FetchDependencies(ctx, "utilrb", "3.1.0", false)
//
// # Caching
//
// Responses are cached to reduce load on RubyGems. The cache TTL is set
// when creating the client. Pass refresh=true to bypass the cache.
//
// # Dependency Filtering
//
// Only runtime dependencies are included. Development dependencies are
// filtered out. Gem names are normalized to lowercase, and duplicate entries
// are merged by joining their requirement strings.
package rubygems
