// Package deps resolves library versions and builds the transitive
// dependency closure of a set of packages.
//
// # Overview
//
// A stackbuild workspace mixes two dependency universes:
//
//   - Components and meta nodes, described by a [MetadataProvider] (usually
//     the workspace configuration). Their dependencies are plain names.
//   - Libraries from RubyGems, resolved against an [Index]. Their
//     dependencies carry version constraints.
//
// Components reach into the library universe with "gem:" declarations:
//
//	gem:utilrb >= 3.0, < 4
//
// # Version Resolution
//
// [VersionResolver.Resolve] picks the newest published version satisfying
// every accumulated constraint. Prereleases are only considered when a
// constraint names one.
//
// # Closure
//
// [Closure.Build] expands seeds round by round until nothing new turns up.
// Each round resolves its frontier concurrently (bounded by
// Options.Concurrency). Constraints on a library accumulate across all of its
// dependents; a library whose chosen version is invalidated by a later
// constraint is resolved again. The result is a [dag.DAG] with namespaced IDs
// ("component:x", "library:x", "meta:x").
//
// # Options
//
// [Options] controls resolution behavior:
//
//   - MaxRounds, MaxNodes: Divergence bounds (defaults 1000 and 5000)
//   - Concurrency: Lookups in flight per round (default 8)
//   - CacheTTL, Refresh: Registry response caching
//   - Policies: Dependency rewrites such as [PreferFirst]
//   - Constraints: Workspace-wide library pins
//   - Logger: Debug progress
package deps
