// Package pkg holds the libraries of stackbuild, a dependency resolver and
// concurrent build scheduler for Debian package stacks.
//
// # Overview
//
// A stack consists of natively built components, RubyGems libraries and
// meta packages grouping them. Stackbuild computes the transitive closure of
// a set of seed packages, removes what an ancestor release already
// publishes, orders the rest and builds it with bounded parallelism:
//
//	stackbuild.toml + RubyGems
//	         ↓
//	    [deps] closure builder (versions via [version])
//	         ↓
//	    [prune] release-hierarchy pruning (APT index via [integrations/apt])
//	         ↓
//	    [dag] topological order
//	         ↓
//	    [scheduler] concurrent build, progress persisted by [status]
//
// [pipeline] wires the stages together; [config] loads workspaces; [render]
// draws graphs; [server] serves build status over HTTP.
//
// # Infrastructure
//
//   - [cache]: response, membership and closure caching (memory, file, Redis)
//   - [errors]: coded errors shared by all packages
//   - [observability]: hooks for metrics and tracing
//   - [io]: JSON import and export of graphs
//
// # Quick Start
//
//	ws, err := config.Load("stackbuild.toml")
//	if err != nil {
//	    return err
//	}
//	runner := pipeline.NewRunner(cache.NewMemoryCache(), nil, logger)
//	runner.Provider = ws
//	runner.Index = ws.LocalIndex()
//	runner.Releases = ws.Releases()
//
//	result, err := runner.Execute(ctx, pipeline.Options{
//	    Seeds: ws.Seeds(),
//	    Build: builder.Build,
//	})
//
// [cache]: https://pkg.go.dev/github.com/matzehuels/stackbuild/pkg/cache
// [config]: https://pkg.go.dev/github.com/matzehuels/stackbuild/pkg/config
// [dag]: https://pkg.go.dev/github.com/matzehuels/stackbuild/pkg/dag
// [deps]: https://pkg.go.dev/github.com/matzehuels/stackbuild/pkg/deps
// [errors]: https://pkg.go.dev/github.com/matzehuels/stackbuild/pkg/errors
// [integrations/apt]: https://pkg.go.dev/github.com/matzehuels/stackbuild/pkg/integrations/apt
// [io]: https://pkg.go.dev/github.com/matzehuels/stackbuild/pkg/io
// [observability]: https://pkg.go.dev/github.com/matzehuels/stackbuild/pkg/observability
// [pipeline]: https://pkg.go.dev/github.com/matzehuels/stackbuild/pkg/pipeline
// [prune]: https://pkg.go.dev/github.com/matzehuels/stackbuild/pkg/prune
// [render]: https://pkg.go.dev/github.com/matzehuels/stackbuild/pkg/render
// [scheduler]: https://pkg.go.dev/github.com/matzehuels/stackbuild/pkg/scheduler
// [server]: https://pkg.go.dev/github.com/matzehuels/stackbuild/pkg/server
// [status]: https://pkg.go.dev/github.com/matzehuels/stackbuild/pkg/status
// [version]: https://pkg.go.dev/github.com/matzehuels/stackbuild/pkg/version
package pkg
