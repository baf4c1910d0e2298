package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/stackbuild/pkg/cache"
	"github.com/matzehuels/stackbuild/pkg/dag"
	"github.com/matzehuels/stackbuild/pkg/deps"
	"github.com/matzehuels/stackbuild/pkg/errors"
	graphio "github.com/matzehuels/stackbuild/pkg/io"
	"github.com/matzehuels/stackbuild/pkg/observability"
	"github.com/matzehuels/stackbuild/pkg/prune"
	"github.com/matzehuels/stackbuild/pkg/release"
	"github.com/matzehuels/stackbuild/pkg/scheduler"
)

// Runner encapsulates pipeline execution with caching.
//
// Provider and Index feed the closure builder; Releases and Packages feed
// the pruning stage and may be nil when no release is targeted. Membership
// answers are remembered for the lifetime of the Runner, so several targets
// pruned by one Runner share lookups. Multiple goroutines can safely use the
// same Runner with different options.
type Runner struct {
	Provider deps.MetadataProvider
	Index    deps.Index
	Releases *release.Hierarchy
	Packages prune.PackageIndex

	Cache  cache.Cache
	Keyer  cache.Keyer
	Logger *log.Logger

	membersOnce sync.Once
	members     *prune.MembershipCache
}

// NewRunner creates a runner with the given cache and keyer.
// If keyer is nil, a DefaultKeyer is used.
// If cache is nil, a NullCache is used (caching disabled).
func NewRunner(c cache.Cache, keyer cache.Keyer, logger *log.Logger) *Runner {
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{
		Cache:  c,
		Keyer:  keyer,
		Logger: logger,
	}
}

// Execute runs the complete resolve → prune → order → build pipeline.
//
// Resolution and ordering errors are returned as they are. Build failures
// are recorded in Result.Report; a cancelled build returns the partial
// report without error.
func (r *Runner) Execute(ctx context.Context, opts Options) (*Result, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}
	r.applyLogger(&opts)

	result := &Result{}

	// Stage 1: Resolve
	resolveStart := time.Now()
	g, hit, err := r.ResolveWithCacheInfo(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("resolve: %w", err)
	}
	result.Graph = g
	result.Stats.ResolveTime = time.Since(resolveStart)
	result.Stats.NodeCount = g.NodeCount()
	result.Stats.EdgeCount = g.EdgeCount()
	result.CacheInfo.ResolveHit = hit

	r.Logger.Info("resolved dependencies",
		"nodes", g.NodeCount(),
		"edges", g.EdgeCount(),
		"cached", hit,
		"duration", result.Stats.ResolveTime)

	// Stage 2: Prune
	pruneStart := time.Now()
	pruned, err := r.Prune(ctx, g, opts)
	if err != nil {
		return result, fmt.Errorf("prune: %w", err)
	}
	result.Pruned = pruned
	result.Stats.PruneTime = time.Since(pruneStart)
	result.Stats.PrunedCount = g.NodeCount() - pruned.NodeCount()

	// Stage 3: Order
	orderStart := time.Now()
	order, err := r.Order(ctx, pruned, opts)
	if err != nil {
		return result, fmt.Errorf("order: %w", err)
	}
	result.Order = order
	result.Stats.OrderTime = time.Since(orderStart)
	result.Stats.JobCount = len(order)

	if err := ctx.Err(); err != nil {
		return result, &errors.CancelledError{Stage: "ordering", Err: err}
	}

	// Stage 4: Build
	buildStart := time.Now()
	report, err := r.Build(ctx, pruned, opts)
	result.Report = report
	result.Stats.BuildTime = time.Since(buildStart)
	if err != nil {
		return result, fmt.Errorf("build: %w", err)
	}

	r.Logger.Info("build finished",
		"jobs", len(order),
		"finished", report.Count(scheduler.Finished),
		"failed", report.Count(scheduler.Failed),
		"skipped", report.Count(scheduler.Skipped),
		"duration", result.Stats.BuildTime)

	return result, nil
}

// ResolveWithCacheInfo builds the closure of opts.Seeds and reports whether
// it came from the cache. Closures are cached only when opts.Fingerprint is
// set, since the cache cannot tell workspaces apart otherwise.
func (r *Runner) ResolveWithCacheInfo(ctx context.Context, opts Options) (*dag.DAG, bool, error) {
	if err := opts.ValidateForResolve(); err != nil {
		return nil, false, err
	}
	r.applyLogger(&opts)

	var cacheKey string
	if opts.Fingerprint != "" {
		cacheKey = r.Keyer.ClosureKey(opts.Seeds, closureFingerprint(opts))
		if !opts.Refresh {
			if data, hit, err := r.Cache.Get(ctx, cacheKey); err == nil && hit {
				if g, err := graphio.UnmarshalJSON(data); err == nil {
					observability.Cache().OnCacheHit(ctx, "closure")
					return g, true, nil
				}
			}
			observability.Cache().OnCacheMiss(ctx, "closure")
		}
	}

	hooks := observability.Pipeline()
	hooks.OnResolveStart(ctx, opts.Seeds)
	start := time.Now()

	closure := deps.NewClosure(r.Provider, r.Index, opts.ClosureOptions())
	g, err := closure.Build(ctx, opts.Seeds)
	hooks.OnResolveComplete(ctx, nodeCount(g), time.Since(start), err)
	if err != nil {
		if ctx.Err() != nil && !errors.Is(err, errors.ErrCodeCancelled) {
			return nil, false, &errors.CancelledError{Stage: "resolution", Err: err}
		}
		return nil, false, err
	}

	if cacheKey != "" {
		if data, err := graphio.MarshalJSON(g); err == nil {
			if err := r.Cache.Set(ctx, cacheKey, data, DefaultClosureTTL); err == nil {
				observability.Cache().OnCacheSet(ctx, "closure", len(data))
			}
		}
	}
	return g, false, nil
}

// Resolve is a convenience wrapper that calls ResolveWithCacheInfo and discards the cache hit info.
func (r *Runner) Resolve(ctx context.Context, opts Options) (*dag.DAG, error) {
	g, _, err := r.ResolveWithCacheInfo(ctx, opts)
	return g, err
}

// Prune removes the nodes an ancestor of opts.Release publishes for
// opts.Arch. Without a release the graph is returned unchanged.
func (r *Runner) Prune(ctx context.Context, g *dag.DAG, opts Options) (*dag.DAG, error) {
	if err := opts.ValidateForPrune(); err != nil {
		return nil, err
	}
	r.applyLogger(&opts)

	if opts.Release == "" {
		return g, nil
	}
	if r.Releases == nil {
		return nil, errors.New(errors.ErrCodeInvalidConfig, "no releases configured")
	}
	target, err := r.Releases.Target(opts.Release, opts.Arch)
	if err != nil {
		return nil, err
	}
	if len(target.Ancestors) == 0 {
		r.Logger.Debug("release has no ancestors, nothing to prune", "target", target)
		return g, nil
	}
	if r.Packages == nil {
		return nil, errors.New(errors.ErrCodeInvalidConfig, "no package index configured for pruning")
	}

	pruner := prune.NewPruner(r.membership(), prune.Options{
		Blacklist: opts.Blacklist,
		Naming:    opts.Naming,
		Logger:    opts.Logger,
	})
	return pruner.Prune(ctx, g, target)
}

// Order returns the build order of g, breaking ties with opts.Priorities.
func (r *Runner) Order(ctx context.Context, g *dag.DAG, opts Options) ([]string, error) {
	order, err := dag.Order(g, opts.Priorities)
	observability.Pipeline().OnOrderComplete(ctx, len(order), err)
	if err != nil {
		return nil, err
	}
	r.Logger.Debug("ordered build", "jobs", len(order))
	return order, nil
}

// Build schedules every node of g as a job.
func (r *Runner) Build(ctx context.Context, g *dag.DAG, opts Options) (*scheduler.Report, error) {
	if err := opts.ValidateForBuild(); err != nil {
		return nil, err
	}
	r.applyLogger(&opts)

	schedOpts := []scheduler.Option{
		scheduler.WithIdleTimeout(opts.IdleTimeout),
		scheduler.WithKeepAlive(opts.KeepAlive),
		scheduler.WithSink(opts.Sink),
		scheduler.WithLogger(opts.Logger),
		scheduler.WithPriorities(opts.Priorities),
		scheduler.WithEvents(opts.Events),
		scheduler.WithTarget(opts.Release, opts.Arch),
		scheduler.WithFinished(opts.Finished...),
	}
	if opts.RunID != "" {
		schedOpts = append(schedOpts, scheduler.WithRunID(opts.RunID))
	}
	return scheduler.Schedule(ctx, scheduler.Jobs(g), opts.Parallel, opts.Build, schedOpts...)
}

// Close releases resources held by the runner (primarily the cache).
func (r *Runner) Close() error {
	if r.Cache != nil {
		return r.Cache.Close()
	}
	return nil
}

func (r *Runner) membership() *prune.MembershipCache {
	r.membersOnce.Do(func() {
		r.members = prune.NewMembershipCache(r.Packages, r.Cache)
		r.members.SetKeyer(r.Keyer)
	})
	return r.members
}

// applyLogger sets the runner's logger on options if not already set.
func (r *Runner) applyLogger(opts *Options) {
	if opts.Logger == nil {
		opts.Logger = r.Logger
	}
}

func closureFingerprint(opts Options) string {
	data, _ := json.Marshal(struct {
		Fingerprint string
		Pins        deps.ConstraintSet
		MaxRounds   int
		MaxNodes    int
	}{opts.Fingerprint, opts.Pins, opts.MaxRounds, opts.MaxNodes})
	return cache.Hash(data)
}

func nodeCount(g *dag.DAG) int {
	if g == nil {
		return 0
	}
	return g.NodeCount()
}
