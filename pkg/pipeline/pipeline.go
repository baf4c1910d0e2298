// Package pipeline provides the resolve, prune, order and build stages of
// stackbuild as one reusable unit.
//
// The CLI and the status server both drive builds through this package so
// that every entry point resolves, prunes and schedules the same way.
//
// # Architecture
//
// The pipeline consists of four stages:
//
//  1. Resolve: expand the seed packages into their transitive closure
//  2. Prune: drop packages an ancestor release already publishes
//  3. Order: compute a deterministic build order (rejects cycles)
//  4. Build: run the build callback for every job with bounded parallelism
//
// Each stage can be run independently or as part of the complete pipeline.
//
// # Usage
//
//	runner := pipeline.NewRunner(cache, nil, logger)
//	runner.Provider = workspace
//	runner.Index = ruby.NewIndex(cache, 24*time.Hour, false)
//	runner.Releases = hierarchy
//	runner.Packages = apt.NewClient(repoURL, "")
//
//	result, err := runner.Execute(ctx, pipeline.Options{
//	    Seeds:   []string{"rock-core"},
//	    Release: "master-21.06",
//	    Arch:    "amd64",
//	    Build:   builder.Build,
//	})
package pipeline

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/stackbuild/pkg/dag"
	"github.com/matzehuels/stackbuild/pkg/deps"
	"github.com/matzehuels/stackbuild/pkg/errors"
	"github.com/matzehuels/stackbuild/pkg/release"
	"github.com/matzehuels/stackbuild/pkg/scheduler"
	"github.com/matzehuels/stackbuild/pkg/status"
)

const (
	// DefaultParallel is the default number of concurrent builds.
	DefaultParallel = 4

	// DefaultClosureTTL is how long a resolved closure stays cached.
	DefaultClosureTTL = time.Hour
)

// Options contains all configuration for a pipeline run.
type Options struct {
	// Resolve options
	Seeds       []string           `json:"seeds"`
	Pins        deps.ConstraintSet `json:"pins,omitempty"`
	MaxRounds   int                `json:"max_rounds,omitempty"`
	MaxNodes    int                `json:"max_nodes,omitempty"`
	Fingerprint string             `json:"fingerprint,omitempty"` // Workspace identity; enables closure caching
	Refresh     bool               `json:"refresh,omitempty"`

	// Prune options
	Release   string         `json:"release,omitempty"`
	Arch      string         `json:"arch,omitempty"`
	Blacklist []string       `json:"blacklist,omitempty"`
	Naming    release.Naming `json:"naming,omitempty"`

	// Order options
	Priorities []dag.PriorityGroup `json:"priorities,omitempty"`

	// Build options
	Parallel    int           `json:"parallel,omitempty"`
	IdleTimeout time.Duration `json:"idle_timeout,omitempty"`
	Finished    []string      `json:"finished,omitempty"` // Already built by an earlier run
	RunID       string        `json:"run_id,omitempty"`

	// Runtime options (not serialized)
	Policies  []deps.Policy           `json:"-"`
	Build     scheduler.BuildFunc     `json:"-"`
	KeepAlive scheduler.KeepAliveFunc `json:"-"`
	Sink      status.Sink             `json:"-"`
	Events    func(scheduler.Event)   `json:"-"`
	Logger    *log.Logger             `json:"-"`

	// validated tracks whether ValidateAndSetDefaults has been called.
	validated bool
}

// Result contains the outputs of a pipeline run.
type Result struct {
	// Graph is the resolved closure.
	Graph *dag.DAG

	// Pruned is Graph without the packages an ancestor release publishes.
	Pruned *dag.DAG

	// Order lists the IDs of Pruned in build order.
	Order []string

	// Report is the scheduler's account of the build.
	Report *scheduler.Report

	// Stats contains timing and size information.
	Stats Stats

	// CacheInfo tracks which stages hit the cache.
	CacheInfo CacheInfo
}

// Stats contains pipeline execution statistics.
type Stats struct {
	NodeCount   int
	EdgeCount   int
	PrunedCount int
	JobCount    int
	ResolveTime time.Duration
	PruneTime   time.Duration
	OrderTime   time.Duration
	BuildTime   time.Duration
}

// CacheInfo tracks cache hits for each pipeline stage.
type CacheInfo struct {
	ResolveHit bool // Whether the closure came from cache
}

// ValidateAndSetDefaults checks required fields and applies defaults for the full pipeline.
// This method is idempotent - calling it multiple times has the same effect as calling it once.
func (o *Options) ValidateAndSetDefaults() error {
	if o.validated {
		return nil
	}
	if err := o.ValidateForResolve(); err != nil {
		return err
	}
	if err := o.ValidateForPrune(); err != nil {
		return err
	}
	if err := o.ValidateForBuild(); err != nil {
		return err
	}
	o.validated = true
	return nil
}

// ValidateForResolve checks the seeds.
func (o *Options) ValidateForResolve() error {
	if len(o.Seeds) == 0 {
		return errors.New(errors.ErrCodeInvalidInput, "at least one seed package is required")
	}
	for _, s := range o.Seeds {
		if _, err := deps.ParseDependency(s); err != nil {
			return fmt.Errorf("seed %q: %w", s, err)
		}
	}
	o.setLogger()
	return nil
}

// ValidateForPrune checks the target. An empty release disables pruning.
func (o *Options) ValidateForPrune() error {
	o.Naming = o.Naming.WithDefaults()
	o.setLogger()
	if o.Release == "" {
		if o.Arch != "" {
			return errors.New(errors.ErrCodeInvalidInput, "arch %s given without a release", o.Arch)
		}
		return nil
	}
	if err := errors.ValidateReleaseName(o.Release); err != nil {
		return err
	}
	if o.Arch == "" {
		return errors.New(errors.ErrCodeInvalidInput, "arch is required with release %s", o.Release)
	}
	return errors.ValidateArch(o.Arch)
}

// ValidateForBuild checks the build callback and applies scheduling defaults.
func (o *Options) ValidateForBuild() error {
	if o.Build == nil {
		return errors.New(errors.ErrCodeInvalidInput, "build callback is required")
	}
	if o.Parallel <= 0 {
		o.Parallel = DefaultParallel
	}
	if o.IdleTimeout <= 0 {
		o.IdleTimeout = scheduler.DefaultIdleTimeout
	}
	o.setLogger()
	return nil
}

// Target returns "release/arch", or "" when pruning is disabled.
func (o *Options) Target() string {
	if o.Release == "" {
		return ""
	}
	return o.Release + "/" + o.Arch
}

// ClosureOptions returns the options for the closure builder.
func (o *Options) ClosureOptions() deps.Options {
	return deps.Options{
		MaxRounds:   o.MaxRounds,
		MaxNodes:    o.MaxNodes,
		Refresh:     o.Refresh,
		Policies:    o.Policies,
		Constraints: o.Pins,
		Logger:      o.Logger,
	}
}

func (o *Options) setLogger() {
	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
}
