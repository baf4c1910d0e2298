package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/stackbuild/pkg/config"
	"github.com/matzehuels/stackbuild/pkg/dag"
	"github.com/matzehuels/stackbuild/pkg/pipeline"
)

// stageFlags are shared by the commands computing a closure.
type stageFlags struct {
	release string
	arch    string
	noCache bool
	refresh bool
	quiet   bool
}

func (f *stageFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.release, "release", "", "target release (default: build.release)")
	cmd.Flags().StringVar(&f.arch, "arch", "", "target architecture (default: build.arch)")
	cmd.Flags().BoolVar(&f.noCache, "no-cache", false, "disable caching")
	cmd.Flags().BoolVar(&f.refresh, "refresh", false, "ignore cached responses and closures")
}

// closure is a resolved and pruned dependency graph together with the
// runner and options that produced it.
type closure struct {
	ws     *config.Workspace
	runner *pipeline.Runner
	opts   pipeline.Options
	graph  *dag.DAG
	pruned *dag.DAG
	cached bool
}

func (c *closure) Close() error { return c.runner.Close() }

// resolveClosure runs the resolve and prune stages for seeds.
func (c *CLI) resolveClosure(ctx context.Context, seeds []string, f stageFlags) (*closure, error) {
	ws, err := c.loadWorkspace()
	if err != nil {
		return nil, err
	}
	runner, err := c.newRunner(ctx, ws, f.noCache, f.refresh)
	if err != nil {
		return nil, err
	}
	opts := pipelineOptions(ws, seeds, f.release, f.arch)
	opts.Refresh = f.refresh
	if err := opts.ValidateForResolve(); err != nil {
		runner.Close()
		return nil, err
	}

	spin := newSpinner(os.Stderr, "Resolving "+fmt.Sprint(len(opts.Seeds))+" seeds")
	if !f.quiet && c.Logger.GetLevel() > log.DebugLevel {
		spin.Start()
	}
	defer spin.Stop()

	prog := newProgress(c.Logger)
	g, hit, err := runner.ResolveWithCacheInfo(ctx, opts)
	if err != nil {
		runner.Close()
		return nil, err
	}

	pruned := g
	if opts.Release != "" {
		spin.Update("Pruning against the ancestors of " + opts.Release)
		if pruned, err = runner.Prune(ctx, g, opts); err != nil {
			runner.Close()
			return nil, err
		}
	}
	spin.Stop()
	prog.done(fmt.Sprintf("Resolved %d packages", pruned.NodeCount()))

	return &closure{ws: ws, runner: runner, opts: opts, graph: g, pruned: pruned, cached: hit}, nil
}
