package cli

import (
	"context"
	stderrors "errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/matzehuels/stackbuild/pkg/pipeline"
	"github.com/matzehuels/stackbuild/pkg/scheduler"
	"github.com/matzehuels/stackbuild/pkg/status"
)

// buildLogName is the CLI log file written while the progress view is shown.
const buildLogName = "stackbuild.log"

func (c *CLI) buildCommand() *cobra.Command {
	var (
		flags    stageFlags
		parallel int
		resume   bool
		tui      bool
	)

	cmd := &cobra.Command{
		Use:   "build [seed...]",
		Short: "Build the closure in dependency order",
		Long: `Build resolves and prunes the closure, then runs the workspace's build
script once per package with up to --parallel builds at a time. A package
is built only after all of its dependencies were built; dependents of a
failed package are skipped.

Progress is persisted to the status file after every job, so an
interrupted build can be continued with --resume.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			flags.quiet = tui

			cl, err := c.resolveClosure(ctx, args, flags)
			if err != nil {
				return err
			}
			defer cl.Close()

			cfg := cl.ws.Config.WithDefaults()
			opts := cl.opts
			if parallel > 0 {
				opts.Parallel = parallel
			}

			// Reject cycles before anything is built.
			order, err := cl.runner.Order(ctx, cl.pruned, opts)
			if err != nil {
				return err
			}

			store, sink, closeStore, err := statusStore(ctx, cl.ws)
			if err != nil {
				return err
			}
			defer closeStore()
			opts.Sink = sink

			if resume {
				if opts.Finished, err = resumable(ctx, store, opts.Release, opts.Arch); err != nil {
					return err
				}
			}

			logger := c.Logger
			if tui {
				fl, closer, err := fileLogger(cl.ws.Resolve(filepath.Join(cfg.Build.WorkDir, buildLogName)), c.Logger)
				if err != nil {
					return err
				}
				defer closer.Close()
				logger = fl
			}
			opts.Logger = logger

			builder, err := pipeline.NewScriptBuilder(cfg.Build.Script, pipeline.ScriptOptions{
				WorkDir: cl.ws.Resolve(cfg.Build.WorkDir),
				Release: opts.Release,
				Arch:    opts.Arch,
				Naming:  opts.Naming,
				Graph:   cl.pruned,
				Logger:  logger,
			})
			if err != nil {
				return err
			}
			opts.Build = builder.Build
			if cfg.Build.KeepAlive != "" {
				if opts.KeepAlive, err = pipeline.ScriptKeepAlive(cfg.Build.KeepAlive, logger); err != nil {
					return err
				}
			}

			if !tui {
				printInfo("Building %d jobs (%d already built)", len(order), len(opts.Finished))
			}

			var report *scheduler.Report
			if tui {
				title := opts.Target()
				if title == "" {
					title = cl.ws.Path()
				}
				report, err = runWithTUI(ctx, title, len(order), func(ctx context.Context, events func(scheduler.Event)) (*scheduler.Report, error) {
					opts.Events = events
					return cl.runner.Build(ctx, cl.pruned, opts)
				})
			} else {
				report, err = cl.runner.Build(ctx, cl.pruned, opts)
			}
			if report != nil {
				printReport(report)
			}
			if err != nil {
				return err
			}
			return buildOutcome(report)
		},
	}

	flags.register(cmd)
	cmd.Flags().IntVarP(&parallel, "parallel", "j", 0, "maximum concurrent builds (default: build.parallel)")
	cmd.Flags().BoolVar(&resume, "resume", false, "skip packages the last build of this target finished")
	cmd.Flags().BoolVar(&tui, "tui", false, "show an interactive progress view")
	return cmd
}

// resumable returns the jobs the latest recorded build of release/arch
// finished. A build of another target is not resumed.
func resumable(ctx context.Context, store status.Store, release, arch string) ([]string, error) {
	snap, err := store.Latest(ctx)
	if stderrors.Is(err, status.ErrNoSnapshot) {
		printInfo("No earlier build to resume")
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if snap.Release != release || snap.Arch != arch {
		printWarning("Last build %s targeted %s/%s, starting over", snap.RunID, snap.Release, snap.Arch)
		return nil, nil
	}
	ids := snap.SucceededIDs()
	printInfo("Resuming build %s", snap.RunID)
	printDetail("%d packages already built", len(ids))
	return ids, nil
}

// buildOutcome turns a report into the command's error.
func buildOutcome(r *scheduler.Report) error {
	switch {
	case r.Cancelled:
		return context.Canceled
	case r.OK():
		return nil
	}
	return fmt.Errorf("%d of %d jobs failed", r.Count(scheduler.Failed), len(r.Statuses))
}

