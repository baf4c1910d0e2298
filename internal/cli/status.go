package cli

import (
	stderrors "errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matzehuels/stackbuild/pkg/status"
)

func (c *CLI) statusCommand() *cobra.Command {
	var (
		runID string
		jobs  bool
	)

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the status of the last build",
		Long: `Status prints the persisted status of the last build. With
STACKBUILD_MONGO_URI set, builds are read from MongoDB and --run selects
an earlier one.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			ws, err := c.loadWorkspace()
			if err != nil {
				return err
			}
			store, _, closeStore, err := statusStore(ctx, ws)
			if err != nil {
				return err
			}
			defer closeStore()

			var snap *status.Snapshot
			if runID != "" {
				runs, ok := store.(status.RunStore)
				if !ok {
					return fmt.Errorf("--run needs a status store with history, set %s", EnvMongoURI)
				}
				snap, err = runs.Get(ctx, runID)
			} else {
				snap, err = store.Latest(ctx)
			}
			if stderrors.Is(err, status.ErrNoSnapshot) {
				printInfo("No build recorded yet")
				printNextStep("Start one", "stackbuild build")
				return nil
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			writeSnapshot(out, snap)
			if jobs {
				fmt.Fprintln(out)
				writeJobs(out, snap)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&runID, "run", "", "show this run instead of the latest")
	cmd.Flags().BoolVar(&jobs, "jobs", false, "list every job")
	return cmd
}

