package cli

import (
	"github.com/spf13/cobra"

	"github.com/matzehuels/stackbuild/pkg/dag"
	graphio "github.com/matzehuels/stackbuild/pkg/io"
	"github.com/matzehuels/stackbuild/pkg/server"
)

const defaultAddr = "127.0.0.1:8080"

func (c *CLI) serveCommand() *cobra.Command {
	var (
		addr      string
		graphFile string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve build status over HTTP",
		Long: `Serve exposes the persisted build status as JSON. With --graph, a
graph written by "resolve -o" is served as DOT and SVG, colored by the
status of each job.`,
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

			var g *dag.DAG
			if graphFile != "" {
				if g, err = graphio.ImportJSON(graphFile); err != nil {
					return err
				}
				c.Logger.Debug("loaded graph", "file", graphFile, "nodes", g.NodeCount())
			}

			printInfo("Serving build status on http://%s", addr)
			return server.New(store, server.Options{Graph: g, Logger: c.Logger}).ListenAndServe(ctx, addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", defaultAddr, "listen address")
	cmd.Flags().StringVar(&graphFile, "graph", "", "graph JSON written by resolve -o")
	return cmd
}
