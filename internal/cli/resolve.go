package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/matzehuels/stackbuild/pkg/dag"
	graphio "github.com/matzehuels/stackbuild/pkg/io"
)

const (
	formatText = "text"
	formatJSON = "json"
)

func (c *CLI) resolveCommand() *cobra.Command {
	var (
		flags  stageFlags
		format string
		output string
		all    bool
	)

	cmd := &cobra.Command{
		Use:   "resolve [seed...]",
		Short: "Compute the dependency closure of the seeds",
		Long: `Resolve computes the dependency closure of the given seeds, or of the
workspace's configured seeds, picking library versions from RubyGems.
With a target release, packages an ancestor release publishes are pruned.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != formatText && format != formatJSON {
				return fmt.Errorf("unknown format %q (want text or json)", format)
			}
			flags.quiet = output == ""

			cl, err := c.resolveClosure(cmd.Context(), args, flags)
			if err != nil {
				return err
			}
			defer cl.Close()

			g := cl.pruned
			if all {
				g = cl.graph
			}

			if output != "" {
				if err := graphio.ExportJSON(g, output); err != nil {
					return err
				}
				printSuccess("Resolved %d packages", g.NodeCount())
				printStats(g.NodeCount(), g.EdgeCount(), cl.graph.NodeCount()-cl.pruned.NodeCount(), cl.cached)
				printFile(output)
				printNextStep("Serve its build status", "stackbuild serve --graph "+output)
				return nil
			}

			if format == formatJSON {
				return graphio.WriteJSON(g, cmd.OutOrStdout())
			}
			return writeClosure(cmd.OutOrStdout(), g)
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVarP(&format, "format", "f", formatText, "output format: text or json")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write the graph as JSON to this file")
	cmd.Flags().BoolVar(&all, "all", false, "include packages removed by pruning")
	return cmd
}

// writeClosure prints one line per package: id, version and dependencies.
func writeClosure(w io.Writer, g *dag.DAG) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, n := range g.Nodes() {
		ver, _ := n.Meta["version"].(string)
		if ver == "" {
			ver = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", n.ID, ver, strings.Join(g.Children(n.ID), " "))
	}
	return tw.Flush()
}
