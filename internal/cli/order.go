package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/stackbuild/pkg/dag"
	"github.com/matzehuels/stackbuild/pkg/render"
)

const (
	formatLevels = "levels"
	formatDOT    = "dot"
	formatSVG    = "svg"
	formatPDF    = "pdf"
	formatPNG    = "png"
)

var orderFormats = []string{formatText, formatLevels, formatDOT, formatSVG, formatPDF, formatPNG}

func (c *CLI) orderCommand() *cobra.Command {
	var (
		flags    stageFlags
		format   string
		output   string
		detailed bool
		scale    float64
	)

	cmd := &cobra.Command{
		Use:   "order [seed...]",
		Short: "Print or draw the build order",
		Long: `Order resolves the closure like "resolve" and prints it in build order.

Formats:
  text    one job per line, dependencies first
  levels  jobs grouped by depth; jobs of one level can build concurrently
  dot     Graphviz source
  svg, pdf, png  rendered graph (pdf and png need rsvg-convert)`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(orderFormats, format) {
				return fmt.Errorf("unknown format %q (want one of %s)", format, strings.Join(orderFormats, ", "))
			}
			binary := format == formatSVG || format == formatPDF || format == formatPNG
			if binary && output == "" {
				output = "order." + format
			}
			flags.quiet = output == ""

			cl, err := c.resolveClosure(cmd.Context(), args, flags)
			if err != nil {
				return err
			}
			defer cl.Close()

			order, err := cl.runner.Order(cmd.Context(), cl.pruned, cl.opts)
			if err != nil {
				return err
			}

			data, err := renderOrder(cmd.Context(), cl.pruned, order, format, render.Options{
				Detailed: detailed,
				Title:    cl.opts.Target(),
			}, scale)
			if err != nil {
				return err
			}
			if output == "" {
				_, err := cmd.OutOrStdout().Write(data)
				return err
			}
			if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
				return err
			}
			if err := os.WriteFile(output, data, 0o644); err != nil {
				return err
			}
			printSuccess("Ordered %d jobs", len(order))
			printFile(output)
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVarP(&format, "format", "f", formatText, "output format: "+strings.Join(orderFormats, ", "))
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: stdout, order.<format> for images)")
	cmd.Flags().BoolVar(&detailed, "detailed", false, "show kinds and versions in graph labels")
	cmd.Flags().Float64Var(&scale, "scale", 2, "PNG scale factor")
	return cmd
}

// renderOrder produces the bytes of one output format.
func renderOrder(ctx context.Context, g *dag.DAG, order []string, format string, opts render.Options, scale float64) ([]byte, error) {
	var b strings.Builder
	switch format {
	case formatText:
		if err := render.WriteOrder(&b, order); err != nil {
			return nil, err
		}
		return []byte(b.String()), nil
	case formatLevels:
		levels, err := dag.Levels(g)
		if err != nil {
			return nil, err
		}
		if err := render.WriteLevels(&b, levels); err != nil {
			return nil, err
		}
		return []byte(b.String()), nil
	case formatDOT:
		return []byte(render.ToDOT(g, opts)), nil
	}

	svg, err := render.RenderSVG(ctx, render.ToDOT(g, opts))
	if err != nil {
		return nil, err
	}
	switch format {
	case formatPDF:
		return render.ToPDF(ctx, svg)
	case formatPNG:
		return render.ToPNG(ctx, svg, scale)
	}
	return svg, nil
}

