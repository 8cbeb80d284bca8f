package main

import (
	"fmt"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"phenotune/internal/hyperparams"
)

func newSpaceCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "space",
		Short: "Print the configured search space",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			space, err := hyperparams.FromConfig(root.cfg.Space)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			table := tablewriter.NewWriter(out)
			table.SetHeader([]string{"Name", "Kind", "Range", "Sampling", "Values"})
			for _, p := range space.Params() {
				var rng, sampling string
				switch p.Kind {
				case hyperparams.KindChoice:
					rng = fmt.Sprint(p.Values)
				case hyperparams.KindInt:
					rng = fmt.Sprintf("[%g, %g] step %g", p.Min, p.Max, p.Step)
				default:
					rng = fmt.Sprintf("[%g, %g]", p.Min, p.Max)
					sampling = p.Sampling.String()
				}
				values := "continuous"
				if n := p.Cardinality(); n > 0 {
					values = strconv.Itoa(n)
				}
				table.Append([]string{p.Name, p.Kind.String(), rng, sampling, values})
			}
			table.Render()

			if size := space.Size(); size > 0 {
				fmt.Fprintf(out, "Distinct assignments: %s\n", humanize.Comma(int64(size)))
			} else {
				fmt.Fprintln(out, "Distinct assignments: unbounded")
			}
			return nil
		},
	}
}
