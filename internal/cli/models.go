package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/slamd/discovery/experiment"
)

func newModelsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List the available model kinds",
		RunE: func(cmd *cobra.Command, _ []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			_, _ = fmt.Fprintln(w, "ID\tNAME\tMIN LABELLED\tTUNED")
			for _, k := range experiment.Kinds() {
				_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%v\n", k.Kind, k.Label, k.MinLabelled, k.Tuned)
			}
			return w.Flush()
		},
	}
}
