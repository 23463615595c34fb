package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/eventtrace/pkg/severity"
)

var levelsCmd = &cobra.Command{
	Use:   "levels",
	Short: "Print the severity order",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "RANK\tLEVEL\tZAP\tBACKEND")
		for _, l := range severity.All() {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", int(l), l, l.ZapLevel(), l.BackendName())
		}
		return w.Flush()
	},
}
