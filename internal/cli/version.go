package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

const version = "0.3.0"

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Long:  `Display the current version of the trader CLI.`,
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "trader version %s\n", version)
			fmt.Fprintln(out, "Stock signal generation and backtest simulator")
			fmt.Fprintln(out, "https://github.com/rustyeddy/stocksim")
		},
	}
}
