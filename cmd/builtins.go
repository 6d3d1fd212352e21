package cmd

import (
	"fmt"

	"github.com/josephlewis42/jobsh/core"
	"github.com/spf13/cobra"
)

var builtinsCmd = &cobra.Command{
	Use:   "builtins",
	Short: "Show the commands built into the shell.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, builtin := range core.ListBuiltins() {
			fmt.Fprintf(cmd.OutOrStdout(), "%s - %s\n", builtin.Name, builtin.Doc)
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(builtinsCmd)
}
