package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/rluijk/guided-llm-cli/internal/cli"
)

var cancelCmd = &cobra.Command{
	Use:   "cancel <session-id>",
	Short: "Cancel a session",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		opts := options(cmd, nil)

		eng, err := opts.BuildEngine()
		if err != nil {
			fail(err)
		}

		state, err := eng.Cancel(cmd.Context(), args[0])
		if err != nil {
			fail(err)
		}
		cli.PrintOutcome(os.Stdout, state)
	},
}

func init() {
	rootCmd.AddCommand(cancelCmd)
}
