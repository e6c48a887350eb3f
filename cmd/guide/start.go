package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/rluijk/guided-llm-cli/internal/cli"
)

var startCmd = &cobra.Command{
	Use:   "start [workflow]",
	Short: "Start a session without an interactive loop",
	Long: `Starts a session and runs it until it parks: completed, failed, or
suspended waiting for input. Suspended sessions are continued later with
'guide resume' or 'guide run'.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		opts := options(cmd, args)
		sessionID, _ := cmd.Flags().GetString("session")
		sets, _ := cmd.Flags().GetStringArray("set")

		initial, err := parseSets(sets)
		if err != nil {
			fail(err)
		}

		eng, err := opts.BuildEngine()
		if err != nil {
			fail(err)
		}

		state, err := eng.Start(cmd.Context(), sessionID, initial)
		if err != nil {
			fail(err)
		}

		cli.PrintOutcome(os.Stdout, state)
		os.Exit(cli.ExitCode(state, nil))
	},
}

func init() {
	rootCmd.AddCommand(startCmd)

	startCmd.Flags().String("session", "", "Session id (default: a generated uuid)")
	startCmd.Flags().StringArray("set", nil, "Seed a context value as key=value (repeatable)")
}
