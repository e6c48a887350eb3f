package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/rluijk/guided-llm-cli/internal/cli"
)

var runCmd = &cobra.Command{
	Use:   "run [workflow]",
	Short: "Run a workflow interactively",
	Long: `Starts a session and drives it on the terminal: suspension prompts are
rendered, answers read from stdin, until the session completes, fails, or is
cancelled. Ctrl+C cancels the session cleanly; it can not be resumed after.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		opts := options(cmd, args)
		sessionID, _ := cmd.Flags().GetString("session")
		sets, _ := cmd.Flags().GetStringArray("set")
		plain, _ := cmd.Flags().GetBool("plain")

		initial, err := parseSets(sets)
		if err != nil {
			fail(err)
		}

		eng, err := opts.BuildEngine()
		if err != nil {
			fail(err)
		}

		state, err := cli.RunSession(cmd.Context(), eng, cli.RunConfig{
			SessionID: sessionID,
			Initial:   initial,
			Plain:     plain,
		})
		if err != nil {
			fail(err)
		}
		if state != nil {
			cli.PrintOutcome(os.Stdout, state)
		}
		os.Exit(cli.ExitCode(state, err))
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().String("session", "", "Session id (default: a generated uuid)")
	runCmd.Flags().StringArray("set", nil, "Seed a context value as key=value (repeatable)")
	runCmd.Flags().Bool("plain", false, "Disable the banner and markdown rendering")

	// Bare `guide <workflow>` behaves like `guide run <workflow>`.
	rootCmd.Run = runCmd.Run
	rootCmd.Args = runCmd.Args
}
