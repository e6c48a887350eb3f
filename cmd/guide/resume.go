package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/rluijk/guided-llm-cli/internal/cli"
)

var resumeCmd = &cobra.Command{
	Use:   "resume <session-id>",
	Short: "Continue a persisted session",
	Long: `Continues a session from its last snapshot. A suspended session needs
--input (or use 'guide run' for the interactive loop); a session interrupted
mid-step re-executes its current step.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		opts := options(cmd, nil)
		sessionID := args[0]
		interactive, _ := cmd.Flags().GetBool("interactive")

		eng, err := opts.BuildEngine()
		if err != nil {
			fail(err)
		}

		if interactive {
			state, err := cli.RunSession(cmd.Context(), eng, cli.RunConfig{
				SessionID: sessionID,
				Resume:    true,
			})
			if err != nil {
				fail(err)
			}
			if state != nil {
				cli.PrintOutcome(os.Stdout, state)
			}
			os.Exit(cli.ExitCode(state, err))
		}

		var input any
		if cmd.Flags().Changed("input") {
			value, _ := cmd.Flags().GetString("input")
			input = value
		}

		state, err := eng.Resume(cmd.Context(), sessionID, input)
		if err != nil {
			fail(err)
		}

		cli.PrintOutcome(os.Stdout, state)
		os.Exit(cli.ExitCode(state, nil))
	},
}

func init() {
	rootCmd.AddCommand(resumeCmd)

	resumeCmd.Flags().String("input", "", "Answer for the pending prompt")
	resumeCmd.Flags().BoolP("interactive", "i", false, "Drive the session on the terminal until it finishes")
}
