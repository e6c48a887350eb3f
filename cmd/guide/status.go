package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rluijk/guided-llm-cli/internal/cli"
)

var statusCmd = &cobra.Command{
	Use:   "status <session-id>",
	Short: "Show a session's position, status, and history",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		opts := options(cmd, nil)
		asJSON, _ := cmd.Flags().GetBool("json")

		store, err := opts.OpenStore()
		if err != nil {
			fail(err)
		}

		state, err := store.Load(cmd.Context(), args[0])
		if err != nil {
			fail(err)
		}

		if asJSON {
			data, err := json.MarshalIndent(state, "", "  ")
			if err != nil {
				fail(err)
			}
			fmt.Println(string(data))
			return
		}
		cli.PrintStatus(os.Stdout, state)
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().Bool("json", false, "Print the raw session snapshot as JSON")
}
