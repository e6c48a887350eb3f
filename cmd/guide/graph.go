package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rluijk/guided-llm-cli/internal/cli"
	"github.com/rluijk/guided-llm-cli/internal/presentation/graph"
)

var graphCmd = &cobra.Command{
	Use:   "graph [workflow]",
	Short: "Export the workflow as a Mermaid diagram",
	Long: `Prints a Mermaid flowchart of the workflow. With --session, steps the
session already visited are highlighted along with its current position.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		opts := options(cmd, args)
		sessionID, _ := cmd.Flags().GetString("session")

		src, err := cli.OpenSource(opts.Workflow)
		if err != nil {
			fail(err)
		}

		wf, err := src.Load(cmd.Context())
		if err != nil {
			fail(err)
		}

		var overlay *graph.Overlay
		if sessionID != "" {
			store, err := opts.OpenStore()
			if err != nil {
				fail(err)
			}
			state, err := store.Load(cmd.Context(), sessionID)
			if err != nil {
				fail(err)
			}
			overlay = graph.FromSession(state)
		}

		fmt.Print(graph.Mermaid(wf, overlay))
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)

	graphCmd.Flags().String("session", "", "Overlay a session's progress on the diagram")
}
