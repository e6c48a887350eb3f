package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rluijk/guided-llm-cli/internal/cli"
	"github.com/rluijk/guided-llm-cli/pkg/domain"
	"github.com/rluijk/guided-llm-cli/pkg/registry"
)

var validateCmd = &cobra.Command{
	Use:   "validate [workflow]",
	Short: "Check a workflow document for definition problems",
	Long: `Compiles the workflow and reports every structural problem at once:
duplicate ids, dangling targets, unreachable steps, missing prompts,
contract mismatches.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		opts := options(cmd, args)

		src, err := cli.OpenSource(opts.Workflow)
		if err != nil {
			fail(err)
		}

		wf, err := src.Load(cmd.Context())
		if err != nil {
			fail(err)
		}

		if _, err := registry.Load(wf); err != nil {
			var defErr *domain.DefinitionError
			if errors.As(err, &defErr) {
				fmt.Fprintf(os.Stderr, "Workflow %q has %d problem(s):\n", defErr.Workflow, len(defErr.Problems))
				for _, p := range defErr.Problems {
					fmt.Fprintln(os.Stderr, "  - "+p)
				}
				os.Exit(1)
			}
			fail(err)
		}

		fmt.Printf("Workflow %q is valid.\n", wf.Name)
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
