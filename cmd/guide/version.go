package main

import (
	"fmt"

	"github.com/spf13/cobra"

	guide "github.com/rluijk/guided-llm-cli"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the guide version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("guide version %s\n", guide.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
