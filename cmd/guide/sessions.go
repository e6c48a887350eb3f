package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Manage persisted sessions",
	Long:  `List, inspect, and remove sessions in the configured store.`,
}

var sessionsLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List all persisted sessions",
	Run: func(cmd *cobra.Command, args []string) {
		store, err := options(cmd, nil).OpenStore()
		if err != nil {
			fail(err)
		}

		ids, err := store.List(cmd.Context())
		if err != nil {
			fail(err)
		}
		if len(ids) == 0 {
			fmt.Println("No sessions found.")
			return
		}
		for _, id := range ids {
			fmt.Println("- " + id)
		}
	},
}

var sessionsInspectCmd = &cobra.Command{
	Use:   "inspect <session-id>",
	Short: "Print the raw snapshot of a session",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		store, err := options(cmd, nil).OpenStore()
		if err != nil {
			fail(err)
		}

		state, err := store.Load(cmd.Context(), args[0])
		if err != nil {
			fail(err)
		}

		data, err := json.MarshalIndent(state, "", "  ")
		if err != nil {
			fail(err)
		}
		fmt.Println(string(data))
	},
}

var sessionsRmCmd = &cobra.Command{
	Use:   "rm <session-id>...",
	Short: "Remove one or more sessions",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		store, err := options(cmd, nil).OpenStore()
		if err != nil {
			fail(err)
		}

		failed := false
		for _, id := range args {
			if err := store.Delete(cmd.Context(), id); err != nil {
				fmt.Fprintf(os.Stderr, "Error removing %q: %v\n", id, err)
				failed = true
				continue
			}
			fmt.Printf("Removed session %q\n", id)
		}
		if failed {
			os.Exit(3)
		}
	},
}

func init() {
	rootCmd.AddCommand(sessionsCmd)
	sessionsCmd.AddCommand(sessionsLsCmd)
	sessionsCmd.AddCommand(sessionsInspectCmd)
	sessionsCmd.AddCommand(sessionsRmCmd)
}
