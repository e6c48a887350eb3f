package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rluijk/guided-llm-cli/internal/cli"
)

var rootCmd = &cobra.Command{
	Use:   "guide",
	Short: "Guide runs LLM-assisted workflows on the command line",
	Long: `Guide executes workflow documents that interleave scripted steps with
model-driven and interactive ones. Sessions persist after every step, so a
crashed or suspended run continues exactly where it left off.`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(3)
	}
}

func init() {
	rootCmd.PersistentFlags().StringP("workflow", "w", ".", "Workflow document: a yaml/json file or a directory of markdown steps")
	rootCmd.PersistentFlags().String("sessions", "", "Directory for the file session store (default ~/.guide/sessions)")
	rootCmd.PersistentFlags().String("store", "file", "Session store backend: file, memory, or redis")
	rootCmd.PersistentFlags().String("redis-addr", "", "Redis address for --store redis (default localhost:6379)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, or error (default quiet)")
	rootCmd.PersistentFlags().String("encrypt-key", "", "Hex 32-byte key enabling at-rest session encryption")
}

// options assembles cli.Options from the persistent flags. A positional
// workflow path wins over the --workflow flag, mirroring `guide run ./flow`.
func options(cmd *cobra.Command, args []string) cli.Options {
	workflow, _ := cmd.Flags().GetString("workflow")
	if !cmd.Flags().Changed("workflow") && len(args) > 0 {
		workflow = args[0]
	}
	sessions, _ := cmd.Flags().GetString("sessions")
	store, _ := cmd.Flags().GetString("store")
	redisAddr, _ := cmd.Flags().GetString("redis-addr")
	logLevel, _ := cmd.Flags().GetString("log-level")
	encryptKey, _ := cmd.Flags().GetString("encrypt-key")

	return cli.Options{
		Workflow:    workflow,
		SessionsDir: sessions,
		Store:       store,
		RedisAddr:   redisAddr,
		LogLevel:    logLevel,
		EncryptKey:  encryptKey,
	}
}

// fail prints the error and exits with the usage/config code.
func fail(err error) {
	fmt.Fprintln(os.Stderr, "Error:", err)
	os.Exit(3)
}

// parseSets turns repeated --set key=value flags into an initial context.
func parseSets(sets []string) (map[string]any, error) {
	if len(sets) == 0 {
		return nil, nil
	}
	initial := make(map[string]any, len(sets))
	for _, kv := range sets {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --set %q (want key=value)", kv)
		}
		initial[key] = value
	}
	return initial, nil
}
