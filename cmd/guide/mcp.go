package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	guide "github.com/rluijk/guided-llm-cli"
	"github.com/rluijk/guided-llm-cli/pkg/adapters/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run the Model Context Protocol server",
	Long: `Exposes sessions as MCP tools (list_sessions, session_status,
resume_session, cancel_session) so agents can drive workflows.

Supported transports:
- stdio (default): standard input/output, for local process integration.
- sse: Server-Sent Events over HTTP, for remote agents.`,
	Run: func(cmd *cobra.Command, args []string) {
		opts := options(cmd, nil)
		transport, _ := cmd.Flags().GetString("transport")
		port, _ := cmd.Flags().GetInt("port")

		eng, err := opts.BuildEngine()
		if err != nil {
			fail(err)
		}

		srv := mcp.NewServer(eng, guide.Version)

		switch transport {
		case "stdio":
			// Keep stdout clean for JSON-RPC.
			log.SetOutput(os.Stderr)
			if err := srv.ServeStdio(); err != nil {
				fail(err)
			}
		case "sse":
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := srv.ServeSSE(ctx, port); err != nil && err != http.ErrServerClosed {
				fail(err)
			}
		default:
			fail(fmt.Errorf("unknown transport %q (want stdio or sse)", transport))
		}
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)

	mcpCmd.Flags().String("transport", "stdio", "Transport protocol: stdio or sse")
	mcpCmd.Flags().Int("port", 8080, "Port to listen on (sse only)")
}
