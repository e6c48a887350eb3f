package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	guide "github.com/rluijk/guided-llm-cli"
	"github.com/rluijk/guided-llm-cli/pkg/adapters/httpapi"
	"github.com/rluijk/guided-llm-cli/pkg/observability"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API",
	Long: `Exposes sessions over HTTP: inspect the workflow, list sessions, resume
and cancel them. Prometheus metrics are served on /metrics.`,
	Run: func(cmd *cobra.Command, args []string) {
		opts := options(cmd, nil)
		addr, _ := cmd.Flags().GetString("addr")

		logger, err := opts.NewLogger()
		if err != nil {
			fail(err)
		}

		reg := prometheus.NewRegistry()
		metrics := observability.NewMetrics(reg)

		eng, err := opts.BuildEngine(guide.WithHooks(metrics.Hooks()))
		if err != nil {
			fail(err)
		}

		srv := &http.Server{
			Addr:    addr,
			Handler: httpapi.NewHandler(eng, httpapi.WithLogger(logger), httpapi.WithMetrics(reg)),
		}

		serverErrors := make(chan error, 1)
		go func() {
			fmt.Printf("Serving workflow %q on %s\n", eng.Workflow().Name, srv.Addr)
			serverErrors <- srv.ListenAndServe()
		}()

		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

		select {
		case err := <-serverErrors:
			fail(err)

		case sig := <-shutdown:
			fmt.Printf("\nShutting down (%v)...\n", sig)

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			if err := srv.Shutdown(ctx); err != nil {
				fmt.Fprintf(os.Stderr, "Graceful shutdown did not complete in %v: %v\n", 5*time.Second, err)
				if err := srv.Close(); err != nil {
					fmt.Fprintf(os.Stderr, "Error closing server: %v\n", err)
				}
			}
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", ":8080", "Address to listen on")
}
