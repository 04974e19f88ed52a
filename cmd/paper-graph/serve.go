package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/helixir/paper-graph-service/internal/app"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Serve starts the HTTP API (POST /analyze-paper, GET /health) and, when
enabled, the Prometheus metrics endpoint. It stops gracefully on SIGINT or
SIGTERM.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		logger := app.NewLogger(cfg).With().Str("component", "server").Logger()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		return app.Serve(ctx, cfg, logger)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
