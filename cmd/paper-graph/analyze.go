package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/helixir/paper-graph-service/internal/analysis"
	"github.com/helixir/paper-graph-service/internal/app"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <file.pdf>",
	Short: "Analyze a local PDF and print the graph as JSON",
	Long: `Analyze runs the same pipeline as the HTTP API on a local file and writes
the resulting graph and related papers to stdout. Logs go to stderr.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if cfg.Logging.Output == "" || cfg.Logging.Output == "stdout" {
			cfg.Logging.Output = "stderr"
		}
		logger := app.NewLogger(cfg).With().Str("component", "cli").Logger()

		path := args[0]
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}

		analyzer, err := app.NewAnalyzer(cfg, nil, logger)
		if err != nil {
			return err
		}

		result, err := analyzer.Analyze(cmd.Context(), analysis.Upload{
			Filename: filepath.Base(path),
			Data:     data,
		})
		if err != nil {
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		if pretty, _ := cmd.Flags().GetBool("pretty"); pretty {
			enc.SetIndent("", "  ")
		}
		return enc.Encode(result)
	},
}

func init() {
	analyzeCmd.Flags().Bool("pretty", false, "indent the JSON output")
	rootCmd.AddCommand(analyzeCmd)
}
