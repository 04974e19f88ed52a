// Package main is the entry point for the paper-graph CLI. It runs the
// analysis service or analyzes a single PDF offline.
package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/helixir/paper-graph-service/internal/config"
)

// version is set at build time via ldflags.
var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "paper-graph",
	Short: "Turn research papers into topic graphs with related literature",
	Long: `paper-graph extracts the main topics of a research paper with a language
model, searches arXiv for related work on every topic and subtopic, and
builds a knowledge graph of the results.

Use "serve" to run the HTTP API or "analyze" to process a local PDF.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file (default: ./config.yaml, ./config/config.yaml or /etc/paper-graph-service/config.yaml)")
}

// loadConfig loads configuration honouring the --config flag.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	return config.LoadFile(path)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
