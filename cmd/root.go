// Package cmd provides the docent CLI commands.
//
// Commands:
//   - ask: one-shot question against the knowledge base
//   - serve: HTTP API server (query endpoint + chat webhook)
//   - version: version and configuration information
//
// Signal handling and graceful shutdown are implemented via context
// cancellation.
package cmd

import (
	"os"

	"github.com/docentlabs/docent/internal/log"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "docent",
	Short: "Docent - internal document assistant",
	Long: `Docent answers questions from your organization's document
knowledge base. Answers cite the source documents they were drawn from.

Run 'docent ask <question>' for a one-shot query, or 'docent serve'
to start the HTTP API server.`,
	SilenceUsage: true,
}

// Execute is the main entry point for the docent CLI.
func Execute() error {
	return rootCmd.Execute()
}

// newLogger builds the process logger from the configured level.
// DEBUG=1 in the environment forces debug level regardless of config.
func newLogger(level string) log.Logger {
	cfg := log.Config{Level: log.ParseLevel(level)}
	if os.Getenv("DEBUG") != "" {
		cfg.Level = log.ParseLevel("debug")
	}
	return log.New(cfg)
}
