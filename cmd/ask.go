package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/docentlabs/docent/internal/app"
	"github.com/docentlabs/docent/internal/config"
	"github.com/docentlabs/docent/internal/rag"
	"github.com/spf13/cobra"
)

var askSessionID string

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a one-shot question against the knowledge base",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAsk,
}

func init() {
	askCmd.Flags().StringVar(&askSessionID, "session", "", "Session identifier to continue a conversation")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := newLogger(cfg.LogLevel)

	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer a.Close()

	question := strings.TrimSpace(strings.Join(args, " "))
	if question == "" {
		return fmt.Errorf("question is empty")
	}

	var opts []rag.QueryOption
	if askSessionID != "" {
		opts = append(opts, rag.WithSessionID(askSessionID))
	}

	result, err := a.Pipeline.Query(ctx, question, opts...)
	if err != nil {
		return fmt.Errorf("answering question: %w", err)
	}

	fmt.Println(result.Answer)
	printCitations(result.Citations)

	return nil
}

// printCitations renders the reference list below an answer.
func printCitations(refs []rag.Reference) {
	if len(refs) == 0 {
		return
	}
	fmt.Println()
	fmt.Println("Sources:")
	for _, ref := range refs {
		fmt.Printf("  [%d] %s (%s)\n", ref.Number, ref.Title, ref.Location)
	}
}
