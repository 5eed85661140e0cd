// Package generation wraps Genkit model invocation behind the pipeline's
// generator contract.
package generation

import (
	"context"
	"fmt"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"golang.org/x/time/rate"

	"github.com/docentlabs/docent/internal/log"
	"github.com/docentlabs/docent/internal/rag"
)

// Config assembles a generation Client.
type Config struct {
	Genkit *genkit.Genkit
	Logger log.Logger

	// RateLimiter proactively throttles model calls; nil installs the
	// default of 10 req/s with a burst of 30.
	RateLimiter *rate.Limiter
}

// Client invokes a Genkit-registered model. Safe for concurrent use.
type Client struct {
	g       *genkit.Genkit
	limiter *rate.Limiter
	logger  log.Logger
}

// New creates a Client from cfg.
func New(cfg Config) (*Client, error) {
	if cfg.Genkit == nil {
		return nil, fmt.Errorf("genkit instance is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNop()
	}
	limiter := cfg.RateLimiter
	if limiter == nil {
		limiter = rate.NewLimiter(10, 30)
	}
	return &Client{g: cfg.Genkit, limiter: limiter, logger: logger}, nil
}

// Generate runs one model call for req and returns the produced text with
// token usage when the backend reports it.
func (c *Client) Generate(ctx context.Context, req rag.GenerateRequest) (*rag.GenerateResponse, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	resp, err := genkit.Generate(ctx, c.g,
		ai.WithModelName(req.Model),
		ai.WithMessages(ai.NewUserMessage(ai.NewTextPart(req.Prompt))),
		ai.WithConfig(&ai.GenerationCommonConfig{
			Temperature:     req.Temperature,
			TopP:            req.TopP,
			MaxOutputTokens: req.MaxTokens,
			StopSequences:   req.StopSequences,
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("generate: %w", err)
	}

	out := &rag.GenerateResponse{
		Text: resp.Text(),
		// The backend is stateless; the caller's session identity is
		// carried through unchanged.
		SessionID: req.SessionID,
	}
	if resp.Usage != nil && (resp.Usage.InputTokens > 0 || resp.Usage.OutputTokens > 0) {
		out.Usage = &rag.Usage{
			InputTokens:  resp.Usage.InputTokens,
			OutputTokens: resp.Usage.OutputTokens,
		}
	}

	c.logger.Debug("generation complete",
		"model", req.Model,
		"response_length", len(out.Text),
		"reported_usage", out.Usage != nil)

	return out, nil
}
