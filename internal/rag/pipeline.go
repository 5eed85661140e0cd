package rag

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/docentlabs/docent/internal/log"
)

// Config assembles a Pipeline's collaborators and per-instance settings.
type Config struct {
	Retriever Retriever
	Generator Generator
	Catalog   Catalog
	Recorder  Recorder // optional; nil disables usage recording
	Logger    log.Logger

	// KnowledgeBaseID scopes retrieval. Queries fail fast when empty.
	KnowledgeBaseID string
	// Model is the default generation model identifier.
	Model string
	// Defaults is the baseline query configuration; nil falls back to
	// DefaultQueryConfig(Model).
	Defaults map[string]any
}

func (c *Config) validate() error {
	if c.Retriever == nil {
		return errors.New("retriever is required")
	}
	if c.Generator == nil {
		return errors.New("generator is required")
	}
	if c.Catalog == nil {
		return errors.New("catalog is required")
	}
	if c.Logger == nil {
		return errors.New("logger is required")
	}
	if c.Model == "" {
		return errors.New("model is required")
	}
	return nil
}

// Pipeline orchestrates one retrieval-augmented query end to end. It holds
// only configuration and collaborators, no per-query state, so a single
// instance serves concurrent queries.
type Pipeline struct {
	retriever Retriever
	generator Generator
	catalog   Catalog
	recorder  Recorder
	logger    log.Logger

	knowledgeBaseID string
	model           string
	defaults        map[string]any
}

// New creates a Pipeline from cfg.
func New(cfg Config) (*Pipeline, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid pipeline config: %w", err)
	}

	defaults := cfg.Defaults
	if defaults == nil {
		defaults = DefaultQueryConfig(cfg.Model)
	}

	return &Pipeline{
		retriever:       cfg.Retriever,
		generator:       cfg.Generator,
		catalog:         cfg.Catalog,
		recorder:        cfg.Recorder,
		logger:          cfg.Logger,
		knowledgeBaseID: cfg.KnowledgeBaseID,
		model:           cfg.Model,
		defaults:        defaults,
	}, nil
}

// QueryOption adjusts a single Query call.
type QueryOption func(*queryOptions)

type queryOptions struct {
	sessionID string
	history   []string
	overrides map[string]any
}

// WithSessionID threads an existing generation session through the call.
func WithSessionID(id string) QueryOption {
	return func(o *queryOptions) { o.sessionID = id }
}

// WithHistory supplies prior conversation turns for multi-turn prompts.
func WithHistory(history []string) QueryOption {
	return func(o *queryOptions) { o.history = history }
}

// WithOverrides deep-merges caller configuration over the defaults.
func WithOverrides(overrides map[string]any) QueryOption {
	return func(o *queryOptions) { o.overrides = overrides }
}

// Query answers question against the knowledge base and returns the
// grounded, citation-annotated result.
//
// The caller layer is responsible for rejecting blank questions; Query
// assumes non-blank input. Only ErrMissingKnowledgeBase and ErrService
// escape: citation processing and usage recording degrade without
// failing the query.
func (p *Pipeline) Query(ctx context.Context, question string, opts ...QueryOption) (*Result, error) {
	if p.knowledgeBaseID == "" {
		return nil, ErrMissingKnowledgeBase
	}

	var o queryOptions
	for _, opt := range opts {
		opt(&o)
	}

	settings := resolveSettings(MergeConfig(p.defaults, o.overrides))

	start := time.Now()

	hits, err := p.retriever.Retrieve(ctx, question, RetrieveOptions{
		TopK:           settings.TopK,
		SearchMode:     settings.SearchMode,
		RerankingModel: settings.RerankingModel,
		Filter:         settings.Filter,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: retrieval: %w", ErrService, err)
	}
	chunks := ExtractChunks(hits)

	// Catalog failures only degrade citation numbering, never the query.
	catalog, err := p.catalog.List(ctx)
	if err != nil {
		p.logger.Warn("catalog listing failed, citations fall back to retrieval order",
			"error", err)
		catalog = nil
	}

	prompt := BuildPrompt(question, chunks, settings.ContextChars)
	if len(o.history) > 0 {
		prompt = BuildOrchestrationPrompt(prompt, o.history)
	}

	model := settings.Model
	if model == "" {
		model = p.model
	}

	resp, err := p.generator.Generate(ctx, GenerateRequest{
		Model:         model,
		Prompt:        prompt,
		Temperature:   settings.Temperature,
		TopP:          settings.TopP,
		MaxTokens:     settings.MaxTokens,
		StopSequences: settings.StopSequences,
		LatencyMode:   settings.LatencyMode,
		SessionID:     o.sessionID,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: generation: %w", ErrService, err)
	}

	mapping := BuildMapping(chunks, catalog)
	answer := RemapCitations(resp.Text, mapping)
	answer = InjectCitations(answer, chunks, mapping)
	refs := BuildReferences(answer, chunks, catalog)

	result := &Result{
		Answer:    answer,
		Citations: refs,
		SessionID: resp.SessionID,
	}

	p.record(ctx, question, answer, model, resp.Usage, time.Since(start))

	return result, nil
}

// record persists the usage record and refreshes the downstream metrics
// aggregate. Both calls are best-effort: failures are logged, the result
// already computed is returned regardless.
func (p *Pipeline) record(ctx context.Context, question, answer, model string, usage *Usage, elapsed time.Duration) {
	if p.recorder == nil {
		return
	}

	inTokens := EstimateTokens(question)
	outTokens := EstimateTokens(answer)
	if usage != nil {
		inTokens = usage.InputTokens
		outTokens = usage.OutputTokens
	}

	rec := UsageRecord{
		ModelID:      model,
		InputTokens:  inTokens,
		OutputTokens: outTokens,
		UserQuery:    question,
		LatencyMS:    elapsed.Milliseconds(),
		CreatedAt:    time.Now(),
	}
	if err := p.recorder.Record(ctx, rec); err != nil {
		p.logger.Warn("usage recording failed", "error", err)
		return
	}
	if err := p.recorder.RefreshMetrics(ctx); err != nil {
		p.logger.Warn("usage metrics refresh failed", "error", err)
	}
}
