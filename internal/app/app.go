// Package app assembles the application: configuration, database,
// observability, Genkit, and the query pipeline.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/docentlabs/docent/db"
	"github.com/docentlabs/docent/internal/config"
	"github.com/docentlabs/docent/internal/generation"
	"github.com/docentlabs/docent/internal/knowledge"
	"github.com/docentlabs/docent/internal/log"
	"github.com/docentlabs/docent/internal/observability"
	"github.com/docentlabs/docent/internal/rag"
	"github.com/docentlabs/docent/internal/usage"
)

// App holds the assembled application. Call Close to release resources.
type App struct {
	Config   *config.Config
	Logger   log.Logger
	Pool     *pgxpool.Pool
	Genkit   *genkit.Genkit
	Pipeline *rag.Pipeline

	cleanups []func()
}

// Setup initializes the application from cfg. On failure everything
// already initialized is torn down before returning.
func Setup(ctx context.Context, cfg *config.Config, logger log.Logger) (_ *App, retErr error) {
	a := &App{Config: cfg, Logger: logger}
	defer func() {
		if retErr != nil {
			a.Close()
		}
	}()

	a.cleanups = append(a.cleanups, observability.Setup(ctx, observability.Config{
		Enabled:     cfg.Tracing.Enabled,
		AgentHost:   cfg.Tracing.AgentHost,
		ServiceName: cfg.Tracing.ServiceName,
		Environment: cfg.Tracing.Environment,
	}, logger))

	pool, err := setupPool(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.Pool = pool
	a.cleanups = append(a.cleanups, pool.Close)

	a.Genkit = genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
	if a.Genkit == nil {
		return nil, errors.New("initializing genkit")
	}
	embedder := googlegenai.GoogleAIEmbedder(a.Genkit, cfg.EmbedderModel)

	pipeline, err := buildPipeline(a.Genkit, embedder, pool, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.Pipeline = pipeline

	logger.Info("application initialized",
		"knowledge_base_id", cfg.KnowledgeBaseID,
		"model", cfg.ModelName)

	return a, nil
}

// Close releases resources in reverse initialization order.
func (a *App) Close() {
	for i := len(a.cleanups) - 1; i >= 0; i-- {
		a.cleanups[i]()
	}
	a.cleanups = nil
}

func setupPool(ctx context.Context, cfg *config.Config, logger log.Logger) (*pgxpool.Pool, error) {
	if err := db.Migrate(cfg.PostgresURL(), logger); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.PostgresConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parsing connection config: %w", err)
	}
	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute
	poolCfg.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return pool, nil
}

func buildPipeline(g *genkit.Genkit, embedder ai.Embedder, pool *pgxpool.Pool, cfg *config.Config, logger log.Logger) (*rag.Pipeline, error) {
	store := knowledge.New(knowledge.NewQueries(pool), embedder, cfg.KnowledgeBaseID, logger)

	generator, err := generation.New(generation.Config{
		Genkit: g,
		Logger: logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating generation client: %w", err)
	}

	defaults := rag.DefaultQueryConfig(cfg.FullModelName())
	defaults = rag.MergeConfig(defaults, map[string]any{
		"retrieval": map[string]any{
			"top_k":       cfg.TopK,
			"search_mode": cfg.SearchMode,
		},
		"generation": map[string]any{
			"temperature": cfg.Temperature,
			"top_p":       cfg.TopP,
			"max_tokens":  cfg.MaxTokens,
		},
		"context_chars": cfg.ContextChars,
	})
	if cfg.RerankingModel != "" {
		defaults = rag.MergeConfig(defaults, map[string]any{
			"retrieval": map[string]any{"reranking_model": cfg.RerankingModel},
		})
	}
	if cfg.LatencyMode != "" {
		defaults = rag.MergeConfig(defaults, map[string]any{
			"generation": map[string]any{"latency_mode": cfg.LatencyMode},
		})
	}

	pipeline, err := rag.New(rag.Config{
		Retriever:       store,
		Generator:       generator,
		Catalog:         store,
		Recorder:        usage.New(pool, logger),
		Logger:          logger,
		KnowledgeBaseID: cfg.KnowledgeBaseID,
		Model:           cfg.FullModelName(),
		Defaults:        defaults,
	})
	if err != nil {
		return nil, fmt.Errorf("creating query pipeline: %w", err)
	}
	return pipeline, nil
}
