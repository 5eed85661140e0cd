// Package knowledge implements retrieval against a PostgreSQL + pgvector
// knowledge base and exposes the ordered data source catalog.
package knowledge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/pgvector/pgvector-go"

	"github.com/docentlabs/docent/internal/log"
	"github.com/docentlabs/docent/internal/rag"
)

// searchTimeout bounds a single embedding + vector search round trip.
const searchTimeout = 10 * time.Second

// Querier defines the database operations the store needs. Interfaces are
// defined by the consumer, so tests can substitute a mock without a
// database.
type Querier interface {
	SearchChunksSemantic(ctx context.Context, arg SearchChunksParams) ([]SearchHit, error)
	SearchChunksHybrid(ctx context.Context, arg SearchChunksParams) ([]SearchHit, error)
	ListSources(ctx context.Context, knowledgeBaseID string) ([]Source, error)
}

// Embedder is the narrow embedding capability the store consumes.
// Satisfied by ai.Embedder.
type Embedder interface {
	Embed(ctx context.Context, req *ai.EmbedRequest) (*ai.EmbedResponse, error)
}

// Store performs ranked retrieval for one knowledge base. It implements
// both the retriever and catalog sides of the query pipeline.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	queries         Querier
	embedder        Embedder
	knowledgeBaseID string
	logger          log.Logger
}

// New creates a Store scoped to knowledgeBaseID.
func New(querier Querier, embedder Embedder, knowledgeBaseID string, logger log.Logger) *Store {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Store{
		queries:         querier,
		embedder:        embedder,
		knowledgeBaseID: knowledgeBaseID,
		logger:          logger,
	}
}

// Retrieve embeds the question and runs ranked chunk search, returning
// hits in score order.
func (s *Store) Retrieve(ctx context.Context, question string, opts rag.RetrieveOptions) ([]rag.RawHit, error) {
	queryCtx, cancel := context.WithTimeout(ctx, searchTimeout)
	defer cancel()

	embedding, err := s.embed(queryCtx, question)
	if err != nil {
		return nil, err
	}

	var filterJSON []byte
	if len(opts.Filter) > 0 {
		filterJSON, err = json.Marshal(opts.Filter)
		if err != nil {
			return nil, fmt.Errorf("marshal filter: %w", err)
		}
	}

	topK := opts.TopK
	if topK <= 0 {
		topK = rag.DefaultTopK
	}

	arg := SearchChunksParams{
		KnowledgeBaseID: s.knowledgeBaseID,
		Embedding:       embedding,
		Query:           question,
		FilterMetadata:  filterJSON,
		Limit:           int32(topK),
	}

	var hits []SearchHit
	if opts.SearchMode == rag.SearchModeSemantic {
		hits, err = s.queries.SearchChunksSemantic(queryCtx, arg)
	} else {
		hits, err = s.queries.SearchChunksHybrid(queryCtx, arg)
	}
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("search timeout: %w", err)
		}
		return nil, fmt.Errorf("search failed: %w", err)
	}

	s.logger.Debug("retrieval complete",
		"knowledge_base_id", s.knowledgeBaseID,
		"mode", opts.SearchMode,
		"hits", len(hits))

	return s.toRawHits(hits), nil
}

// List returns the catalog of source documents in listing order.
func (s *Store) List(ctx context.Context) ([]rag.CatalogEntry, error) {
	sources, err := s.queries.ListSources(ctx, s.knowledgeBaseID)
	if err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}

	entries := make([]rag.CatalogEntry, 0, len(sources))
	for _, src := range sources {
		entries = append(entries, rag.CatalogEntry{Name: src.Name})
	}
	return entries, nil
}

func (s *Store) embed(ctx context.Context, text string) (pgvector.Vector, error) {
	resp, err := s.embedder.Embed(ctx, &ai.EmbedRequest{
		Input: []*ai.Document{
			{Content: []*ai.Part{ai.NewTextPart(text)}},
		},
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return pgvector.Vector{}, fmt.Errorf("embedding timeout: %w", err)
		}
		return pgvector.Vector{}, fmt.Errorf("generate embedding: %w", err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Embedding) == 0 {
		return pgvector.Vector{}, errors.New("empty embedding returned")
	}
	return pgvector.NewVector(resp.Embeddings[0].Embedding), nil
}

func (s *Store) toRawHits(hits []SearchHit) []rag.RawHit {
	out := make([]rag.RawHit, 0, len(hits))
	for _, h := range hits {
		var metadata map[string]any
		if len(h.Metadata) > 0 {
			if err := json.Unmarshal(h.Metadata, &metadata); err != nil {
				s.logger.Warn("chunk metadata unparseable", "error", err)
				metadata = nil
			}
		}
		out = append(out, rag.RawHit{
			Text:     h.Content,
			URI:      h.Location,
			Score:    h.Similarity,
			Metadata: metadata,
		})
	}
	return out
}
