package knowledge

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"
)

// DBTX is the subset of pgx connection behavior the query layer needs.
// Both *pgxpool.Pool and pgx.Tx satisfy it.
type DBTX interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Queries is the concrete database query layer.
type Queries struct {
	db DBTX
}

// NewQueries creates a query layer over db.
func NewQueries(db DBTX) *Queries {
	return &Queries{db: db}
}

// SearchChunksParams parameterizes a chunk search within one knowledge base.
type SearchChunksParams struct {
	KnowledgeBaseID string
	Embedding       pgvector.Vector
	// Query is the plain-text question, used only by hybrid search.
	Query string
	// FilterMetadata is a JSONB containment filter; nil disables filtering.
	FilterMetadata []byte
	Limit          int32
}

const searchChunksSemantic = `
SELECT c.content, s.location, c.metadata,
       1 - (c.embedding <=> $2) AS similarity
FROM chunks c
JOIN sources s ON s.id = c.source_id
WHERE s.knowledge_base_id = $1
  AND ($3::jsonb IS NULL OR c.metadata @> $3::jsonb)
ORDER BY c.embedding <=> $2
LIMIT $4
`

// SearchChunksSemantic runs pure vector similarity search ordered by
// cosine distance.
func (q *Queries) SearchChunksSemantic(ctx context.Context, arg SearchChunksParams) ([]SearchHit, error) {
	rows, err := q.db.Query(ctx, searchChunksSemantic,
		arg.KnowledgeBaseID, arg.Embedding, arg.FilterMetadata, arg.Limit)
	if err != nil {
		return nil, err
	}
	return scanHits(rows)
}

// Hybrid score blends vector similarity with full-text rank. Weights
// follow the common 70/30 split; tune only with retrieval evals in hand.
const searchChunksHybrid = `
SELECT c.content, s.location, c.metadata,
       0.7 * (1 - (c.embedding <=> $2)) +
       0.3 * ts_rank(c.tsv, plainto_tsquery('simple', $3)) AS similarity
FROM chunks c
JOIN sources s ON s.id = c.source_id
WHERE s.knowledge_base_id = $1
  AND ($4::jsonb IS NULL OR c.metadata @> $4::jsonb)
ORDER BY similarity DESC
LIMIT $5
`

// SearchChunksHybrid runs combined vector and full-text search.
func (q *Queries) SearchChunksHybrid(ctx context.Context, arg SearchChunksParams) ([]SearchHit, error) {
	rows, err := q.db.Query(ctx, searchChunksHybrid,
		arg.KnowledgeBaseID, arg.Embedding, arg.Query, arg.FilterMetadata, arg.Limit)
	if err != nil {
		return nil, err
	}
	return scanHits(rows)
}

func scanHits(rows pgx.Rows) ([]SearchHit, error) {
	defer rows.Close()

	var hits []SearchHit
	for rows.Next() {
		var h SearchHit
		if err := rows.Scan(&h.Content, &h.Location, &h.Metadata, &h.Similarity); err != nil {
			return nil, err
		}
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

const listSources = `
SELECT id, name, location, position, created_at
FROM sources
WHERE knowledge_base_id = $1
ORDER BY position
`

// ListSources returns the ordered data source listing for a knowledge base.
func (q *Queries) ListSources(ctx context.Context, knowledgeBaseID string) ([]Source, error) {
	rows, err := q.db.Query(ctx, listSources, knowledgeBaseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sources []Source
	for rows.Next() {
		var s Source
		if err := rows.Scan(&s.ID, &s.Name, &s.Location, &s.Position, &s.CreatedAt); err != nil {
			return nil, err
		}
		sources = append(sources, s)
	}
	return sources, rows.Err()
}
