package knowledge

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"

	"github.com/docentlabs/docent/internal/rag"
	"github.com/docentlabs/docent/internal/testutil"
)

type mockQuerier struct {
	hits          []SearchHit
	sources       []Source
	err           error
	semanticCalls int
	hybridCalls   int
	lastArg       SearchChunksParams
}

func (m *mockQuerier) SearchChunksSemantic(_ context.Context, arg SearchChunksParams) ([]SearchHit, error) {
	m.semanticCalls++
	m.lastArg = arg
	return m.hits, m.err
}

func (m *mockQuerier) SearchChunksHybrid(_ context.Context, arg SearchChunksParams) ([]SearchHit, error) {
	m.hybridCalls++
	m.lastArg = arg
	return m.hits, m.err
}

func (m *mockQuerier) ListSources(context.Context, string) ([]Source, error) {
	return m.sources, m.err
}

type mockEmbedder struct {
	err   error
	empty bool
}

func (m *mockEmbedder) Embed(context.Context, *ai.EmbedRequest) (*ai.EmbedResponse, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.empty {
		return &ai.EmbedResponse{}, nil
	}
	return &ai.EmbedResponse{
		Embeddings: []*ai.Embedding{{Embedding: []float32{0.1, 0.2, 0.3}}},
	}, nil
}

func TestRetrieveModeSelection(t *testing.T) {
	tests := []struct {
		name         string
		mode         string
		wantSemantic int
		wantHybrid   int
	}{
		{"hybrid default", rag.SearchModeHybrid, 0, 1},
		{"semantic", rag.SearchModeSemantic, 1, 0},
		{"unknown falls back to hybrid", "", 0, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := &mockQuerier{}
			store := New(q, &mockEmbedder{}, "kb-docs", nil)

			_, err := store.Retrieve(context.Background(), "question", rag.RetrieveOptions{
				TopK:       5,
				SearchMode: tt.mode,
			})
			if err != nil {
				t.Fatalf("Retrieve() = %v", err)
			}
			if q.semanticCalls != tt.wantSemantic || q.hybridCalls != tt.wantHybrid {
				t.Errorf("calls semantic=%d hybrid=%d, want %d/%d",
					q.semanticCalls, q.hybridCalls, tt.wantSemantic, tt.wantHybrid)
			}
		})
	}
}

func TestRetrieveMapsHits(t *testing.T) {
	metadata, _ := json.Marshal(map[string]any{"title": "User Guide"})
	q := &mockQuerier{hits: []SearchHit{
		{Content: "chunk text", Location: "s3://kb/guide.pdf", Metadata: metadata, Similarity: 0.92},
	}}
	store := New(q, &mockEmbedder{}, "kb-docs", nil)

	hits, err := store.Retrieve(context.Background(), "q", rag.RetrieveOptions{TopK: 5})
	if err != nil {
		t.Fatalf("Retrieve() = %v", err)
	}

	if len(hits) != 1 {
		t.Fatalf("got %d hits, want 1", len(hits))
	}
	h := hits[0]
	if h.Text != "chunk text" || h.URI != "s3://kb/guide.pdf" {
		t.Errorf("hit = %+v", h)
	}
	if h.Score != 0.92 {
		t.Errorf("Score = %v", h.Score)
	}
	if title, _ := h.Metadata["title"].(string); title != "User Guide" {
		t.Errorf("metadata title = %q", title)
	}
}

func TestRetrieveScopesKnowledgeBase(t *testing.T) {
	q := &mockQuerier{}
	store := New(q, &mockEmbedder{}, "kb-docs", nil)

	_, err := store.Retrieve(context.Background(), "q", rag.RetrieveOptions{TopK: 7})
	if err != nil {
		t.Fatalf("Retrieve() = %v", err)
	}

	if q.lastArg.KnowledgeBaseID != "kb-docs" {
		t.Errorf("KnowledgeBaseID = %q", q.lastArg.KnowledgeBaseID)
	}
	if q.lastArg.Limit != 7 {
		t.Errorf("Limit = %d, want 7", q.lastArg.Limit)
	}
}

func TestRetrieveFilter(t *testing.T) {
	q := &mockQuerier{}
	store := New(q, &mockEmbedder{}, "kb", nil)

	_, err := store.Retrieve(context.Background(), "q", rag.RetrieveOptions{
		TopK:   5,
		Filter: map[string]any{"category": "runbook"},
	})
	if err != nil {
		t.Fatalf("Retrieve() = %v", err)
	}

	var filter map[string]any
	if err := json.Unmarshal(q.lastArg.FilterMetadata, &filter); err != nil {
		t.Fatalf("filter not valid JSON: %v", err)
	}
	if filter["category"] != "runbook" {
		t.Errorf("filter = %v", filter)
	}
}

func TestRetrieveEmbeddingFailure(t *testing.T) {
	tests := []struct {
		name     string
		embedder *mockEmbedder
	}{
		{"embed error", &mockEmbedder{err: errors.New("quota exceeded")}},
		{"empty response", &mockEmbedder{empty: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := &mockQuerier{}
			store := New(q, tt.embedder, "kb", nil)

			if _, err := store.Retrieve(context.Background(), "q", rag.RetrieveOptions{TopK: 5}); err == nil {
				t.Fatal("Retrieve() succeeded, want error")
			}
			if q.hybridCalls+q.semanticCalls != 0 {
				t.Error("search executed despite embedding failure")
			}
		})
	}
}

// Store accepts an ai.Embedder directly, which is how production wiring
// passes the Gemini embedder in.
func TestRetrieveWithGenkitEmbedder(t *testing.T) {
	g := genkit.Init(context.Background())
	embedder := testutil.NewMockEmbedder(8).RegisterEmbedder(g)

	q := &mockQuerier{}
	store := New(q, embedder, "kb-docs", nil)

	_, err := store.Retrieve(context.Background(), "where is the runbook", rag.RetrieveOptions{TopK: 3})
	if err != nil {
		t.Fatalf("Retrieve() = %v", err)
	}
	if q.hybridCalls != 1 {
		t.Fatalf("hybridCalls = %d, want 1", q.hybridCalls)
	}
	if got := len(q.lastArg.Embedding.Slice()); got != 8 {
		t.Errorf("embedding dimensions = %d, want 8", got)
	}
}

func TestListCatalogOrder(t *testing.T) {
	q := &mockQuerier{sources: []Source{
		{Name: "other.pdf", Position: 1},
		{Name: "guide.pdf", Position: 2},
	}}
	store := New(q, &mockEmbedder{}, "kb", nil)

	entries, err := store.List(context.Background())
	if err != nil {
		t.Fatalf("List() = %v", err)
	}

	if len(entries) != 2 || entries[0].Name != "other.pdf" || entries[1].Name != "guide.pdf" {
		t.Errorf("entries = %+v, want listing order preserved", entries)
	}
}
