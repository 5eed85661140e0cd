package rag

import (
	"context"
	"strings"
	"time"
)

// StorageRef identifies a source object in bucket-addressed storage.
type StorageRef struct {
	Bucket string
	Key    string
}

// RawHit is one raw retrieval result before normalization. Backends report
// the originating document in one of three shapes: a direct URI, a nested
// storage reference, or a loose field map. At most one shape is populated;
// extraction picks whichever is present.
type RawHit struct {
	Text     string
	URI      string
	Storage  *StorageRef
	Fields   map[string]any
	Score    float64
	Metadata map[string]any
}

// Chunk is a normalized retrieval hit. Rank is the 1-based position in
// retrieval order, which doubles as the pipeline-local citation index.
type Chunk struct {
	Content  string
	Location string
	Score    float64
	Rank     int
	Metadata map[string]any
}

// Filename returns the last path segment of the chunk's location.
func (c Chunk) Filename() string {
	loc := strings.TrimRight(c.Location, "/")
	if loc == "" {
		return ""
	}
	if i := strings.LastIndex(loc, "/"); i >= 0 {
		return loc[i+1:]
	}
	return loc
}

// Title returns the metadata title when present, falling back to the
// derived filename. This is the lookup key for catalog matching.
func (c Chunk) Title() string {
	if t, ok := c.Metadata["title"].(string); ok && t != "" {
		return t
	}
	return c.Filename()
}

// CatalogEntry is one document in the user-facing data source listing.
// Its 1-based position in the listing is the catalog citation number.
type CatalogEntry struct {
	Name string
}

// Reference is a citation as surfaced to the caller, numbered by catalog
// position and deduplicated by number.
type Reference struct {
	Number   int            `json:"number"`
	Title    string         `json:"title"`
	Filename string         `json:"filename"`
	Content  string         `json:"content,omitempty"`
	Location string         `json:"location,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Result is the outcome of one query: the answer text with catalog-numbered
// citation markers substituted in, and the references they point to.
type Result struct {
	Answer    string      `json:"answer"`
	Citations []Reference `json:"citations"`
	SessionID string      `json:"session_id,omitempty"`
}

// UsageRecord captures the cost accounting data for one completed query.
type UsageRecord struct {
	ModelID      string
	InputTokens  int
	OutputTokens int
	UserQuery    string
	LatencyMS    int64
	CreatedAt    time.Time
}

// RetrieveOptions carries the retrieval knobs resolved from the merged
// query configuration.
type RetrieveOptions struct {
	TopK           int
	SearchMode     string
	RerankingModel string
	Filter         map[string]any
}

// Retriever performs ranked retrieval against a knowledge base.
type Retriever interface {
	Retrieve(ctx context.Context, question string, opts RetrieveOptions) ([]RawHit, error)
}

// GenerateRequest is the input to one generation call.
type GenerateRequest struct {
	Model         string
	Prompt        string
	Temperature   float64
	TopP          float64
	MaxTokens     int
	StopSequences []string
	LatencyMode   string
	SessionID     string
}

// Usage reports actual token counts from a generation backend. When
// present it takes precedence over the heuristic estimate.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// GenerateResponse is the output of one generation call.
type GenerateResponse struct {
	Text      string
	Usage     *Usage
	SessionID string
}

// Generator produces answer text for a prompt.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error)
}

// Catalog lists the ordered, user-facing enumeration of knowledge-base
// source documents. The listing is fetched once per query and used only
// for citation renumbering.
type Catalog interface {
	List(ctx context.Context) ([]CatalogEntry, error)
}

// Recorder persists usage records. Both operations are best-effort from
// the pipeline's point of view: errors are logged and discarded.
type Recorder interface {
	Record(ctx context.Context, rec UsageRecord) error
	RefreshMetrics(ctx context.Context) error
}
