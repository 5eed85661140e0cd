package knowledge

import "time"

// Source is one whole document registered in a knowledge base. Position is
// the 1-based order in the user-facing data source listing; the catalog
// exposed for citation numbering follows it.
type Source struct {
	ID        string
	Name      string
	Location  string
	Position  int
	CreatedAt time.Time
}

// SearchHit is one chunk-level retrieval row before normalization.
type SearchHit struct {
	Content    string
	Location   string
	Metadata   []byte
	Similarity float64
}
