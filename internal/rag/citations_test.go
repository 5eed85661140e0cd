package rag

import (
	"reflect"
	"strings"
	"testing"
)

func TestExtractChunks(t *testing.T) {
	tests := []struct {
		name         string
		hit          RawHit
		wantLocation string
		wantContent  string
		wantFilename string
	}{
		{
			name:         "direct uri",
			hit:          RawHit{Text: "body", URI: "s3://docs/manual/setup.pdf"},
			wantLocation: "s3://docs/manual/setup.pdf",
			wantContent:  "body",
			wantFilename: "setup.pdf",
		},
		{
			name:         "nested storage reference",
			hit:          RawHit{Text: "body", Storage: &StorageRef{Bucket: "docs", Key: "documents/guide.pdf"}},
			wantLocation: "s3://docs/documents/guide.pdf",
			wantContent:  "body",
			wantFilename: "guide.pdf",
		},
		{
			name:         "storage reference without bucket",
			hit:          RawHit{Storage: &StorageRef{Key: "guide.pdf"}},
			wantLocation: "guide.pdf",
			wantFilename: "guide.pdf",
		},
		{
			name:         "loose field map",
			hit:          RawHit{Fields: map[string]any{"uri": "https://kb/faq.html", "text": "body"}},
			wantLocation: "https://kb/faq.html",
			wantContent:  "body",
			wantFilename: "faq.html",
		},
		{
			name:         "field map content fallback",
			hit:          RawHit{Fields: map[string]any{"location": "a/b.txt", "content": "from field"}},
			wantLocation: "a/b.txt",
			wantContent:  "from field",
			wantFilename: "b.txt",
		},
		{
			name: "missing everything",
			hit:  RawHit{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunks := ExtractChunks([]RawHit{tt.hit})
			if len(chunks) != 1 {
				t.Fatalf("got %d chunks, want 1", len(chunks))
			}
			c := chunks[0]
			if c.Location != tt.wantLocation {
				t.Errorf("Location = %q, want %q", c.Location, tt.wantLocation)
			}
			if c.Content != tt.wantContent {
				t.Errorf("Content = %q, want %q", c.Content, tt.wantContent)
			}
			if c.Filename() != tt.wantFilename {
				t.Errorf("Filename() = %q, want %q", c.Filename(), tt.wantFilename)
			}
			if c.Rank != 1 {
				t.Errorf("Rank = %d, want 1", c.Rank)
			}
		})
	}
}

func TestExtractChunksAssignsRanks(t *testing.T) {
	chunks := ExtractChunks([]RawHit{
		{URI: "a.pdf", Score: 0.9},
		{URI: "b.pdf", Score: 0.8},
		{URI: "c.pdf", Score: 0.7},
	})

	for i, c := range chunks {
		if c.Rank != i+1 {
			t.Errorf("chunk %d has rank %d", i, c.Rank)
		}
	}
}

func TestChunkTitle(t *testing.T) {
	c := Chunk{Location: "s3://b/docs/guide.pdf", Metadata: map[string]any{"title": "User Guide"}}
	if got := c.Title(); got != "User Guide" {
		t.Errorf("Title() = %q, want metadata title", got)
	}

	c.Metadata = nil
	if got := c.Title(); got != "guide.pdf" {
		t.Errorf("Title() = %q, want filename fallback", got)
	}
}

func TestBuildMappingIsTotal(t *testing.T) {
	chunks := ExtractChunks([]RawHit{
		{URI: "s3://b/guide.pdf"},
		{URI: "s3://b/unknown.pdf"},
		{URI: "s3://b/other.pdf"},
	})
	catalog := []CatalogEntry{{Name: "other.pdf"}, {Name: "guide.pdf"}}

	mapping := BuildMapping(chunks, catalog)

	for i := 1; i <= len(chunks); i++ {
		if _, ok := mapping[i]; !ok {
			t.Errorf("mapping missing local index %d", i)
		}
	}
	if mapping[1] != 2 {
		t.Errorf("mapping[1] = %d, want 2 (catalog position)", mapping[1])
	}
	if mapping[2] != 2 {
		t.Errorf("mapping[2] = %d, want 2 (identity fallback)", mapping[2])
	}
	if mapping[3] != 1 {
		t.Errorf("mapping[3] = %d, want 1", mapping[3])
	}
}

func TestBuildMappingEmptyCatalog(t *testing.T) {
	chunks := ExtractChunks([]RawHit{{URI: "a.pdf"}, {URI: "b.pdf"}})

	mapping := BuildMapping(chunks, nil)

	if !reflect.DeepEqual(mapping, map[int]int{1: 1, 2: 2}) {
		t.Errorf("mapping = %v, want pure identity", mapping)
	}
}

func TestRemapCitations(t *testing.T) {
	tests := []struct {
		name    string
		answer  string
		mapping map[int]int
		want    string
	}{
		{
			name:    "identity",
			answer:  "S3 is object storage [1].",
			mapping: map[int]int{1: 1},
			want:    "S3 is object storage [1].",
		},
		{
			name:    "renumber",
			answer:  "S3 is object storage [1].",
			mapping: map[int]int{1: 2},
			want:    "S3 is object storage [2].",
		},
		{
			name:    "multiple markers",
			answer:  "First [1], then [2], then [1] again.",
			mapping: map[int]int{1: 3, 2: 1},
			want:    "First [3], then [1], then [3] again.",
		},
		{
			name:    "unmapped numbers untouched",
			answer:  "See [7].",
			mapping: map[int]int{1: 2},
			want:    "See [7].",
		},
		{
			name:    "no markers",
			answer:  "Plain answer.",
			mapping: map[int]int{1: 2},
			want:    "Plain answer.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RemapCitations(tt.answer, tt.mapping); got != tt.want {
				t.Errorf("RemapCitations() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRemapCitationsIdempotent(t *testing.T) {
	// Identity on already-mapped targets, as produced by BuildMapping.
	mapping := map[int]int{1: 2, 2: 2, 3: 3}
	answer := "Alpha [1]. Beta [2]. Gamma [3]."

	once := RemapCitations(answer, mapping)
	twice := RemapCitations(once, mapping)

	if once != twice {
		t.Errorf("remap not idempotent: once=%q twice=%q", once, twice)
	}
}

func TestInjectCitations(t *testing.T) {
	chunks := ExtractChunks([]RawHit{{URI: "a.pdf", Text: "x"}, {URI: "b.pdf", Text: "y"}})
	mapping := map[int]int{1: 1, 2: 2}

	t.Run("no-op when marker present", func(t *testing.T) {
		answer := "Already cited [1]. More text."
		if got := InjectCitations(answer, chunks, mapping); got != answer {
			t.Errorf("got %q, want unchanged", got)
		}
	})

	t.Run("no-op without chunks", func(t *testing.T) {
		answer := "No sources here."
		if got := InjectCitations(answer, nil, nil); got != answer {
			t.Errorf("got %q, want unchanged", got)
		}
	})

	t.Run("appends markers to uncited answer", func(t *testing.T) {
		answer := "One. Two. Three. Four. Five."
		got := InjectCitations(answer, chunks, mapping)

		if !markerRe.MatchString(got) {
			t.Fatalf("no citation markers in %q", got)
		}
		if !strings.HasPrefix(got, "One.") {
			t.Errorf("answer text mangled: %q", got)
		}
		// Final segment always gets a marker.
		if !markerRe.MatchString(got[strings.LastIndex(got, "Five."):]) {
			t.Errorf("final segment uncited: %q", got)
		}
	})

	t.Run("uses catalog-mapped numbers", func(t *testing.T) {
		got := InjectCitations("Single sentence.", chunks[:1], map[int]int{1: 4})
		if !strings.Contains(got, "[4]") {
			t.Errorf("expected mapped marker [4] in %q", got)
		}
	})
}

func TestSplitSentences(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{"empty", "", nil},
		{"single", "Hello world.", []string{"Hello world."}},
		{"multiple delimiters", "One. Two! Three?", []string{"One.", "Two!", "Three?"}},
		{"trailing fragment", "Done. And more", []string{"Done.", "And more"}},
		{"decimal point not a boundary", "Costs 3.50 per unit.", []string{"Costs 3.50 per unit."}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := splitSentences(tt.text); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("splitSentences(%q) = %#v, want %#v", tt.text, got, tt.want)
			}
		})
	}
}

func TestBuildReferences(t *testing.T) {
	chunks := ExtractChunks([]RawHit{
		{URI: "s3://b/documents/guide.pdf", Text: "guide text"},
	})
	catalog := []CatalogEntry{{Name: "guide.pdf"}}

	refs := BuildReferences("S3 is object storage [1].", chunks, catalog)

	if len(refs) != 1 {
		t.Fatalf("got %d references, want 1", len(refs))
	}
	ref := refs[0]
	if ref.Number != 1 {
		t.Errorf("Number = %d, want 1", ref.Number)
	}
	if ref.Filename != "guide.pdf" {
		t.Errorf("Filename = %q, want guide.pdf", ref.Filename)
	}
	if ref.Content != "guide text" {
		t.Errorf("Content = %q", ref.Content)
	}
}

func TestBuildReferencesRenumberedCatalog(t *testing.T) {
	chunks := ExtractChunks([]RawHit{
		{URI: "s3://b/documents/guide.pdf", Text: "guide text"},
	})
	catalog := []CatalogEntry{{Name: "other.pdf"}, {Name: "guide.pdf"}}

	mapping := BuildMapping(chunks, catalog)
	answer := RemapCitations("S3 is object storage [1].", mapping)

	if answer != "S3 is object storage [2]." {
		t.Fatalf("remapped answer = %q", answer)
	}

	refs := BuildReferences(answer, chunks, catalog)
	if len(refs) != 1 || refs[0].Number != 2 {
		t.Fatalf("refs = %+v, want single reference numbered 2", refs)
	}
}

func TestBuildReferencesOrderAndDedup(t *testing.T) {
	chunks := ExtractChunks([]RawHit{
		{URI: "a.pdf", Text: "a"},
		{URI: "b.pdf", Text: "b"},
	})
	catalog := []CatalogEntry{{Name: "a.pdf"}, {Name: "b.pdf"}}

	refs := BuildReferences("Later point [2]. Earlier source [1]. Again [2].", chunks, catalog)

	if len(refs) != 2 {
		t.Fatalf("got %d references, want 2", len(refs))
	}
	if refs[0].Number != 2 || refs[1].Number != 1 {
		t.Errorf("order = [%d %d], want first-appearance order [2 1]", refs[0].Number, refs[1].Number)
	}
}

func TestBuildReferencesOmitsUnmatched(t *testing.T) {
	chunks := ExtractChunks([]RawHit{{URI: "unknown.pdf", Text: "u"}})

	// Identity-fallback marker [1] stays in the text but yields no entry
	// because no chunk resolved to a catalog position.
	refs := BuildReferences("Claim [1].", chunks, []CatalogEntry{{Name: "other.pdf"}})

	if len(refs) != 0 {
		t.Errorf("got %d references, want 0 for catalog-less chunk", len(refs))
	}
}
