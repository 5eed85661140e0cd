package rag

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

// markerRe matches bracketed numeric citation markers in answer text.
var markerRe = regexp.MustCompile(`\[(\d+)\]`)

// ExtractChunks normalizes raw retrieval hits into chunks. It tolerates
// the three location shapes backends report (direct URI, nested storage
// reference, loose field map) and missing content. Rank is assigned from
// retrieval order, 1-based.
func ExtractChunks(hits []RawHit) []Chunk {
	chunks := make([]Chunk, 0, len(hits))
	for i, hit := range hits {
		chunks = append(chunks, Chunk{
			Content:  hitContent(hit),
			Location: hitLocation(hit),
			Score:    hit.Score,
			Rank:     i + 1,
			Metadata: hit.Metadata,
		})
	}
	return chunks
}

func hitLocation(hit RawHit) string {
	if hit.URI != "" {
		return hit.URI
	}
	if s := hit.Storage; s != nil {
		if s.Bucket != "" {
			return "s3://" + s.Bucket + "/" + s.Key
		}
		return s.Key
	}
	for _, key := range []string{"uri", "url", "location", "key"} {
		if v, ok := hit.Fields[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

func hitContent(hit RawHit) string {
	if hit.Text != "" {
		return hit.Text
	}
	for _, key := range []string{"text", "content"} {
		if v, ok := hit.Fields[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

// BuildMapping maps each pipeline-local citation index (chunk rank) to its
// catalog position. The lookup key is the chunk title, falling back to the
// derived filename. Unmatched ranks map to themselves, so the mapping is
// total and downstream renumbering never drops a marker.
func BuildMapping(chunks []Chunk, catalog []CatalogEntry) map[int]int {
	index := catalogIndex(catalog)
	mapping := make(map[int]int, len(chunks))
	for _, c := range chunks {
		if pos, ok := index[c.Title()]; ok {
			mapping[c.Rank] = pos
			continue
		}
		mapping[c.Rank] = c.Rank
	}
	return mapping
}

// catalogIndex maps catalog names to 1-based positions. On duplicate
// names the first occurrence wins.
func catalogIndex(catalog []CatalogEntry) map[string]int {
	index := make(map[string]int, len(catalog))
	for i, e := range catalog {
		if _, ok := index[e.Name]; ok {
			continue
		}
		index[e.Name] = i + 1
	}
	return index
}

// RemapCitations rewrites every [n] marker in answer to its mapped catalog
// number. Unmapped numbers pass through unchanged. Reapplying with the
// same mapping is a no-op as long as mapped targets are fixed points.
func RemapCitations(answer string, mapping map[int]int) string {
	return markerRe.ReplaceAllStringFunc(answer, func(m string) string {
		n, err := strconv.Atoi(m[1 : len(m)-1])
		if err != nil {
			return m
		}
		to, ok := mapping[n]
		if !ok {
			return m
		}
		return "[" + strconv.Itoa(to) + "]"
	})
}

// InjectCitations adds citation markers to an answer the model produced
// without any. It splits the text into sentence-like segments and appends
// a catalog-mapped marker after roughly every third segment and at the
// final one, cycling through the chunks in retrieval order. Answers that
// already contain a marker are returned unchanged.
func InjectCitations(answer string, chunks []Chunk, mapping map[int]int) string {
	if len(chunks) == 0 || markerRe.MatchString(answer) {
		return answer
	}

	segments := splitSentences(answer)
	if len(segments) == 0 {
		return answer
	}

	var b strings.Builder
	next := 0
	for i, seg := range segments {
		b.WriteString(seg)
		if (i+1)%3 == 0 || i == len(segments)-1 {
			n := chunks[next%len(chunks)].Rank
			if to, ok := mapping[n]; ok {
				n = to
			}
			b.WriteString(" [")
			b.WriteString(strconv.Itoa(n))
			b.WriteString("]")
			next++
		}
		if i < len(segments)-1 {
			b.WriteString(" ")
		}
	}
	return b.String()
}

// splitSentences splits text into segments ending at `.`, `!` or `?`
// followed by whitespace (or end of text), keeping the punctuation.
func splitSentences(text string) []string {
	var segments []string
	runes := []rune(text)
	start := 0
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		if i+1 < len(runes) && !unicode.IsSpace(runes[i+1]) {
			continue
		}
		segments = append(segments, string(runes[start:i+1]))
		j := i + 1
		for j < len(runes) && unicode.IsSpace(runes[j]) {
			j++
		}
		start = j
		i = j - 1
	}
	if start < len(runes) {
		segments = append(segments, string(runes[start:]))
	}
	return segments
}

// BuildReferences scans the remapped answer for citation markers and
// returns one reference per distinct number, ordered by first appearance.
// A number yields a reference only when some chunk actually resolved to
// that catalog position; identity-fallback numbers with no catalog match
// are left in the text but omitted from the list.
func BuildReferences(answer string, chunks []Chunk, catalog []CatalogEntry) []Reference {
	index := catalogIndex(catalog)
	byNumber := make(map[int]Chunk, len(chunks))
	for _, c := range chunks {
		pos, ok := index[c.Title()]
		if !ok {
			continue
		}
		if _, exists := byNumber[pos]; !exists {
			byNumber[pos] = c
		}
	}

	refs := []Reference{}
	seen := make(map[int]bool)
	for _, m := range markerRe.FindAllStringSubmatch(answer, -1) {
		n, err := strconv.Atoi(m[1])
		if err != nil || seen[n] {
			continue
		}
		seen[n] = true
		c, ok := byNumber[n]
		if !ok {
			continue
		}
		refs = append(refs, Reference{
			Number:   n,
			Title:    c.Title(),
			Filename: c.Filename(),
			Content:  c.Content,
			Location: c.Location,
			Metadata: c.Metadata,
		})
	}
	return refs
}
