package rag

// Retrieval search modes.
const (
	SearchModeHybrid   = "HYBRID"
	SearchModeSemantic = "SEMANTIC"
)

// Pipeline defaults. Callers override per query via MergeConfig.
const (
	DefaultTopK         = 20
	DefaultContextChars = 50000
	DefaultTemperature  = 0.2
	DefaultTopP         = 0.9
	DefaultMaxTokens    = 2048
)

// DefaultQueryConfig returns the baseline retrieval/generation settings
// for model. Overrides are deep-merged on top per query.
func DefaultQueryConfig(model string) map[string]any {
	return map[string]any{
		"retrieval": map[string]any{
			"top_k":       DefaultTopK,
			"search_mode": SearchModeHybrid,
		},
		"generation": map[string]any{
			"model":       model,
			"temperature": DefaultTemperature,
			"top_p":       DefaultTopP,
			"max_tokens":  DefaultMaxTokens,
		},
		"context_chars": DefaultContextChars,
	}
}

// MergeConfig deep-merges override into base and returns a new map.
// When both sides hold a map at a key the maps merge recursively;
// otherwise the override value replaces the base value outright.
// Neither input is mutated.
func MergeConfig(base, override map[string]any) map[string]any {
	out := make(map[string]any, len(base))
	for k, v := range base {
		if m, ok := v.(map[string]any); ok {
			out[k] = MergeConfig(m, nil)
			continue
		}
		out[k] = v
	}
	for k, v := range override {
		bm, bok := out[k].(map[string]any)
		om, ook := v.(map[string]any)
		if bok && ook {
			out[k] = MergeConfig(bm, om)
			continue
		}
		out[k] = v
	}
	return out
}

// querySettings is the merged configuration resolved into typed fields.
type querySettings struct {
	TopK           int
	SearchMode     string
	RerankingModel string
	Filter         map[string]any
	Model          string
	Temperature    float64
	TopP           float64
	MaxTokens      int
	StopSequences  []string
	LatencyMode    string
	ContextChars   int
}

func resolveSettings(cfg map[string]any) querySettings {
	return querySettings{
		TopK:           intAt(cfg, DefaultTopK, "retrieval", "top_k"),
		SearchMode:     stringAt(cfg, SearchModeHybrid, "retrieval", "search_mode"),
		RerankingModel: stringAt(cfg, "", "retrieval", "reranking_model"),
		Filter:         mapAt(cfg, "retrieval", "filter"),
		Model:          stringAt(cfg, "", "generation", "model"),
		Temperature:    floatAt(cfg, DefaultTemperature, "generation", "temperature"),
		TopP:           floatAt(cfg, DefaultTopP, "generation", "top_p"),
		MaxTokens:      intAt(cfg, DefaultMaxTokens, "generation", "max_tokens"),
		StopSequences:  stringsAt(cfg, "generation", "stop_sequences"),
		LatencyMode:    stringAt(cfg, "", "generation", "latency_mode"),
		ContextChars:   intAt(cfg, DefaultContextChars, "context_chars"),
	}
}

// lookup walks nested maps along keys. Missing keys or non-map
// intermediates report not found.
func lookup(cfg map[string]any, keys ...string) (any, bool) {
	var cur any = cfg
	for _, k := range keys {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[k]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// Overrides arrive from JSON-decoded request bodies, so numeric values
// may be float64 rather than int. The accessors tolerate both.

func intAt(cfg map[string]any, def int, keys ...string) int {
	v, ok := lookup(cfg, keys...)
	if !ok {
		return def
	}
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	}
	return def
}

func floatAt(cfg map[string]any, def float64, keys ...string) float64 {
	v, ok := lookup(cfg, keys...)
	if !ok {
		return def
	}
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	}
	return def
}

func stringAt(cfg map[string]any, def string, keys ...string) string {
	v, ok := lookup(cfg, keys...)
	if !ok {
		return def
	}
	if s, ok := v.(string); ok {
		return s
	}
	return def
}

func stringsAt(cfg map[string]any, keys ...string) []string {
	v, ok := lookup(cfg, keys...)
	if !ok {
		return nil
	}
	switch s := v.(type) {
	case []string:
		return s
	case []any:
		out := make([]string, 0, len(s))
		for _, e := range s {
			if str, ok := e.(string); ok {
				out = append(out, str)
			}
		}
		return out
	}
	return nil
}

func mapAt(cfg map[string]any, keys ...string) map[string]any {
	v, ok := lookup(cfg, keys...)
	if !ok {
		return nil
	}
	if m, ok := v.(map[string]any); ok {
		return m
	}
	return nil
}
