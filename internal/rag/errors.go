package rag

import "errors"

// Sentinel errors. Only these two escape Query; everything else degrades
// into a partial result.
var (
	// ErrMissingKnowledgeBase indicates no knowledge base is configured.
	// Raised before any network call is attempted.
	ErrMissingKnowledgeBase = errors.New("knowledge base not configured")

	// ErrService indicates a retrieval or generation backend failure.
	ErrService = errors.New("service error")
)
