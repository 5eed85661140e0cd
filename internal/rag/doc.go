// Package rag implements the retrieval-augmented query pipeline: ranked
// retrieval against a knowledge base, grounded answer generation, and
// citation reconciliation against the user-facing document catalog.
//
// The pipeline is a single synchronous request/response cycle. Retrieval
// and generation failures abort the query; citation processing and usage
// recording degrade without failing it.
package rag
