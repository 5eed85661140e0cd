package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/docentlabs/docent/internal/log"
	"github.com/docentlabs/docent/internal/rag"
)

// maxQueryBodyBytes caps the request body to keep config overrides sane.
const maxQueryBodyBytes = 256 * 1024

// QueryService is the pipeline capability the query endpoint consumes.
type QueryService interface {
	Query(ctx context.Context, question string, opts ...rag.QueryOption) (*rag.Result, error)
}

// queryHandler serves POST /api/v1/query.
type queryHandler struct {
	service QueryService
	logger  log.Logger
}

type queryRequest struct {
	Question  string         `json:"question"`
	SessionID string         `json:"session_id,omitempty"`
	Overrides map[string]any `json:"config_overrides,omitempty"`
}

type queryResponse struct {
	Answer    string          `json:"answer"`
	Citations []rag.Reference `json:"citations"`
	SessionID string          `json:"session_id,omitempty"`
}

// answer runs one question through the pipeline. Blank questions are
// rejected here; the pipeline assumes trimmed, non-blank input.
func (h *queryHandler) answer(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxQueryBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body", h.logger)
		return
	}

	question := strings.TrimSpace(req.Question)
	if question == "" {
		writeError(w, http.StatusBadRequest, "missing_question", "question is required", h.logger)
		return
	}

	var opts []rag.QueryOption
	if req.SessionID != "" {
		opts = append(opts, rag.WithSessionID(req.SessionID))
	}
	if len(req.Overrides) > 0 {
		opts = append(opts, rag.WithOverrides(req.Overrides))
	}

	result, err := h.service.Query(r.Context(), question, opts...)
	if err != nil {
		h.writeQueryError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, queryResponse{
		Answer:    result.Answer,
		Citations: result.Citations,
		SessionID: result.SessionID,
	}, h.logger)
}

// writeQueryError maps pipeline error kinds onto transport status codes.
// Anything outside the pipeline's taxonomy is a plain 500.
func (h *queryHandler) writeQueryError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, rag.ErrMissingKnowledgeBase):
		h.logger.Error("query rejected, knowledge base not configured",
			"request_id", requestIDFromContext(r.Context()))
		writeError(w, http.StatusServiceUnavailable, "knowledge_base_unconfigured",
			"knowledge base is not configured", h.logger)
	case errors.Is(err, rag.ErrService):
		h.logger.Error("query backend failure",
			"error", err,
			"request_id", requestIDFromContext(r.Context()))
		writeError(w, http.StatusBadGateway, "backend_error",
			"retrieval or generation backend failed", h.logger)
	default:
		h.logger.Error("query failed",
			"error", err,
			"request_id", requestIDFromContext(r.Context()))
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error", h.logger)
	}
}
