package api

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/docentlabs/docent/internal/log"
	"github.com/docentlabs/docent/internal/rag"
)

// signatureHeader carries the hex HMAC-SHA256 of the raw request body,
// computed with the shared webhook secret.
const signatureHeader = "X-Docent-Signature"

const maxWebhookBodyBytes = 64 * 1024

// webhookHandler serves the messaging-channel webhook. Inbound messages
// are answered through the same pipeline as the API endpoint; the channel
// identity rides along as the session.
type webhookHandler struct {
	service QueryService
	secret  []byte
	logger  log.Logger
}

type webhookMessage struct {
	MessageID string `json:"message_id"`
	Channel   string `json:"channel"`
	User      string `json:"user"`
	Text      string `json:"text"`
}

type webhookReply struct {
	MessageID string          `json:"message_id"`
	Answer    string          `json:"answer"`
	Citations []rag.Reference `json:"citations"`
}

func (h *webhookHandler) receive(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unreadable request body", h.logger)
		return
	}

	if !h.verifySignature(body, r.Header.Get(signatureHeader)) {
		h.logger.Warn("webhook signature verification failed",
			"request_id", requestIDFromContext(r.Context()))
		writeError(w, http.StatusUnauthorized, "invalid_signature", "signature verification failed", h.logger)
		return
	}

	var msg webhookMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid message payload", h.logger)
		return
	}

	question := strings.TrimSpace(msg.Text)
	if question == "" {
		writeError(w, http.StatusBadRequest, "missing_text", "message text is required", h.logger)
		return
	}

	var opts []rag.QueryOption
	if msg.Channel != "" {
		opts = append(opts, rag.WithSessionID(msg.Channel))
	}

	result, err := h.service.Query(r.Context(), question, opts...)
	if err != nil {
		(&queryHandler{service: h.service, logger: h.logger}).writeQueryError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, webhookReply{
		MessageID: msg.MessageID,
		Answer:    result.Answer,
		Citations: result.Citations,
	}, h.logger)
}

// verifySignature checks the hex HMAC-SHA256 of body in constant time.
func (h *webhookHandler) verifySignature(body []byte, signature string) bool {
	if signature == "" {
		return false
	}
	provided, err := hex.DecodeString(strings.TrimPrefix(signature, "sha256="))
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, h.secret)
	mac.Write(body)
	return hmac.Equal(provided, mac.Sum(nil))
}
