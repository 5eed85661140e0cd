package api

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docentlabs/docent/internal/rag"
)

func signBody(secret, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func postWebhook(t *testing.T, srv *Server, body []byte, signature string) *httptest.ResponseRecorder {
	t.Helper()

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/messages", bytes.NewReader(body))
	if signature != "" {
		r.Header.Set(signatureHeader, signature)
	}
	srv.Handler().ServeHTTP(w, r)
	return w
}

func TestWebhookAnswersMessage(t *testing.T) {
	svc := &fakeQueryService{result: &rag.Result{
		Answer:    "Deploys run from CI [1].",
		Citations: []rag.Reference{{Number: 1, Filename: "runbook.pdf"}},
	}}
	srv := newTestServer(t, svc)

	body, _ := json.Marshal(webhookMessage{
		MessageID: "msg-1",
		Channel:   "ops",
		User:      "renee",
		Text:      "How do we deploy?",
	})

	w := postWebhook(t, srv, body, signBody(testWebhookSecret(), body))

	require.Equal(t, http.StatusOK, w.Code)

	var reply webhookReply
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &reply))
	assert.Equal(t, "msg-1", reply.MessageID)
	assert.Equal(t, "Deploys run from CI [1].", reply.Answer)
	require.Len(t, reply.Citations, 1)

	assert.Equal(t, "How do we deploy?", svc.lastQ)
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	svc := &fakeQueryService{}
	srv := newTestServer(t, svc)

	body, _ := json.Marshal(webhookMessage{Text: "hello"})

	tests := []struct {
		name      string
		signature string
	}{
		{"missing", ""},
		{"wrong secret", signBody([]byte("another-secret-of-32-characters!"), body)},
		{"not hex", "sha256=zzzz"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := postWebhook(t, srv, body, tt.signature)

			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Zero(t, svc.calls)
		})
	}
}

func TestWebhookRejectsBlankText(t *testing.T) {
	svc := &fakeQueryService{}
	srv := newTestServer(t, svc)

	body, _ := json.Marshal(webhookMessage{MessageID: "m", Text: "  "})
	w := postWebhook(t, srv, body, signBody(testWebhookSecret(), body))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Zero(t, svc.calls)
}

func TestWebhookSignatureWithoutPrefix(t *testing.T) {
	srv := newTestServer(t, &fakeQueryService{})

	body, _ := json.Marshal(webhookMessage{Text: "hi"})
	mac := hmac.New(sha256.New, testWebhookSecret())
	mac.Write(body)
	bare := hex.EncodeToString(mac.Sum(nil))

	w := postWebhook(t, srv, body, bare)
	assert.Equal(t, http.StatusOK, w.Code)
}
