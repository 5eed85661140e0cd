package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/docentlabs/docent/internal/log"
)

// errorBody is the JSON shape of all error responses.
type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// writeJSON writes a JSON response with the given status code. The body is
// encoded into a buffer first so a failed encoding can still produce a
// clean 500 instead of a half-written response.
func writeJSON(w http.ResponseWriter, status int, data any, logger log.Logger) {
	buf := new(bytes.Buffer)
	if err := json.NewEncoder(buf).Encode(data); err != nil {
		logger.Error("encoding JSON response", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	if _, err := w.Write(buf.Bytes()); err != nil {
		// Client disconnects are routine.
		logger.Debug("writing response body", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, code, message string, logger log.Logger) {
	var body errorBody
	body.Error.Code = code
	body.Error.Message = message
	writeJSON(w, status, body, logger)
}
