package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/DuongD0/multimodal-rag/internal/log"
)

// errorBody is the JSON error envelope for all API errors.
type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// writeJSON writes a JSON response. The body is encoded into a buffer
// first so headers are only sent after successful encoding and a proper
// 500 can still be returned when encoding fails.
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
		// Client disconnects are common and expected.
		logger.Debug("writing response body", "error", err)
	}
}

// writeError writes a JSON error response with a machine-readable code.
func writeError(w http.ResponseWriter, status int, code, message string, logger log.Logger) {
	writeJSON(w, status, errorBody{Code: code, Message: message}, logger)
}
