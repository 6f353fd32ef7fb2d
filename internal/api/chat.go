package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/firebase/genkit/go/genkit"

	"github.com/DuongD0/multimodal-rag/internal/chat"
	"github.com/DuongD0/multimodal-rag/internal/log"
)

// maxChatBodyBytes caps chat request bodies. Queries are short text.
const maxChatBodyBytes = 1 << 20

// SSE event types for chat streaming.
const (
	eventChunk = "chunk"
	eventDone  = "done"
	eventError = "error"
)

// chunkPayload carries a partial response text fragment.
type chunkPayload struct {
	Text string `json:"text"`
}

// donePayload carries the complete response once streaming finishes.
type donePayload struct {
	Response  string `json:"response"`
	SessionID string `json:"sessionId"`
}

// errorPayload carries a terminal stream error.
type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// chatHandler serves the chat endpoints.
//
//	POST /api/v1/chat        - synchronous chat (JSON in, JSON out)
//	POST /api/v1/chat/stream - streaming chat over Server-Sent Events
//
// Both endpoints run the same flow so behavior stays identical.
type chatHandler struct {
	flow   *chat.Flow
	logger log.Logger
}

func (h *chatHandler) registerRoutes(mux *http.ServeMux) {
	if h.flow == nil {
		h.logger.Warn("chat flow not configured, chat routes disabled")
		return
	}
	mux.Handle("POST /api/v1/chat", genkit.Handler(h.flow))
	mux.HandleFunc("POST /api/v1/chat/stream", h.stream)
}

func (h *chatHandler) stream(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	var input chat.Input
	r.Body = http.MaxBytesReader(w, r.Body, maxChatBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		_ = writeEvent(w, flusher, eventError, errorPayload{
			Code:    "invalid_request",
			Message: "invalid request body",
		})
		return
	}

	if input.SessionID == "" {
		_ = writeEvent(w, flusher, eventError, errorPayload{Code: "missing_session_id", Message: "sessionId is required"})
		return
	}
	if input.Query == "" {
		_ = writeEvent(w, flusher, eventError, errorPayload{Code: "missing_query", Message: "query is required"})
		return
	}

	ctx := r.Context()
	h.logger.Debug("stream started", "session_id", input.SessionID)

	var (
		finalOutput chat.Output
		streamErr   error
	)

	for streamValue, err := range h.flow.Stream(ctx, input) {
		select {
		case <-ctx.Done():
			h.logger.Debug("client disconnected", "session_id", input.SessionID)
			return
		default:
		}

		if err != nil {
			streamErr = err
			break
		}

		if streamValue.Done {
			finalOutput = streamValue.Output
			break
		}

		if streamValue.Stream.Text != "" {
			if err := writeEvent(w, flusher, eventChunk, chunkPayload{
				Text: streamValue.Stream.Text,
			}); err != nil {
				// Write failure usually means the connection closed.
				h.logger.Debug("writing chunk", "error", err)
				return
			}
		}
	}

	if streamErr != nil {
		h.writeStreamError(w, flusher, streamErr)
		return
	}

	_ = writeEvent(w, flusher, eventDone, donePayload{
		Response:  finalOutput.Response,
		SessionID: finalOutput.SessionID,
	})
}

func (*chatHandler) writeStreamError(w io.Writer, f http.Flusher, err error) {
	code := "stream_error"
	switch {
	case errors.Is(err, chat.ErrInvalidSession):
		code = "invalid_session"
	case errors.Is(err, chat.ErrExecutionFailed):
		code = "execution_failed"
	}

	_ = writeEvent(w, f, eventError, errorPayload{
		Code:    code,
		Message: err.Error(),
	})
}

// writeEvent writes one SSE event: "event: <type>\ndata: <json>\n\n".
func writeEvent[T any](w io.Writer, flusher http.Flusher, event string, data T) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshaling event data: %w", err)
	}

	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, jsonData); err != nil {
		return fmt.Errorf("writing event: %w", err)
	}

	flusher.Flush()
	return nil
}
