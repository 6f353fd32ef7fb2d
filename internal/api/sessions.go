package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/DuongD0/multimodal-rag/internal/log"
	"github.com/DuongD0/multimodal-rag/internal/session"
)

// sessionHandler serves CRUD endpoints for chat sessions and their
// message history.
type sessionHandler struct {
	sessions *session.Store
	logger   log.Logger
}

func (h *sessionHandler) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/sessions", h.list)
	mux.HandleFunc("POST /api/v1/sessions", h.create)
	mux.HandleFunc("GET /api/v1/sessions/{id}", h.get)
	mux.HandleFunc("DELETE /api/v1/sessions/{id}", h.delete)
	mux.HandleFunc("GET /api/v1/sessions/{id}/messages", h.messages)
}

type createSessionRequest struct {
	Title     string `json:"title"`
	ModelName string `json:"modelName"`
}

func (h *sessionHandler) create(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxChatBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body", h.logger)
		return
	}

	sess, err := h.sessions.Create(r.Context(), req.Title, req.ModelName)
	if err != nil {
		h.logger.Error("creating session", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to create session", h.logger)
		return
	}
	writeJSON(w, http.StatusCreated, sess, h.logger)
}

func (h *sessionHandler) list(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	offset := queryInt(r, "offset", 0)

	sessions, err := h.sessions.List(r.Context(), limit, offset)
	if err != nil {
		h.logger.Error("listing sessions", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to list sessions", h.logger)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": sessions}, h.logger)
}

func (h *sessionHandler) get(w http.ResponseWriter, r *http.Request) {
	sess, err := h.sessions.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "session not found", h.logger)
			return
		}
		h.logger.Error("getting session", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to get session", h.logger)
		return
	}
	writeJSON(w, http.StatusOK, sess, h.logger)
}

func (h *sessionHandler) delete(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Delete(r.Context(), r.PathValue("id")); err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "session not found", h.logger)
			return
		}
		h.logger.Error("deleting session", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to delete session", h.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *sessionHandler) messages(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := h.sessions.Get(r.Context(), id); err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "session not found", h.logger)
			return
		}
		h.logger.Error("getting session", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to get session", h.logger)
		return
	}

	limit := queryInt(r, "limit", 200)
	offset := queryInt(r, "offset", 0)

	msgs, err := h.sessions.Messages(r.Context(), id, limit, offset)
	if err != nil {
		h.logger.Error("listing messages", "error", err, "session_id", id)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to list messages", h.logger)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": msgs}, h.logger)
}

// queryInt parses a positive integer query parameter, falling back to
// def when missing or malformed.
func queryInt(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return def
	}
	return n
}
