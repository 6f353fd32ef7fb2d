package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/DuongD0/multimodal-rag/internal/knowledge"
	"github.com/DuongD0/multimodal-rag/internal/log"
)

// documentHandler serves knowledge base management endpoints: ingesting
// documents, listing what is indexed, removing sources, and raw
// similarity search for debugging retrieval quality.
type documentHandler struct {
	knowledge *knowledge.Store
	ingestor  *knowledge.Ingestor
	registry  *knowledge.Registry
	logger    log.Logger
}

func (h *documentHandler) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/documents", h.ingest)
	mux.HandleFunc("GET /api/v1/documents", h.list)
	mux.HandleFunc("DELETE /api/v1/documents/{source}", h.delete)
	mux.HandleFunc("GET /api/v1/search", h.search)
}

type ingestRequest struct {
	FilePath string `json:"filePath"`
}

func (h *documentHandler) ingest(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxChatBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body", h.logger)
		return
	}
	if strings.TrimSpace(req.FilePath) == "" {
		writeError(w, http.StatusBadRequest, "missing_file_path", "filePath is required", h.logger)
		return
	}

	result, err := h.ingestor.Ingest(r.Context(), req.FilePath)
	if err != nil {
		h.logger.Error("ingesting document", "error", err, "path", req.FilePath)
		writeError(w, http.StatusUnprocessableEntity, "ingest_failed", err.Error(), h.logger)
		return
	}
	writeJSON(w, http.StatusCreated, result, h.logger)
}

func (h *documentHandler) list(w http.ResponseWriter, r *http.Request) {
	records, err := h.registry.List(r.Context())
	if err != nil {
		h.logger.Error("listing documents", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to list documents", h.logger)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": records}, h.logger)
}

func (h *documentHandler) delete(w http.ResponseWriter, r *http.Request) {
	source := r.PathValue("source")

	removed, err := h.ingestor.Remove(r.Context(), source)
	if err != nil {
		if errors.Is(err, knowledge.ErrDocumentNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "document not found", h.logger)
			return
		}
		h.logger.Error("removing document", "error", err, "source", source)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to remove document", h.logger)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"source": source, "chunksRemoved": removed}, h.logger)
}

type searchResult struct {
	Source   string  `json:"source"`
	Page     int     `json:"page"`
	Text     string  `json:"text"`
	Modality string  `json:"modality"`
	Score    float32 `json:"score"`
}

func (h *documentHandler) search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if strings.TrimSpace(query) == "" {
		writeError(w, http.StatusBadRequest, "missing_query", "q is required", h.logger)
		return
	}

	var opts []knowledge.SearchOption
	if k := queryInt(r, "k", 0); k > 0 {
		opts = append(opts, knowledge.WithTopK(k))
	}
	if source := r.URL.Query().Get("source"); source != "" {
		opts = append(opts, knowledge.WithSource(source))
	}

	results, err := h.knowledge.Search(r.Context(), query, opts...)
	if err != nil {
		if errors.Is(err, knowledge.ErrEmptyQuery) {
			writeError(w, http.StatusBadRequest, "missing_query", "q is required", h.logger)
			return
		}
		h.logger.Error("searching knowledge base", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "search failed", h.logger)
		return
	}

	out := make([]searchResult, 0, len(results))
	for _, res := range results {
		out = append(out, searchResult{
			Source:   res.Chunk.Source,
			Page:     res.Chunk.Page,
			Text:     res.Chunk.Text,
			Modality: res.Chunk.Modality,
			Score:    res.Score,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": out}, h.logger)
}
