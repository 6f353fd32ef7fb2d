package api

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/DuongD0/multimodal-rag/internal/knowledge"
	"github.com/DuongD0/multimodal-rag/internal/log"
)

const readinessTimeout = 2 * time.Second

// healthHandler serves liveness and readiness probes. These sit outside
// the middleware stack so probes never hit the rate limiter.
type healthHandler struct {
	db        *sql.DB
	knowledge *knowledge.Store
	logger    log.Logger
}

func (h *healthHandler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"}, h.logger)
}

func (h *healthHandler) ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()

	if h.db != nil {
		if err := h.db.PingContext(ctx); err != nil {
			h.logger.Error("readiness check failed", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "unavailable",
				"reason": "database unreachable",
			}, h.logger)
			return
		}
	}

	body := map[string]any{"status": "ok"}
	if h.knowledge != nil {
		body["indexedChunks"] = h.knowledge.Len()
	}
	writeJSON(w, http.StatusOK, body, h.logger)
}
