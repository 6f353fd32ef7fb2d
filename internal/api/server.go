// Package api exposes the RAG service over HTTP: chat (sync and SSE
// streaming), session management, document ingestion and search.
package api

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/DuongD0/multimodal-rag/internal/chat"
	"github.com/DuongD0/multimodal-rag/internal/knowledge"
	"github.com/DuongD0/multimodal-rag/internal/log"
	"github.com/DuongD0/multimodal-rag/internal/session"
)

const (
	defaultRatePerSecond = 10
	defaultRateBurst     = 30
)

// ServerConfig carries the dependencies and settings for the HTTP server.
type ServerConfig struct {
	Logger    log.Logger
	ChatFlow  *chat.Flow
	Sessions  *session.Store
	Knowledge *knowledge.Store
	Ingestor  *knowledge.Ingestor
	Registry  *knowledge.Registry
	DB        *sql.DB

	// CORSOrigins lists browser origins allowed to call the API.
	CORSOrigins []string
	// TrustProxy enables X-Real-IP and X-Forwarded-For for rate limiting.
	TrustProxy bool
	// RatePerSecond and RateBurst tune the per-IP limiter. Zero means default.
	RatePerSecond float64
	RateBurst     int
}

// Server is the assembled HTTP handler with its middleware stack.
type Server struct {
	handler http.Handler
	logger  log.Logger
}

// NewServer wires handlers and middleware into a ready http.Handler.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Sessions == nil {
		return nil, errors.New("session store is required")
	}
	if cfg.Knowledge == nil || cfg.Ingestor == nil || cfg.Registry == nil {
		return nil, errors.New("knowledge store, ingestor and registry are required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNop()
	}
	ratePerSec := cfg.RatePerSecond
	if ratePerSec <= 0 {
		ratePerSec = defaultRatePerSecond
	}
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = defaultRateBurst
	}

	apiMux := http.NewServeMux()

	chatH := &chatHandler{flow: cfg.ChatFlow, logger: logger}
	chatH.registerRoutes(apiMux)

	sessionH := &sessionHandler{sessions: cfg.Sessions, logger: logger}
	sessionH.registerRoutes(apiMux)

	docH := &documentHandler{
		knowledge: cfg.Knowledge,
		ingestor:  cfg.Ingestor,
		registry:  cfg.Registry,
		logger:    logger,
	}
	docH.registerRoutes(apiMux)

	// Innermost first: the request passes recovery, request ID, logging,
	// CORS, then rate limiting before reaching a handler.
	limiter := newRateLimiter(ratePerSec, burst)
	var handler http.Handler = apiMux
	handler = rateLimitMiddleware(limiter, cfg.TrustProxy, logger)(handler)
	handler = corsMiddleware(cfg.CORSOrigins)(handler)
	handler = loggingMiddleware(logger)(handler)
	handler = requestIDMiddleware()(handler)
	handler = recoveryMiddleware(logger)(handler)

	healthH := &healthHandler{db: cfg.DB, knowledge: cfg.Knowledge, logger: logger}
	root := http.NewServeMux()
	root.HandleFunc("GET /health", healthH.health)
	root.HandleFunc("GET /ready", healthH.ready)
	root.Handle("/", handler)

	return &Server{handler: root, logger: logger}, nil
}

// Handler returns the root handler for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.handler
}
