package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/DuongD0/multimodal-rag/internal/api"
	"github.com/DuongD0/multimodal-rag/internal/app"
)

// Server timeouts. WriteTimeout stays long because SSE streams can run
// for the duration of a model response.
const (
	readHeaderTimeout = 10 * time.Second
	readTimeout       = 30 * time.Second
	writeTimeout      = 2 * time.Minute
	idleTimeout       = 2 * time.Minute
	shutdownTimeout   = 30 * time.Second
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long: `Starts the HTTP API exposing chat, session and document endpoints.

Endpoints:
  POST /api/v1/chat             synchronous chat
  POST /api/v1/chat/stream      streaming chat (SSE)
  *    /api/v1/sessions         session management
  *    /api/v1/documents        document ingestion and removal
  GET  /api/v1/search           raw similarity search
  GET  /health, /ready          probes`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runServe(cmd.Context())
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "listen address")
	rootCmd.AddCommand(serveCmd)
}

func runServe(parent context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger()

	ctx, cancel := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			logger.Warn("shutdown error", "error", closeErr)
		}
	}()

	apiServer, err := api.NewServer(api.ServerConfig{
		Logger:      logger,
		ChatFlow:    a.Flow,
		Sessions:    a.Sessions,
		Knowledge:   a.Knowledge,
		Ingestor:    a.Ingestor,
		Registry:    a.Registry,
		DB:          a.DB,
		CORSOrigins: cfg.CORSOrigins,
		TrustProxy:  cfg.TrustProxy,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}

	srv := &http.Server{
		Addr:              serveAddr,
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}

	logger.Info("HTTP server ready",
		"addr", serveAddr,
		"api", "/api/v1/*",
		"health", "/health, /ready",
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down HTTP server")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down server: %w", err)
		}
		<-errCh
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("HTTP server: %w", err)
	}
}
