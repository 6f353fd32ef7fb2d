// Package cmd implements the mmrag command line interface.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/DuongD0/multimodal-rag/internal/config"
	"github.com/DuongD0/multimodal-rag/internal/log"
)

var debugFlag bool

var rootCmd = &cobra.Command{
	Use:   "mmrag",
	Short: "mmrag - chat with your documents using a local LLM",
	Long: `mmrag ingests PDF and text documents into a local vector index and
answers questions about them with retrieval-augmented generation.

Models run locally through Ollama; nothing leaves your machine.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. Called from main.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "enable debug logging")
}

// newLogger builds the CLI logger. Logs go to stderr so stdout stays
// clean for command output.
func newLogger() log.Logger {
	cfg := log.Config{Level: slog.LevelInfo}
	if debugFlag || os.Getenv("DEBUG") != "" {
		cfg.Level = slog.LevelDebug
	}
	return log.New(cfg)
}

// loadConfig loads and validates the application configuration.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}
