package config

import (
	"fmt"
	"net/url"
	"strings"
)

// Validation bounds.
const (
	MinTemperature float32 = 0.0
	MaxTemperature float32 = 2.0

	MinMaxTokens = 1
	MaxMaxTokens = 128_000

	MinMaxTurns = 1
	MaxMaxTurns = 20

	MinTopK = 1
	MaxTopK = 10

	MinChunkSize = 20
	MaxChunkSize = 2000
)

// Validate checks the configuration for consistency.
// Returns a wrapped sentinel error describing the first violation found.
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}

	switch c.Provider {
	case ProviderOllama, ProviderOpenAI:
	default:
		return fmt.Errorf("%w: %q (supported: ollama, openai)", ErrInvalidProvider, c.Provider)
	}

	if strings.TrimSpace(c.ModelName) == "" {
		return fmt.Errorf("%w: model name is empty", ErrInvalidModelName)
	}
	if strings.TrimSpace(c.EmbedderModel) == "" {
		return fmt.Errorf("%w: embedder model is empty", ErrInvalidEmbedderModel)
	}

	if c.Provider == ProviderOllama {
		if err := validateOllamaHost(c.OllamaHost); err != nil {
			return err
		}
	}

	if c.Temperature < MinTemperature || c.Temperature > MaxTemperature {
		return fmt.Errorf("%w: %.2f (range %.1f-%.1f)", ErrInvalidTemperature, c.Temperature, MinTemperature, MaxTemperature)
	}
	if c.MaxTokens < MinMaxTokens || c.MaxTokens > MaxMaxTokens {
		return fmt.Errorf("%w: %d (range %d-%d)", ErrInvalidMaxTokens, c.MaxTokens, MinMaxTokens, MaxMaxTokens)
	}
	if c.MaxTurns < MinMaxTurns || c.MaxTurns > MaxMaxTurns {
		return fmt.Errorf("%w: %d (range %d-%d)", ErrInvalidMaxTurns, c.MaxTurns, MinMaxTurns, MaxMaxTurns)
	}
	if c.TopK < MinTopK || c.TopK > MaxTopK {
		return fmt.Errorf("%w: %d (range %d-%d)", ErrInvalidTopK, c.TopK, MinTopK, MaxTopK)
	}

	if c.ChunkSize < MinChunkSize || c.ChunkSize > MaxChunkSize {
		return fmt.Errorf("%w: chunk_size %d (range %d-%d)", ErrInvalidChunking, c.ChunkSize, MinChunkSize, MaxChunkSize)
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("%w: chunk_overlap %d must be >= 0 and < chunk_size %d", ErrInvalidChunking, c.ChunkOverlap, c.ChunkSize)
	}

	if strings.TrimSpace(c.DataDir) == "" {
		return fmt.Errorf("%w: data_dir is empty", ErrInvalidDataDir)
	}

	return nil
}

// validateOllamaHost checks that the Ollama server address is a valid
// http(s) URL with a host component.
func validateOllamaHost(host string) error {
	if strings.TrimSpace(host) == "" {
		return fmt.Errorf("%w: host is empty", ErrInvalidOllamaHost)
	}
	u, err := url.Parse(host)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidOllamaHost, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: scheme must be http or https, got %q", ErrInvalidOllamaHost, u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: missing host in %q", ErrInvalidOllamaHost, host)
	}
	return nil
}
