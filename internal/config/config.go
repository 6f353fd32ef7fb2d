// Package config provides application configuration management with
// multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (MMRAG_* runtime override)
//  2. Config file (~/.mmrag/config.yaml)
//  3. Default values (sensible defaults for quick start)
//
// Main configuration categories:
//   - AI: provider selection (ollama/openai), chat model, embedder model
//   - Storage: data directory holding the vector index, docstore and SQLite DB
//   - Retrieval: default result count, chunking parameters
//   - Server: CORS origins, proxy trust
//
// Validation is fail-fast with sentinel errors so callers can use errors.Is().
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Sentinel errors for configuration validation.
var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrInvalidProvider indicates the AI provider is not supported.
	ErrInvalidProvider = errors.New("invalid provider")

	// ErrInvalidModelName indicates the model name is empty or malformed.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidEmbedderModel indicates the embedder model is empty or malformed.
	ErrInvalidEmbedderModel = errors.New("invalid embedder model")

	// ErrInvalidOllamaHost indicates the Ollama host is not a valid URL.
	ErrInvalidOllamaHost = errors.New("invalid Ollama host")

	// ErrInvalidTemperature indicates the temperature value is out of range.
	ErrInvalidTemperature = errors.New("invalid temperature")

	// ErrInvalidMaxTokens indicates the max tokens value is out of range.
	ErrInvalidMaxTokens = errors.New("invalid max tokens")

	// ErrInvalidMaxTurns indicates the agentic loop turn limit is out of range.
	ErrInvalidMaxTurns = errors.New("invalid max turns")

	// ErrInvalidTopK indicates the default search result count is out of range.
	ErrInvalidTopK = errors.New("invalid top k")

	// ErrInvalidChunking indicates chunk size/overlap are inconsistent.
	ErrInvalidChunking = errors.New("invalid chunking parameters")

	// ErrInvalidDataDir indicates the data directory is empty.
	ErrInvalidDataDir = errors.New("invalid data directory")
)

// AI provider identifiers used in Config.Provider.
const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
)

// Default model selections for the Ollama provider.
const (
	// DefaultChatModel is the default locally-served chat model.
	DefaultChatModel = "llama3.2"

	// DefaultEmbedderModel is the default embedding model.
	// nomic-embed-text outputs 768-dimensional vectors.
	DefaultEmbedderModel = "nomic-embed-text"
)

// Config stores application configuration.
type Config struct {
	// AI provider and model configuration
	Provider    string  `mapstructure:"provider" json:"provider"`       // "ollama" (default) or "openai"
	ModelName   string  `mapstructure:"model_name" json:"model_name"`   // e.g. "llama3.2", "gpt-4o-mini"
	Temperature float32 `mapstructure:"temperature" json:"temperature"` // 0.0-2.0
	MaxTokens   int     `mapstructure:"max_tokens" json:"max_tokens"`
	MaxTurns    int     `mapstructure:"max_turns" json:"max_turns"` // agentic tool-loop limit

	// Ollama configuration (only used when provider is "ollama")
	OllamaHost string `mapstructure:"ollama_host" json:"ollama_host"`

	// Retrieval configuration
	EmbedderModel string `mapstructure:"embedder_model" json:"embedder_model"`
	TopK          int    `mapstructure:"top_k" json:"top_k"`                 // default search result count
	ChunkSize     int    `mapstructure:"chunk_size" json:"chunk_size"`       // words per chunk
	ChunkOverlap  int    `mapstructure:"chunk_overlap" json:"chunk_overlap"` // words shared between adjacent chunks

	// Storage configuration: directory holding index.bin, docstore.json and mmrag.db
	DataDir string `mapstructure:"data_dir" json:"data_dir"`

	// Server configuration (serve mode only)
	CORSOrigins []string `mapstructure:"cors_origins" json:"cors_origins"`
	TrustProxy  bool     `mapstructure:"trust_proxy" json:"trust_proxy"` // trust X-Real-IP/X-Forwarded-For (behind reverse proxy)
}

// Load loads configuration.
// Priority: environment variables > configuration file > default values.
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".mmrag")
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configDir)
	v.AddConfigPath(".") // also support current directory

	setDefaults(v, configDir)
	bindEnvVariables(v)

	if err := v.ReadInConfig(); err != nil {
		// Configuration file not found is not an error, use default values
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults(v *viper.Viper, configDir string) {
	v.SetDefault("provider", ProviderOllama)
	v.SetDefault("model_name", DefaultChatModel)
	v.SetDefault("temperature", 0.2)
	v.SetDefault("max_tokens", 2048)
	v.SetDefault("max_turns", 5)
	v.SetDefault("ollama_host", "http://localhost:11434")

	v.SetDefault("embedder_model", DefaultEmbedderModel)
	v.SetDefault("top_k", 4)
	v.SetDefault("chunk_size", 200)
	v.SetDefault("chunk_overlap", 40)

	v.SetDefault("data_dir", filepath.Join(configDir, "data"))

	v.SetDefault("cors_origins", []string{})
	v.SetDefault("trust_proxy", false)
}

// bindEnvVariables binds MMRAG_* environment variables to config keys.
// Example: MMRAG_OLLAMA_HOST overrides ollama_host.
func bindEnvVariables(v *viper.Viper) {
	v.SetEnvPrefix("MMRAG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// DataPath joins path elements onto the configured data directory.
func (c *Config) DataPath(parts ...string) string {
	return filepath.Join(append([]string{c.DataDir}, parts...)...)
}

// EnsureDataDir creates the data directory if it does not exist.
func (c *Config) EnsureDataDir() error {
	if err := os.MkdirAll(c.DataDir, 0o750); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}
	return nil
}
