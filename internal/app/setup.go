package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/core/api"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/compat_oai/openai"
	"github.com/firebase/genkit/go/plugins/ollama"

	"github.com/DuongD0/multimodal-rag/internal/chat"
	"github.com/DuongD0/multimodal-rag/internal/config"
	"github.com/DuongD0/multimodal-rag/internal/database"
	"github.com/DuongD0/multimodal-rag/internal/document"
	"github.com/DuongD0/multimodal-rag/internal/knowledge"
	"github.com/DuongD0/multimodal-rag/internal/log"
	"github.com/DuongD0/multimodal-rag/internal/session"
	"github.com/DuongD0/multimodal-rag/internal/tools"
	"github.com/DuongD0/multimodal-rag/internal/vecstore"
)

const dbFileName = "mmrag.db"

// Setup initializes the application. On failure everything already
// initialized is released; on success the caller owns Close().
func Setup(ctx context.Context, cfg *config.Config, logger log.Logger) (_ *App, retErr error) {
	if cfg == nil {
		return nil, config.ErrConfigNil
	}
	if logger == nil {
		logger = log.NewNop()
	}

	a := &App{Config: cfg, Logger: logger}
	defer func() {
		if retErr != nil {
			if err := a.Close(); err != nil {
				logger.Warn("cleanup during setup failure", "error", err)
			}
		}
	}()

	if err := cfg.EnsureDataDir(); err != nil {
		return nil, err
	}

	g, embedder, err := provideGenkit(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.Genkit = g
	a.Embedder = embedder

	db, err := database.Open(cfg.DataPath(dbFileName))
	if err != nil {
		return nil, err
	}
	a.DB = db
	if err := database.Migrate(db); err != nil {
		return nil, err
	}

	vectors, err := vecstore.New(cfg.DataDir, logger)
	if err != nil {
		return nil, err
	}
	a.Vectors = vectors

	a.Knowledge = knowledge.New(embedder, vectors, cfg.TopK, logger)
	a.Registry = knowledge.NewRegistry(db)
	a.Ingestor = knowledge.NewIngestor(a.Knowledge, a.Registry,
		document.NewChunker(cfg.ChunkSize, cfg.ChunkOverlap), logger)
	a.Sessions = session.New(db, logger)

	kit, err := tools.NewKit(a.Knowledge, a.Ingestor, cfg.TopK, logger)
	if err != nil {
		return nil, err
	}
	registered, err := tools.Register(g, kit)
	if err != nil {
		return nil, err
	}

	agent, err := chat.New(chat.Config{
		Genkit:      g,
		Sessions:    a.Sessions,
		Logger:      logger,
		Tools:       registered,
		ModelName:   qualifiedModelName(cfg),
		MaxTurns:    cfg.MaxTurns,
		Temperature: float64(cfg.Temperature),
		MaxTokens:   cfg.MaxTokens,
	})
	if err != nil {
		return nil, err
	}
	a.Agent = agent
	a.Flow = chat.NewFlow(g, agent)

	logger.Info("application initialized",
		"provider", cfg.Provider,
		"model", cfg.ModelName,
		"embedder", cfg.EmbedderModel,
		"data_dir", cfg.DataDir,
		"indexed_chunks", a.Knowledge.Len(),
	)

	return a, nil
}

// provideGenkit initializes Genkit with the configured provider and
// returns the embedder registered by that provider.
func provideGenkit(ctx context.Context, cfg *config.Config, logger log.Logger) (*genkit.Genkit, ai.Embedder, error) {
	switch cfg.Provider {
	case config.ProviderOllama, "":
		ollamaPlugin := &ollama.Ollama{ServerAddress: cfg.OllamaHost}
		g := genkit.Init(ctx, genkit.WithPlugins(ollamaPlugin))
		if g == nil {
			return nil, nil, errors.New("initializing genkit with ollama provider")
		}
		// Ollama requires explicit model registration, no auto-discovery.
		ollamaPlugin.DefineModel(g, ollama.ModelDefinition{
			Name: cfg.ModelName,
			Type: "chat",
		}, nil)
		ollamaPlugin.DefineEmbedder(g, cfg.OllamaHost, cfg.EmbedderModel, nil)

		embedder := ollama.Embedder(g, cfg.OllamaHost)
		if embedder == nil {
			return nil, nil, fmt.Errorf("embedder %q not found for ollama host %s", cfg.EmbedderModel, cfg.OllamaHost)
		}
		logger.Info("initialized genkit with ollama provider",
			"model", cfg.ModelName, "host", cfg.OllamaHost)
		return g, embedder, nil

	case config.ProviderOpenAI:
		g := genkit.Init(ctx, genkit.WithPlugins(&openai.OpenAI{}))
		if g == nil {
			return nil, nil, errors.New("initializing genkit with openai provider")
		}
		embedder := genkit.LookupEmbedder(g, api.NewName("openai", cfg.EmbedderModel))
		if embedder == nil {
			return nil, nil, fmt.Errorf("embedder %q not found for openai provider", cfg.EmbedderModel)
		}
		logger.Info("initialized genkit with openai provider", "model", cfg.ModelName)
		return g, embedder, nil

	default:
		return nil, nil, fmt.Errorf("%w: %s", config.ErrInvalidProvider, cfg.Provider)
	}
}

// qualifiedModelName prefixes the model with its provider namespace as
// registered in genkit.
func qualifiedModelName(cfg *config.Config) string {
	provider := cfg.Provider
	if provider == "" {
		provider = config.ProviderOllama
	}
	return provider + "/" + cfg.ModelName
}
