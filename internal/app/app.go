// Package app wires the application together: Genkit with the configured
// AI provider, the vector store, the SQLite database, the knowledge
// layer, tools and the chat agent.
package app

import (
	"database/sql"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"

	"github.com/DuongD0/multimodal-rag/internal/chat"
	"github.com/DuongD0/multimodal-rag/internal/config"
	"github.com/DuongD0/multimodal-rag/internal/knowledge"
	"github.com/DuongD0/multimodal-rag/internal/log"
	"github.com/DuongD0/multimodal-rag/internal/session"
	"github.com/DuongD0/multimodal-rag/internal/vecstore"
)

// App is the application container holding all initialized components.
type App struct {
	Config *config.Config
	Logger log.Logger

	Genkit   *genkit.Genkit
	Embedder ai.Embedder

	DB        *sql.DB
	Vectors   *vecstore.Store
	Knowledge *knowledge.Store
	Registry  *knowledge.Registry
	Ingestor  *knowledge.Ingestor
	Sessions  *session.Store

	Agent *chat.Agent
	Flow  *chat.Flow
}

// Close releases held resources. Safe to call on a partially
// initialized App.
func (a *App) Close() error {
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			return err
		}
		a.DB = nil
	}
	return nil
}
