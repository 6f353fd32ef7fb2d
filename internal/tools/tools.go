// Package tools defines the genkit tools the chat agent can call:
// ingesting documents into the knowledge base and searching it.
package tools

import (
	"fmt"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"

	"github.com/DuongD0/multimodal-rag/internal/knowledge"
	"github.com/DuongD0/multimodal-rag/internal/log"
)

// Tool names registered with genkit.
const (
	IngestDocumentName      = "ingest_document"
	SearchKnowledgeBaseName = "search_knowledge_base"
)

// TopK bounds for search_knowledge_base.
const (
	MinTopK = 1
	MaxTopK = 10
)

// IngestInput is the input schema for ingest_document.
type IngestInput struct {
	FilePath string `json:"file_path" jsonschema_description:"Path to the document file to ingest (.pdf, .txt or .md)"`
}

// SearchInput is the input schema for search_knowledge_base.
type SearchInput struct {
	Query string `json:"query" jsonschema_description:"The search query string"`
	TopK  int    `json:"topK,omitempty" jsonschema_description:"Maximum results to return (1-10)"`
}

// Kit holds the dependencies of the tool handlers.
type Kit struct {
	store       *knowledge.Store
	ingestor    *knowledge.Ingestor
	defaultTopK int
	logger      log.Logger
}

// NewKit creates a Kit. defaultTopK is used when the model omits topK.
func NewKit(store *knowledge.Store, ingestor *knowledge.Ingestor, defaultTopK int, logger log.Logger) (*Kit, error) {
	if store == nil {
		return nil, fmt.Errorf("knowledge store is required")
	}
	if ingestor == nil {
		return nil, fmt.Errorf("ingestor is required")
	}
	if logger == nil {
		logger = log.NewNop()
	}
	if defaultTopK < MinTopK || defaultTopK > MaxTopK {
		defaultTopK = 4
	}
	return &Kit{
		store:       store,
		ingestor:    ingestor,
		defaultTopK: defaultTopK,
		logger:      logger,
	}, nil
}

// Register defines both tools on g and returns them for ai.WithTools.
func Register(g *genkit.Genkit, kit *Kit) ([]ai.Tool, error) {
	if g == nil {
		return nil, fmt.Errorf("genkit instance is required")
	}
	if kit == nil {
		return nil, fmt.Errorf("kit is required")
	}

	return []ai.Tool{
		genkit.DefineTool(g, IngestDocumentName,
			"Ingest a document file into the knowledge base so it can be searched. "+
				"Supported formats: PDF, plain text, Markdown. "+
				"The file is split into chunks, embedded and indexed. "+
				"Re-ingesting a file replaces its previous content. "+
				"Returns: a summary of pages processed and chunks indexed.",
			kit.IngestDocument),
		genkit.DefineTool(g, SearchKnowledgeBaseName,
			"Search the knowledge base for document chunks relevant to a query "+
				"using semantic similarity. "+
				"Returns: numbered excerpts with their source file and page number. "+
				"Use this before answering any question about document content. "+
				"Default topK: 4. Maximum topK: 10.",
			kit.SearchKnowledgeBase),
	}, nil
}
