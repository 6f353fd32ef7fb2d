package tools

import (
	"fmt"
	"strings"

	"github.com/firebase/genkit/go/ai"

	"github.com/DuongD0/multimodal-rag/internal/knowledge"
)

// noResultsMessage is returned when a search matches nothing. The agent's
// system prompt tells the model to admit this instead of guessing.
const noResultsMessage = "No relevant documents found in the knowledge base."

// IngestDocument runs the ingestion pipeline for one file. User-level
// failures (missing file, unsupported format) come back as tool output so
// the model can relay them instead of aborting the turn.
func (k *Kit) IngestDocument(tc *ai.ToolContext, input IngestInput) (string, error) {
	k.logger.Info("tool call", "tool", IngestDocumentName, "file_path", input.FilePath)

	if strings.TrimSpace(input.FilePath) == "" {
		return "Error: file_path must not be empty.", nil
	}

	result, err := k.ingestor.Ingest(tc, input.FilePath)
	if err != nil {
		k.logger.Warn("ingestion failed", "file_path", input.FilePath, "error", err)
		return fmt.Sprintf("Error ingesting document: %v", err), nil
	}

	return fmt.Sprintf("Successfully ingested '%s': %d pages processed, %d chunks indexed.",
		result.Source, result.Pages, result.Chunks), nil
}

// SearchKnowledgeBase retrieves the chunks most similar to the query and
// formats them as numbered excerpts with provenance.
func (k *Kit) SearchKnowledgeBase(tc *ai.ToolContext, input SearchInput) (string, error) {
	topK := input.TopK
	if topK == 0 {
		topK = k.defaultTopK
	}
	if topK < MinTopK {
		topK = MinTopK
	}
	if topK > MaxTopK {
		topK = MaxTopK
	}

	k.logger.Info("tool call", "tool", SearchKnowledgeBaseName, "query", input.Query, "top_k", topK)

	if strings.TrimSpace(input.Query) == "" {
		return "Error: query must not be empty.", nil
	}

	results, err := k.store.Search(tc, input.Query, knowledge.WithTopK(topK))
	if err != nil {
		// Returned as tool output so the model can relay the failure.
		k.logger.Error("search failed", "tool", SearchKnowledgeBaseName, "error", err)
		return fmt.Sprintf("Error searching knowledge base: %v", err), nil
	}
	if len(results) == 0 {
		return noResultsMessage, nil
	}

	blocks := make([]string, len(results))
	for i, r := range results {
		blocks[i] = fmt.Sprintf("[%d] (Source: %s, Page %d)\n%s",
			i+1, r.Chunk.Source, r.Chunk.Page, r.Chunk.Text)
	}
	return strings.Join(blocks, "\n\n---\n\n"), nil
}
