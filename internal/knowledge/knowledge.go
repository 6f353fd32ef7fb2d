// Package knowledge is the retrieval layer: it pairs an embedder with the
// vector store and exposes semantic search plus document ingestion on top.
package knowledge

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/firebase/genkit/go/ai"

	"github.com/DuongD0/multimodal-rag/internal/document"
	"github.com/DuongD0/multimodal-rag/internal/log"
	"github.com/DuongD0/multimodal-rag/internal/vecstore"
)

// embedBatchSize bounds how many chunks go into a single embed request.
// Local embedding servers degrade badly on very large batches.
const embedBatchSize = 32

// searchTimeout caps embedding generation plus vector search for one query.
const searchTimeout = 30 * time.Second

// ErrEmptyQuery is returned by Search for a blank query string.
var ErrEmptyQuery = errors.New("query must not be empty")

// Result is a retrieved chunk with its similarity score in [-1, 1].
type Result = vecstore.Result

// Store provides semantic search over ingested document chunks.
// It is safe for concurrent use.
type Store struct {
	embedder ai.Embedder
	vectors  *vecstore.Store
	topK     int
	logger   log.Logger
}

// New creates a Store. defaultTopK is used by Search when no WithTopK
// option is given.
func New(embedder ai.Embedder, vectors *vecstore.Store, defaultTopK int, logger log.Logger) *Store {
	if logger == nil {
		logger = log.NewNop()
	}
	if defaultTopK <= 0 {
		defaultTopK = 4
	}
	return &Store{
		embedder: embedder,
		vectors:  vectors,
		topK:     defaultTopK,
		logger:   logger,
	}
}

// Add embeds the chunks and indexes them in the vector store.
func (s *Store) Add(ctx context.Context, chunks []document.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	records, vecs, err := s.embedChunks(ctx, chunks)
	if err != nil {
		return err
	}
	if err := s.vectors.Add(records, vecs); err != nil {
		return fmt.Errorf("indexing chunks: %w", err)
	}

	s.logger.Debug("indexed chunks", "count", len(chunks), "total", s.vectors.Len())
	return nil
}

// Replace swaps the indexed chunks of source for the given chunks. All
// embeddings are computed before anything is removed, so an embedding
// failure leaves the previously indexed chunks intact. Returns the
// number of chunks removed.
func (s *Store) Replace(ctx context.Context, source string, chunks []document.Chunk) (int, error) {
	records, vecs, err := s.embedChunks(ctx, chunks)
	if err != nil {
		return 0, err
	}

	removed, err := s.vectors.RemoveSource(source)
	if err != nil {
		return 0, fmt.Errorf("removing stale chunks for %q: %w", source, err)
	}
	if len(records) > 0 {
		if err := s.vectors.Add(records, vecs); err != nil {
			return removed, fmt.Errorf("indexing chunks: %w", err)
		}
	}

	s.logger.Debug("replaced source chunks",
		"source", source, "removed", removed, "count", len(chunks), "total", s.vectors.Len())
	return removed, nil
}

// embedChunks embeds all chunks in batches and returns the docstore
// records with their vectors, in input order.
func (s *Store) embedChunks(ctx context.Context, chunks []document.Chunk) ([]vecstore.Chunk, [][]float32, error) {
	records := make([]vecstore.Chunk, 0, len(chunks))
	vecs := make([][]float32, 0, len(chunks))

	for start := 0; start < len(chunks); start += embedBatchSize {
		end := min(start+embedBatchSize, len(chunks))
		batch := chunks[start:end]

		texts := make([]string, len(batch))
		for i, ch := range batch {
			texts[i] = ch.Text
		}
		batchVecs, err := s.embedTexts(ctx, texts)
		if err != nil {
			return nil, nil, err
		}
		vecs = append(vecs, batchVecs...)

		for _, ch := range batch {
			records = append(records, vecstore.Chunk{
				ID:       ch.ID,
				Text:     ch.Text,
				Source:   ch.Source,
				Page:     ch.Page,
				Modality: ch.Modality,
			})
		}
	}
	return records, vecs, nil
}

// Search embeds the query and returns the most similar chunks, best first.
func (s *Store) Search(ctx context.Context, query string, opts ...SearchOption) ([]Result, error) {
	if query == "" {
		return nil, ErrEmptyQuery
	}
	cfg := buildSearchConfig(s.topK, opts)

	queryCtx, cancel := context.WithTimeout(ctx, searchTimeout)
	defer cancel()

	vecs, err := s.embedTexts(queryCtx, []string{query})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("embedding generation timeout: %w", err)
		}
		return nil, err
	}

	// With a filter the similarity cutoff happens after filtering, so the
	// raw search must not truncate early.
	k := cfg.topK
	if cfg.filter != nil {
		k = 0
	}
	matches, err := s.vectors.Search(vecs[0], k)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}

	results := make([]Result, 0, cfg.topK)
	for _, m := range matches {
		if m.Score < cfg.minScore {
			break // matches are sorted descending
		}
		if cfg.filter != nil && !cfg.filter(m.Chunk) {
			continue
		}
		results = append(results, m)
		if len(results) == cfg.topK {
			break
		}
	}
	return results, nil
}

// RemoveSource drops every indexed chunk of the given source document.
// It returns the number of chunks removed.
func (s *Store) RemoveSource(source string) (int, error) {
	return s.vectors.RemoveSource(source)
}

// Sources lists the distinct source documents currently indexed.
func (s *Store) Sources() []string {
	return s.vectors.Sources()
}

// Len returns the number of indexed chunks.
func (s *Store) Len() int {
	return s.vectors.Len()
}

// Reset drops the whole index and its on-disk artifacts.
func (s *Store) Reset() error {
	return s.vectors.Reset()
}

func (s *Store) embedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	docs := make([]*ai.Document, len(texts))
	for i, t := range texts {
		docs[i] = ai.DocumentFromText(t, nil)
	}

	resp, err := s.embedder.Embed(ctx, &ai.EmbedRequest{Input: docs})
	if err != nil {
		return nil, fmt.Errorf("generating embeddings: %w", err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("embedder returned %d embeddings for %d inputs", len(resp.Embeddings), len(texts))
	}

	vecs := make([][]float32, len(resp.Embeddings))
	for i, e := range resp.Embeddings {
		if len(e.Embedding) == 0 {
			return nil, fmt.Errorf("empty embedding returned for input %d", i)
		}
		vecs[i] = e.Embedding
	}
	return vecs, nil
}
