package knowledge

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/DuongD0/multimodal-rag/internal/document"
	"github.com/DuongD0/multimodal-rag/internal/log"
)

// IngestResult summarizes one ingestion run.
type IngestResult struct {
	Source string `json:"source"`
	Pages  int    `json:"pages"`
	Chunks int    `json:"chunks"`
}

// Ingestor runs the extract, chunk, embed, index pipeline for one file at
// a time and records the outcome in the document registry.
type Ingestor struct {
	store    *Store
	registry *Registry
	chunker  *document.Chunker
	logger   log.Logger
}

// NewIngestor creates an Ingestor. registry may be nil, in which case
// ingestion skips database bookkeeping.
func NewIngestor(store *Store, registry *Registry, chunker *document.Chunker, logger log.Logger) *Ingestor {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Ingestor{
		store:    store,
		registry: registry,
		chunker:  chunker,
		logger:   logger,
	}
}

// Ingest processes the file at path. Re-ingesting a file replaces its
// previously indexed chunks, so the index never holds stale content for
// a source.
func (in *Ingestor) Ingest(ctx context.Context, path string) (*IngestResult, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving path: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("file not found: %s", path)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory, not a file", path)
	}

	pages, err := document.Extract(abs)
	if err != nil {
		return nil, err
	}

	source := filepath.Base(abs)
	chunks := in.chunker.Split(source, pages)
	if len(chunks) == 0 {
		return nil, fmt.Errorf("no chunks produced from %s", source)
	}

	// Embeds before removing, so a failed re-ingest keeps the previous
	// chunks searchable.
	removed, err := in.store.Replace(ctx, source, chunks)
	if err != nil {
		return nil, err
	}
	if removed > 0 {
		in.logger.Info("replaced previously ingested document", "source", source, "stale_chunks", removed)
	}

	if in.registry != nil {
		sum, err := fileSHA256(abs)
		if err != nil {
			return nil, err
		}
		if _, err := in.registry.Upsert(ctx, Record{
			Source: source,
			SHA256: sum,
			Pages:  len(pages),
			Chunks: len(chunks),
		}); err != nil {
			return nil, err
		}
	}

	in.logger.Info("ingested document",
		"source", source, "pages", len(pages), "chunks", len(chunks))

	return &IngestResult{Source: source, Pages: len(pages), Chunks: len(chunks)}, nil
}

// Remove deletes a source document from both the index and the registry.
// It returns the number of chunks removed from the index.
func (in *Ingestor) Remove(ctx context.Context, source string) (int, error) {
	removed, err := in.store.RemoveSource(source)
	if err != nil {
		return 0, err
	}
	if in.registry != nil {
		if err := in.registry.Delete(ctx, source); err != nil {
			return removed, err
		}
	}
	return removed, nil
}

func fileSHA256(path string) (string, error) {
	f, err := os.Open(path) // #nosec G304 -- path validated by caller
	if err != nil {
		return "", fmt.Errorf("opening file for hashing: %w", err)
	}
	defer func() { _ = f.Close() }()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hashing file: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
