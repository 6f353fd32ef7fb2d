package vecstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// On-disk artifact names inside the data directory.
const (
	IndexFileName    = "index.bin"
	DocstoreFileName = "docstore.json"
)

// Result is a search hit resolved against the docstore.
type Result struct {
	Chunk Chunk
	Score float32 // cosine similarity in [-1, 1]
}

// Store combines the vector index with the JSON docstore and handles
// persistence. Safe for concurrent use.
type Store struct {
	mu     sync.RWMutex
	index  *Index
	docs   *Docstore
	dir    string // data directory; empty disables persistence (tests)
	logger *slog.Logger
}

// New creates a Store persisting into dir. If dir contains a previously
// saved index and docstore they are loaded; otherwise the store starts
// empty. An empty dir disables persistence.
func New(dir string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{
		index:  NewIndex(0),
		docs:   NewDocstore(),
		dir:    dir,
		logger: logger,
	}
	if dir == "" {
		return s, nil
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

// Add indexes chunks with their embeddings and persists the store.
// chunks[i] corresponds to vecs[i]. Existing chunk IDs are overwritten,
// keeping index and docstore consistent.
func (s *Store) Add(chunks []Chunk, vecs [][]float32) error {
	if len(chunks) != len(vecs) {
		return fmt.Errorf("chunks and vectors length mismatch: %d != %d", len(chunks), len(vecs))
	}
	if len(chunks) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, len(chunks))
	for i, c := range chunks {
		ids[i] = c.ID
	}
	if err := s.index.Add(ids, vecs); err != nil {
		return fmt.Errorf("indexing vectors: %w", err)
	}
	s.docs.Put(chunks...)

	if err := s.saveLocked(); err != nil {
		return err
	}
	s.logger.Debug("added chunks", "count", len(chunks), "total", s.index.Len())
	return nil
}

// Search returns the top-k chunks most similar to the query embedding.
// An empty store returns nil.
func (s *Store) Search(query []float32, k int) ([]Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matches, err := s.index.Search(query, k)
	if err != nil {
		return nil, err
	}
	results := make([]Result, 0, len(matches))
	for _, m := range matches {
		c, ok := s.docs.Get(m.ID)
		if !ok {
			// Index/docstore divergence should be impossible; skip and warn.
			s.logger.Warn("indexed id missing from docstore", "id", m.ID)
			continue
		}
		results = append(results, Result{Chunk: c, Score: m.Score})
	}
	return results, nil
}

// RemoveSource deletes all chunks that originate from source and persists.
// Returns the number of chunks removed.
func (s *Store) RemoveSource(source string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := s.docs.IDsBySource(source)
	if len(ids) == 0 {
		return 0, nil
	}
	removed := s.index.Remove(ids)
	s.docs.Delete(ids...)

	if err := s.saveLocked(); err != nil {
		return removed, err
	}
	s.logger.Debug("removed source", "source", source, "chunks", removed)
	return removed, nil
}

// Len returns the number of stored chunks.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.Len()
}

// Sources returns the distinct source names in the store.
func (s *Store) Sources() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.docs.Sources()
}

// Reset drops all vectors and chunks and removes the persisted artifacts.
// Equivalent to deleting the data directory and restarting.
func (s *Store) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.index = NewIndex(0)
	s.docs = NewDocstore()

	if s.dir == "" {
		return nil
	}
	for _, name := range []string{IndexFileName, DocstoreFileName} {
		if err := os.Remove(filepath.Join(s.dir, name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("removing %s: %w", name, err)
		}
	}
	s.logger.Info("knowledge base reset")
	return nil
}

// load restores the persisted index and docstore if both files exist.
func (s *Store) load() error {
	indexPath := filepath.Join(s.dir, IndexFileName)
	docsPath := filepath.Join(s.dir, DocstoreFileName)

	indexData, err := os.ReadFile(indexPath) // #nosec G304 -- path from validated config
	if errors.Is(err, fs.ErrNotExist) {
		return nil // fresh store
	}
	if err != nil {
		return fmt.Errorf("reading index: %w", err)
	}

	docsData, err := os.ReadFile(docsPath) // #nosec G304 -- path from validated config
	if err != nil {
		return fmt.Errorf("reading docstore: %w", err)
	}

	if err := s.index.UnmarshalBinary(indexData); err != nil {
		return fmt.Errorf("loading index: %w", err)
	}
	var chunks map[string]Chunk
	if err := json.Unmarshal(docsData, &chunks); err != nil {
		return fmt.Errorf("loading docstore: %w", err)
	}
	s.docs = &Docstore{chunks: chunks}
	if s.docs.chunks == nil {
		s.docs.chunks = make(map[string]Chunk)
	}

	s.logger.Info("loaded knowledge base", "chunks", s.index.Len(), "dim", s.index.Dim())
	return nil
}

// saveLocked persists both artifacts atomically. Caller must hold mu.
func (s *Store) saveLocked() error {
	if s.dir == "" {
		return nil
	}
	if err := os.MkdirAll(s.dir, 0o750); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	indexData, err := s.index.MarshalBinary()
	if err != nil {
		return fmt.Errorf("serializing index: %w", err)
	}
	docsData, err := json.Marshal(s.docs.chunks)
	if err != nil {
		return fmt.Errorf("serializing docstore: %w", err)
	}

	if err := writeFileAtomic(filepath.Join(s.dir, IndexFileName), indexData); err != nil {
		return fmt.Errorf("saving index: %w", err)
	}
	if err := writeFileAtomic(filepath.Join(s.dir, DocstoreFileName), docsData); err != nil {
		return fmt.Errorf("saving docstore: %w", err)
	}
	return nil
}

// writeFileAtomic writes data to path via a temp file and rename, so a
// crash mid-write never leaves a truncated artifact.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }() // no-op after successful rename

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}
