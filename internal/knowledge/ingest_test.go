package knowledge

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DuongD0/multimodal-rag/internal/document"
	"github.com/DuongD0/multimodal-rag/internal/log"
	"github.com/DuongD0/multimodal-rag/internal/testutil"
	"github.com/DuongD0/multimodal-rag/internal/vecstore"
)

func newTestIngestor(t *testing.T) (*Ingestor, *Store, *Registry) {
	t.Helper()
	vectors, err := vecstore.New("", log.NewNop())
	require.NoError(t, err)
	store := New(testutil.NewEmbedder(8), vectors, 4, log.NewNop())
	registry := NewRegistry(testutil.OpenDB(t))
	chunker := document.NewChunker(20, 4)
	return NewIngestor(store, registry, chunker, log.NewNop()), store, registry
}

func writeTestFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestIngestor_Ingest(t *testing.T) {
	ing, store, registry := newTestIngestor(t)
	path := writeTestFile(t, "notes.txt", strings.Repeat("knowledge retrieval systems ", 20))

	result, err := ing.Ingest(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "notes.txt", result.Source)
	assert.Equal(t, 1, result.Pages)
	assert.Greater(t, result.Chunks, 1)
	assert.Equal(t, result.Chunks, store.Len())

	rec, err := registry.Get(context.Background(), "notes.txt")
	require.NoError(t, err)
	assert.Equal(t, result.Chunks, rec.Chunks)
	assert.Len(t, rec.SHA256, 64)
}

func TestIngestor_ReingestReplaces(t *testing.T) {
	ing, store, _ := newTestIngestor(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.txt")

	require.NoError(t, os.WriteFile(path, []byte(strings.Repeat("first version ", 40)), 0o600))
	first, err := ing.Ingest(context.Background(), path)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("much shorter now"), 0o600))
	second, err := ing.Ingest(context.Background(), path)
	require.NoError(t, err)

	assert.Greater(t, first.Chunks, second.Chunks)
	// Stale chunks from the first version must be gone.
	assert.Equal(t, second.Chunks, store.Len())
	assert.Equal(t, []string{"notes.txt"}, store.Sources())
}

func TestIngestor_FailedReingestKeepsPreviousChunks(t *testing.T) {
	vectors, err := vecstore.New("", log.NewNop())
	require.NoError(t, err)
	embedder := testutil.NewEmbedder(8)
	store := New(embedder, vectors, 4, log.NewNop())
	ing := NewIngestor(store, nil, document.NewChunker(20, 4), log.NewNop())

	dir := t.TempDir()
	path := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte(strings.Repeat("first version ", 40)), 0o600))
	first, err := ing.Ingest(context.Background(), path)
	require.NoError(t, err)

	embedder.Err = errors.New("ollama: connection refused")
	require.NoError(t, os.WriteFile(path, []byte("updated content"), 0o600))
	_, err = ing.Ingest(context.Background(), path)
	require.Error(t, err)

	// The old chunks must survive a failed re-ingest.
	assert.Equal(t, first.Chunks, store.Len())
	assert.Equal(t, []string{"notes.txt"}, store.Sources())
}

func TestIngestor_MissingFile(t *testing.T) {
	ing, _, _ := newTestIngestor(t)
	_, err := ing.Ingest(context.Background(), "/nonexistent/file.txt")
	assert.ErrorContains(t, err, "file not found")
}

func TestIngestor_Directory(t *testing.T) {
	ing, _, _ := newTestIngestor(t)
	_, err := ing.Ingest(context.Background(), t.TempDir())
	assert.ErrorContains(t, err, "directory")
}

func TestIngestor_UnsupportedType(t *testing.T) {
	ing, _, _ := newTestIngestor(t)
	path := writeTestFile(t, "sheet.xlsx", "binary junk")
	_, err := ing.Ingest(context.Background(), path)
	assert.ErrorIs(t, err, document.ErrUnsupportedType)
}

func TestIngestor_Remove(t *testing.T) {
	ing, store, registry := newTestIngestor(t)
	path := writeTestFile(t, "notes.txt", "some indexed content")

	_, err := ing.Ingest(context.Background(), path)
	require.NoError(t, err)

	removed, err := ing.Remove(context.Background(), "notes.txt")
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.Equal(t, 0, store.Len())

	_, err = registry.Get(context.Background(), "notes.txt")
	assert.ErrorIs(t, err, ErrDocumentNotFound)
}
