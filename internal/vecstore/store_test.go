package vecstore

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DuongD0/multimodal-rag/internal/log"
)

func testChunks() ([]Chunk, [][]float32) {
	chunks := []Chunk{
		{ID: "r1-0", Text: "the transformer architecture", Source: "paper.pdf", Page: 1, Modality: ModalityText},
		{ID: "r1-1", Text: "attention is all you need", Source: "paper.pdf", Page: 2, Modality: ModalityText},
		{ID: "r2-0", Text: "quarterly revenue table", Source: "report.pdf", Page: 1, Modality: ModalityTable},
	}
	vecs := [][]float32{
		{1, 0, 0},
		{0.9, 0.1, 0},
		{0, 0, 1},
	}
	return chunks, vecs
}

func TestStore_AddAndSearch(t *testing.T) {
	s, err := New("", log.NewNop())
	require.NoError(t, err)

	chunks, vecs := testChunks()
	require.NoError(t, s.Add(chunks, vecs))
	assert.Equal(t, 3, s.Len())

	results, err := s.Search([]float32{1, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "r1-0", results[0].Chunk.ID)
	assert.Equal(t, "paper.pdf", results[0].Chunk.Source)
	assert.Equal(t, 1, results[0].Chunk.Page)
}

func TestStore_SearchEmpty(t *testing.T) {
	s, err := New("", log.NewNop())
	require.NoError(t, err)

	results, err := s.Search([]float32{1, 0}, 4)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestStore_PersistAndReload(t *testing.T) {
	dir := t.TempDir()

	s, err := New(dir, log.NewNop())
	require.NoError(t, err)
	chunks, vecs := testChunks()
	require.NoError(t, s.Add(chunks, vecs))

	assert.FileExists(t, filepath.Join(dir, IndexFileName))
	assert.FileExists(t, filepath.Join(dir, DocstoreFileName))

	reloaded, err := New(dir, log.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 3, reloaded.Len())

	results, err := reloaded.Search([]float32{0, 0, 1}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "r2-0", results[0].Chunk.ID)
	assert.Equal(t, ModalityTable, results[0].Chunk.Modality)
}

func TestStore_RemoveSource(t *testing.T) {
	s, err := New(t.TempDir(), log.NewNop())
	require.NoError(t, err)
	chunks, vecs := testChunks()
	require.NoError(t, s.Add(chunks, vecs))

	removed, err := s.RemoveSource("paper.pdf")
	require.NoError(t, err)
	assert.Equal(t, 2, removed)
	assert.Equal(t, 1, s.Len())
	assert.Equal(t, []string{"report.pdf"}, s.Sources())

	removed, err = s.RemoveSource("unknown.pdf")
	require.NoError(t, err)
	assert.Equal(t, 0, removed)
}

func TestStore_ReingestReplacesChunks(t *testing.T) {
	s, err := New("", log.NewNop())
	require.NoError(t, err)
	chunks, vecs := testChunks()
	require.NoError(t, s.Add(chunks, vecs))

	// Simulate re-ingest of paper.pdf with fewer chunks.
	_, err = s.RemoveSource("paper.pdf")
	require.NoError(t, err)
	require.NoError(t, s.Add(
		[]Chunk{{ID: "r1-0", Text: "revised", Source: "paper.pdf", Page: 1, Modality: ModalityText}},
		[][]float32{{0, 1, 0}},
	))

	assert.Equal(t, 2, s.Len())
	results, err := s.Search([]float32{0, 1, 0}, 1)
	require.NoError(t, err)
	assert.Equal(t, "revised", results[0].Chunk.Text)
}

func TestStore_Reset(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir, log.NewNop())
	require.NoError(t, err)
	chunks, vecs := testChunks()
	require.NoError(t, s.Add(chunks, vecs))

	require.NoError(t, s.Reset())
	assert.Equal(t, 0, s.Len())
	assert.NoFileExists(t, filepath.Join(dir, IndexFileName))
	assert.NoFileExists(t, filepath.Join(dir, DocstoreFileName))

	// Store must remain usable after reset.
	require.NoError(t, s.Add(
		[]Chunk{{ID: "n", Text: "new", Source: "n.pdf", Page: 1, Modality: ModalityText}},
		[][]float32{{1, 1}},
	))
	assert.Equal(t, 1, s.Len())
}

func TestStore_CorruptIndexFails(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, IndexFileName), []byte("junk"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, DocstoreFileName), []byte("{}"), 0o600))

	_, err := New(dir, log.NewNop())
	assert.Error(t, err)
}

func TestStore_ConcurrentAccess(t *testing.T) {
	s, err := New("", log.NewNop())
	require.NoError(t, err)
	chunks, vecs := testChunks()
	require.NoError(t, s.Add(chunks, vecs))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_, err := s.Search([]float32{1, 0, 0}, 2)
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()
}
