package vecstore

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIndex_AddAndSearch(t *testing.T) {
	ix := NewIndex(0)
	err := ix.Add(
		[]string{"a", "b", "c"},
		[][]float32{
			{1, 0, 0},
			{0, 1, 0},
			{0.9, 0.1, 0},
		},
	)
	require.NoError(t, err)
	require.Equal(t, 3, ix.Len())
	require.Equal(t, 3, ix.Dim())

	matches, err := ix.Search([]float32{1, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, matches, 2)

	assert.Equal(t, "a", matches[0].ID)
	assert.InDelta(t, 1.0, float64(matches[0].Score), 1e-6)
	assert.Equal(t, "c", matches[1].ID)
	assert.Greater(t, matches[0].Score, matches[1].Score)
}

func TestIndex_ScoresAreCosineSimilarity(t *testing.T) {
	ix := NewIndex(0)
	// Unnormalized input: magnitude must not affect scores.
	require.NoError(t, ix.Add([]string{"long"}, [][]float32{{100, 0}}))

	matches, err := ix.Search([]float32{0.001, 0}, 1)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.InDelta(t, 1.0, float64(matches[0].Score), 1e-6)

	matches, err = ix.Search([]float32{1, 1}, 1)
	require.NoError(t, err)
	assert.InDelta(t, 1.0/math.Sqrt2, float64(matches[0].Score), 1e-5)
}

func TestIndex_SearchEmpty(t *testing.T) {
	ix := NewIndex(0)
	matches, err := ix.Search([]float32{1, 2, 3}, 5)
	require.NoError(t, err)
	assert.Nil(t, matches)
}

func TestIndex_DimensionMismatch(t *testing.T) {
	ix := NewIndex(0)
	require.NoError(t, ix.Add([]string{"a"}, [][]float32{{1, 0, 0}}))

	err := ix.Add([]string{"b"}, [][]float32{{1, 0}})
	assert.ErrorIs(t, err, ErrDimensionMismatch)

	_, err = ix.Search([]float32{1, 0}, 1)
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestIndex_MixedDimensionBatchRejectedAtomically(t *testing.T) {
	ix := NewIndex(0)
	err := ix.Add(
		[]string{"a", "b"},
		[][]float32{{1, 0, 0}, {1, 0}},
	)
	require.ErrorIs(t, err, ErrDimensionMismatch)
	// Nothing from the bad batch may land in the index.
	assert.Equal(t, 0, ix.Len())
}

func TestIndex_ZeroVectorRejected(t *testing.T) {
	ix := NewIndex(0)
	err := ix.Add([]string{"z"}, [][]float32{{0, 0, 0}})
	assert.ErrorIs(t, err, ErrZeroVector)
}

func TestIndex_AddOverwritesExistingID(t *testing.T) {
	ix := NewIndex(0)
	require.NoError(t, ix.Add([]string{"a"}, [][]float32{{1, 0}}))
	require.NoError(t, ix.Add([]string{"a"}, [][]float32{{0, 1}}))
	require.Equal(t, 1, ix.Len())

	matches, err := ix.Search([]float32{0, 1}, 1)
	require.NoError(t, err)
	assert.Equal(t, "a", matches[0].ID)
	assert.InDelta(t, 1.0, float64(matches[0].Score), 1e-6)
}

func TestIndex_Remove(t *testing.T) {
	ix := NewIndex(0)
	require.NoError(t, ix.Add(
		[]string{"a", "b", "c"},
		[][]float32{{1, 0}, {0, 1}, {1, 1}},
	))

	removed := ix.Remove([]string{"b", "missing"})
	assert.Equal(t, 1, removed)
	assert.Equal(t, 2, ix.Len())

	matches, err := ix.Search([]float32{0, 1}, 3)
	require.NoError(t, err)
	for _, m := range matches {
		assert.NotEqual(t, "b", m.ID)
	}

	// Removing everything resets the dimension so a new one can be fixed.
	ix.Remove([]string{"a", "c"})
	assert.Equal(t, 0, ix.Len())
	require.NoError(t, ix.Add([]string{"x"}, [][]float32{{1, 2, 3, 4}}))
	assert.Equal(t, 4, ix.Dim())
}

func TestIndex_KLargerThanIndex(t *testing.T) {
	ix := NewIndex(0)
	require.NoError(t, ix.Add([]string{"a", "b"}, [][]float32{{1, 0}, {0, 1}}))

	matches, err := ix.Search([]float32{1, 0}, 100)
	require.NoError(t, err)
	assert.Len(t, matches, 2)
}

func TestIndex_BinaryRoundTrip(t *testing.T) {
	ix := NewIndex(0)
	require.NoError(t, ix.Add(
		[]string{"first", "second"},
		[][]float32{{0.3, 0.4, 0.5}, {-1, 2, -3}},
	))

	data, err := ix.MarshalBinary()
	require.NoError(t, err)

	restored := NewIndex(0)
	require.NoError(t, restored.UnmarshalBinary(data))

	assert.Equal(t, ix.Len(), restored.Len())
	assert.Equal(t, ix.Dim(), restored.Dim())

	want, err := ix.Search([]float32{0.3, 0.4, 0.5}, 2)
	require.NoError(t, err)
	got, err := restored.Search([]float32{0.3, 0.4, 0.5}, 2)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestIndex_UnmarshalCorrupt(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"truncated header", []byte{1, 2, 3}},
		{"truncated record", append([]byte{4, 0, 0, 0, 1, 0, 0, 0}, 10, 0, 0, 0)},
		// A huge claimed count with no payload must fail fast, not
		// preallocate gigabytes.
		{"absurd count", []byte{4, 0, 0, 0, 0xFF, 0xFF, 0xFF, 0xFF}},
		{"trailing bytes", func() []byte {
			ix := NewIndex(0)
			_ = ix.Add([]string{"a"}, [][]float32{{1, 0}})
			data, _ := ix.MarshalBinary()
			return append(data, 0xFF)
		}()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ix := NewIndex(0)
			assert.ErrorIs(t, ix.UnmarshalBinary(tt.data), ErrCorruptIndex)
		})
	}
}

func TestIndex_EmptyRoundTrip(t *testing.T) {
	ix := NewIndex(0)
	data, err := ix.MarshalBinary()
	require.NoError(t, err)

	restored := NewIndex(0)
	require.NoError(t, restored.UnmarshalBinary(data))
	assert.Equal(t, 0, restored.Len())
}
