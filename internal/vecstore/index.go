package vecstore

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sort"
)

// Sentinel errors for index operations.
var (
	// ErrDimensionMismatch indicates a vector's dimension differs from the index.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	// ErrZeroVector indicates a vector with zero magnitude cannot be normalized.
	ErrZeroVector = errors.New("zero-magnitude vector")

	// ErrCorruptIndex indicates the serialized index data is malformed.
	ErrCorruptIndex = errors.New("corrupt index data")
)

// Index is a flat inner-product index over L2-normalized vectors.
// The zero value is an empty index whose dimension is fixed by the first
// insert. Index is not safe for concurrent use; Store provides locking.
type Index struct {
	dim  int
	ids  []string
	vecs [][]float32
	pos  map[string]int // id -> position in ids/vecs
}

// NewIndex creates an empty index. dim may be 0, in which case the
// dimension is fixed by the first added vector.
func NewIndex(dim int) *Index {
	return &Index{dim: dim, pos: make(map[string]int)}
}

// Dim returns the vector dimension, or 0 if the index is empty and unfixed.
func (ix *Index) Dim() int { return ix.dim }

// Len returns the number of indexed vectors.
func (ix *Index) Len() int { return len(ix.ids) }

// IDs returns a copy of all indexed IDs.
func (ix *Index) IDs() []string {
	out := make([]string, len(ix.ids))
	copy(out, ix.ids)
	return out
}

// Add inserts vectors under the given IDs, normalizing each to unit length.
// An existing ID is overwritten in place. All vectors must share the index
// dimension; the whole batch is validated before any mutation.
func (ix *Index) Add(ids []string, vecs [][]float32) error {
	if len(ids) != len(vecs) {
		return fmt.Errorf("ids and vectors length mismatch: %d != %d", len(ids), len(vecs))
	}
	if len(ids) == 0 {
		return nil
	}

	dim := ix.dim
	if dim == 0 {
		dim = len(vecs[0])
	}
	normalized := make([][]float32, len(vecs))
	for i, v := range vecs {
		if len(v) != dim {
			return fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(v), dim)
		}
		nv, err := normalize(v)
		if err != nil {
			return fmt.Errorf("vector %q: %w", ids[i], err)
		}
		normalized[i] = nv
	}

	ix.dim = dim
	for i, id := range ids {
		if p, ok := ix.pos[id]; ok {
			ix.vecs[p] = normalized[i]
			continue
		}
		ix.pos[id] = len(ix.ids)
		ix.ids = append(ix.ids, id)
		ix.vecs = append(ix.vecs, normalized[i])
	}
	return nil
}

// Remove deletes the given IDs from the index. Unknown IDs are ignored.
// Returns the number of vectors removed.
func (ix *Index) Remove(ids []string) int {
	removed := 0
	for _, id := range ids {
		p, ok := ix.pos[id]
		if !ok {
			continue
		}
		last := len(ix.ids) - 1
		// Swap-delete keeps removal O(1) per id.
		ix.ids[p] = ix.ids[last]
		ix.vecs[p] = ix.vecs[last]
		ix.pos[ix.ids[p]] = p
		ix.ids = ix.ids[:last]
		ix.vecs = ix.vecs[:last]
		delete(ix.pos, id)
		removed++
	}
	if len(ix.ids) == 0 {
		ix.dim = 0
	}
	return removed
}

// Match is a single search hit.
type Match struct {
	ID    string
	Score float32 // inner product of unit vectors == cosine similarity
}

// Search returns the top-k matches by inner product, ordered by descending
// score. The query is normalized before scoring. Searching an empty index
// returns nil.
func (ix *Index) Search(query []float32, k int) ([]Match, error) {
	if len(ix.ids) == 0 {
		return nil, nil
	}
	if len(query) != ix.dim {
		return nil, fmt.Errorf("%w: query dim %d, index dim %d", ErrDimensionMismatch, len(query), ix.dim)
	}
	q, err := normalize(query)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}

	matches := make([]Match, len(ix.ids))
	for i, v := range ix.vecs {
		matches[i] = Match{ID: ix.ids[i], Score: dot(q, v)}
	}
	sort.Slice(matches, func(a, b int) bool { return matches[a].Score > matches[b].Score })

	if k <= 0 || k > len(matches) {
		k = len(matches)
	}
	return matches[:k], nil
}

// MarshalBinary serializes the index as:
// dim(u32), n(u32), then per vector: idLen(u32), id bytes, dim little-endian
// float32 values.
func (ix *Index) MarshalBinary() ([]byte, error) {
	size := 8
	for _, id := range ix.ids {
		size += 4 + len(id) + 4*ix.dim
	}
	out := make([]byte, 0, size)

	var scratch [4]byte
	putU32 := func(v uint32) {
		binary.LittleEndian.PutUint32(scratch[:], v)
		out = append(out, scratch[:]...)
	}

	putU32(uint32(ix.dim)) // #nosec G115 -- dim bounded by embedding models
	putU32(uint32(len(ix.ids)))
	for i, id := range ix.ids {
		putU32(uint32(len(id)))
		out = append(out, id...)
		for _, f := range ix.vecs[i] {
			putU32(math.Float32bits(f))
		}
	}
	return out, nil
}

// UnmarshalBinary restores an index serialized by MarshalBinary.
func (ix *Index) UnmarshalBinary(data []byte) error {
	if len(data) < 8 {
		return fmt.Errorf("%w: truncated header", ErrCorruptIndex)
	}
	dim := int(binary.LittleEndian.Uint32(data[0:4]))
	n := int(binary.LittleEndian.Uint32(data[4:8]))
	off := 8

	// Cap preallocation by the payload size so a corrupt count cannot
	// force a huge allocation before the record checks run. Every record
	// carries at least a 4-byte id length.
	capHint := n
	if maxRecords := (len(data) - 8) / 4; capHint > maxRecords {
		capHint = maxRecords
	}
	ids := make([]string, 0, capHint)
	vecs := make([][]float32, 0, capHint)
	pos := make(map[string]int, capHint)

	for i := 0; i < n; i++ {
		if off+4 > len(data) {
			return fmt.Errorf("%w: truncated id length at record %d", ErrCorruptIndex, i)
		}
		idLen := int(binary.LittleEndian.Uint32(data[off:]))
		off += 4
		if off+idLen+4*dim > len(data) {
			return fmt.Errorf("%w: truncated record %d", ErrCorruptIndex, i)
		}
		id := string(data[off : off+idLen])
		off += idLen

		vec := make([]float32, dim)
		for j := 0; j < dim; j++ {
			vec[j] = math.Float32frombits(binary.LittleEndian.Uint32(data[off:]))
			off += 4
		}
		if _, dup := pos[id]; dup {
			return fmt.Errorf("%w: duplicate id %q", ErrCorruptIndex, id)
		}
		pos[id] = len(ids)
		ids = append(ids, id)
		vecs = append(vecs, vec)
	}
	if off != len(data) {
		return fmt.Errorf("%w: %d trailing bytes", ErrCorruptIndex, len(data)-off)
	}

	if n == 0 {
		dim = 0
	}
	ix.dim = dim
	ix.ids = ids
	ix.vecs = vecs
	ix.pos = pos
	return nil
}

// normalize returns a unit-length copy of v.
func normalize(v []float32) ([]float32, error) {
	var sum float64
	for _, f := range v {
		sum += float64(f) * float64(f)
	}
	if sum == 0 {
		return nil, ErrZeroVector
	}
	inv := 1.0 / math.Sqrt(sum)
	out := make([]float32, len(v))
	for i, f := range v {
		out[i] = float32(float64(f) * inv)
	}
	return out, nil
}

func dot(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}
