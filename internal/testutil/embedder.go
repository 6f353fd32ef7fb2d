// Package testutil provides deterministic fakes for the genkit model and
// embedder interfaces plus small helpers shared by package tests.
package testutil

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"math"
	"strings"
	"sync"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/core/api"
)

// Embedder is a deterministic ai.Embedder for tests. Unknown content is
// embedded via a SHA-256 derived unit vector, so identical text always
// yields identical vectors. Explicit vectors can be pinned per content
// string to control cosine similarity exactly.
//
// Safe for concurrent use.
type Embedder struct {
	mu      sync.Mutex
	vectors map[string][]float32
	dim     int

	// Err, when set, is returned by every Embed call.
	Err error
}

// NewEmbedder creates a mock embedder producing vectors of the given
// dimension.
func NewEmbedder(dim int) *Embedder {
	return &Embedder{
		vectors: make(map[string][]float32),
		dim:     dim,
	}
}

// SetVector pins the vector returned for an exact content string.
func (e *Embedder) SetVector(content string, vec []float32) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.vectors[content] = vec
}

// Name implements ai.Embedder.
func (e *Embedder) Name() string { return "mock/embedder" }

// Register implements ai.Embedder.
func (e *Embedder) Register(api.Registry) {}

// Embed implements ai.Embedder.
func (e *Embedder) Embed(_ context.Context, req *ai.EmbedRequest) (*ai.EmbedResponse, error) {
	if e.Err != nil {
		return nil, e.Err
	}
	embeddings := make([]*ai.Embedding, len(req.Input))
	for i, doc := range req.Input {
		embeddings[i] = &ai.Embedding{Embedding: e.vectorFor(documentText(doc))}
	}
	return &ai.EmbedResponse{Embeddings: embeddings}, nil
}

func (e *Embedder) vectorFor(content string) []float32 {
	e.mu.Lock()
	v, ok := e.vectors[content]
	e.mu.Unlock()
	if ok {
		return v
	}
	return deterministicVector(content, e.dim)
}

func documentText(doc *ai.Document) string {
	var sb strings.Builder
	for _, p := range doc.Content {
		if p.Kind == ai.PartText {
			sb.WriteString(p.Text)
		}
	}
	return sb.String()
}

// deterministicVector maps content to a unit vector through SHA-256.
func deterministicVector(content string, dim int) []float32 {
	hash := sha256.Sum256([]byte(content))
	vec := make([]float32, dim)
	for i := range vec {
		idx := (i * 4) % len(hash)
		bits := binary.LittleEndian.Uint32([]byte{
			hash[idx%32],
			hash[(idx+1)%32],
			hash[(idx+2)%32],
			hash[(idx+3)%32],
		})
		vec[i] = (float32(bits)/float32(math.MaxUint32))*2 - 1
	}

	var norm float32
	for _, v := range vec {
		norm += v * v
	}
	norm = float32(math.Sqrt(float64(norm)))
	if norm > 0 {
		for i := range vec {
			vec[i] /= norm
		}
	}
	return vec
}
