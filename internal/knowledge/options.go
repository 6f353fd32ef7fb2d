package knowledge

import "github.com/DuongD0/multimodal-rag/internal/vecstore"

// SearchOption configures a single Search call.
type SearchOption func(*searchConfig)

type searchConfig struct {
	topK     int
	minScore float32
	filter   func(vecstore.Chunk) bool
}

// WithTopK sets the maximum number of results. Non-positive values keep
// the store default.
func WithTopK(k int) SearchOption {
	return func(c *searchConfig) {
		if k > 0 {
			c.topK = k
		}
	}
}

// WithMinScore drops results whose cosine similarity falls below score.
func WithMinScore(score float32) SearchOption {
	return func(c *searchConfig) {
		c.minScore = score
	}
}

// WithFilter keeps only results for which fn returns true. The topK limit
// applies after filtering.
func WithFilter(fn func(vecstore.Chunk) bool) SearchOption {
	return func(c *searchConfig) {
		c.filter = fn
	}
}

// WithSource restricts results to chunks of one source document.
func WithSource(source string) SearchOption {
	return WithFilter(func(ch vecstore.Chunk) bool {
		return ch.Source == source
	})
}

func buildSearchConfig(defaultTopK int, opts []SearchOption) searchConfig {
	cfg := searchConfig{
		topK:     defaultTopK,
		minScore: -1, // cosine similarity lower bound, keeps everything
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}
