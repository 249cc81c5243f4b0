// Package embedding provides a deterministic, dependency-free embedder
// used whenever no external embedding API key is configured. It trades
// semantic quality for having *some* vector signal (the hashing trick
// over word n-grams) so the selector's ML mode and the ranker's semantic
// rerank degrade gracefully instead of requiring a live provider.
package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
)

const defaultDimension = 64

// HashEmbedder implements both selector.EmbeddingService (a single
// Embed method) and embeddings.Provider (the fuller RAG-index
// contract) over the same deterministic hashing-trick vector, so one
// instance can be shared across the tool selector, ranker, and RAG
// index wiring.
type HashEmbedder struct {
	dimension int
}

// NewHashEmbedder builds a hashing embedder with the given vector
// dimension (defaultDimension if dim <= 0).
func NewHashEmbedder(dim int) *HashEmbedder {
	if dim <= 0 {
		dim = defaultDimension
	}
	return &HashEmbedder{dimension: dim}
}

// Embed implements selector.EmbeddingService.
func (h *HashEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return h.vector(text), nil
}

// EmbedBatch implements embeddings.Provider.
func (h *HashEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = h.vector(t)
	}
	return out, nil
}

// Name implements embeddings.Provider.
func (h *HashEmbedder) Name() string { return "hash" }

// Dimension implements embeddings.Provider.
func (h *HashEmbedder) Dimension() int { return h.dimension }

// MaxBatchSize implements embeddings.Provider.
func (h *HashEmbedder) MaxBatchSize() int { return 256 }

// vector hashes each lowercased word into a bucket via FNV-1a and
// accumulates a signed count, then L2-normalizes so cosine similarity
// behaves sensibly across texts of different lengths.
func (h *HashEmbedder) vector(text string) []float32 {
	v := make([]float32, h.dimension)
	words := strings.Fields(strings.ToLower(text))
	for _, w := range words {
		sum := fnv.New32a()
		_, _ = sum.Write([]byte(w))
		bucket := int(sum.Sum32()) % h.dimension
		if bucket < 0 {
			bucket += h.dimension
		}
		v[bucket]++
	}

	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	if norm == 0 {
		return v
	}
	norm = math.Sqrt(norm)
	for i := range v {
		v[i] = float32(float64(v[i]) / norm)
	}
	return v
}
