// Package model is the embedding-model adapter: it downloads the GGUF
// files, owns the runtime handles, and exposes embed/tokenize to the
// pipeline and retrieval layers.
package model

import (
	"context"
	"math"
)

// Embedder produces dense vectors plus the tokenizer the chunker uses.
// Implementations must be safe for concurrent use.
type Embedder interface {
	// Embed generates an embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts in one call.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Tokenize converts text to model tokens.
	Tokenize(text string) ([]int32, error)

	// Detokenize converts tokens back to text.
	Detokenize(tokens []int32) (string, error)

	// Dimensions returns the embedding vector size.
	Dimensions() int

	// ModelName identifies the underlying model.
	ModelName() string

	// Close releases the model handles.
	Close() error
}

// normalizeVector scales a vector to unit length. Zero vectors are
// returned unchanged.
func normalizeVector(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	norm := float32(1 / math.Sqrt(sum))
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = x * norm
	}
	return out
}
