//go:build !(darwin || linux)

package model

import (
	"context"
	"fmt"
)

// LlamaEmbedder is unavailable on this platform; use --offline.
type LlamaEmbedder struct{}

func NewLlamaEmbedder(modelPath, modelName string) (*LlamaEmbedder, error) {
	return nil, fmt.Errorf("llama runtime is not supported on this platform")
}

func (e *LlamaEmbedder) Embed(context.Context, string) ([]float32, error) {
	return nil, fmt.Errorf("llama runtime is not supported on this platform")
}

func (e *LlamaEmbedder) EmbedBatch(context.Context, []string) ([][]float32, error) {
	return nil, fmt.Errorf("llama runtime is not supported on this platform")
}

func (e *LlamaEmbedder) Tokenize(string) ([]int32, error) {
	return nil, fmt.Errorf("llama runtime is not supported on this platform")
}

func (e *LlamaEmbedder) Detokenize([]int32) (string, error) {
	return "", fmt.Errorf("llama runtime is not supported on this platform")
}

func (e *LlamaEmbedder) Dimensions() int    { return EmbedderDimensions }
func (e *LlamaEmbedder) ModelName() string  { return EmbedderModelFile }
func (e *LlamaEmbedder) Close() error       { return nil }
