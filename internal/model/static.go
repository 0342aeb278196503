package model

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
	"sync"
	"unicode"
)

// StaticDimensions matches the GGUF embedder's output size so the two
// backends are interchangeable against one schema.
const StaticDimensions = 768

// Token/trigram mixing weights for the hash vectors.
const (
	staticTokenWeight   = 0.7
	staticTrigramWeight = 0.3
)

// StaticEmbedder is a deterministic, offline, hash-based embedder. It
// powers --offline mode and the test suites: identical text always maps
// to an identical unit vector.
type StaticEmbedder struct {
	mu     sync.Mutex
	closed bool

	// Tokenize/Detokenize round-trip through a per-process vocabulary:
	// segment ids are assigned on first sight.
	vocab map[string]int32
	terms []string
}

// NewStaticEmbedder creates a static embedder.
func NewStaticEmbedder() *StaticEmbedder {
	return &StaticEmbedder{vocab: make(map[string]int32)}
}

// Embed generates the hash vector for a single text.
func (e *StaticEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	closed := e.closed
	e.mu.Unlock()
	if closed {
		return nil, fmt.Errorf("static embedder is closed")
	}

	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return make([]float32, StaticDimensions), nil
	}
	return normalizeVector(e.generateVector(trimmed)), nil
}

// EmbedBatch embeds each text independently.
func (e *StaticEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		vec, err := e.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

// Tokenize splits text into alternating whitespace and word segments and
// maps each distinct segment to a stable id, so Detokenize reproduces the
// input exactly.
func (e *StaticEmbedder) Tokenize(text string) ([]int32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, fmt.Errorf("static embedder is closed")
	}

	var tokens []int32
	for _, seg := range segments(text) {
		id, ok := e.vocab[seg]
		if !ok {
			id = int32(len(e.terms))
			e.vocab[seg] = id
			e.terms = append(e.terms, seg)
		}
		tokens = append(tokens, id)
	}
	return tokens, nil
}

// Detokenize concatenates the segments the ids were assigned to.
func (e *StaticEmbedder) Detokenize(tokens []int32) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return "", fmt.Errorf("static embedder is closed")
	}

	var b strings.Builder
	for _, id := range tokens {
		if id < 0 || int(id) >= len(e.terms) {
			return "", fmt.Errorf("unknown token id %d", id)
		}
		b.WriteString(e.terms[id])
	}
	return b.String(), nil
}

// Dimensions returns the vector size.
func (e *StaticEmbedder) Dimensions() int {
	return StaticDimensions
}

// ModelName identifies this backend.
func (e *StaticEmbedder) ModelName() string {
	return "static-hash-768"
}

// Close marks the embedder closed.
func (e *StaticEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}

// segments splits text into maximal runs of whitespace and non-whitespace.
func segments(text string) []string {
	var out []string
	start := 0
	inSpace := false
	for i, r := range text {
		isSpace := unicode.IsSpace(r)
		if i == 0 {
			inSpace = isSpace
			continue
		}
		if isSpace != inSpace {
			out = append(out, text[start:i])
			start = i
			inSpace = isSpace
		}
	}
	if start < len(text) {
		out = append(out, text[start:])
	}
	return out
}

// generateVector mixes hashed word tokens (weight 0.7) and character
// trigrams (weight 0.3) into a fixed-size vector.
func (e *StaticEmbedder) generateVector(text string) []float32 {
	vector := make([]float32, StaticDimensions)

	for _, word := range splitWords(text) {
		for _, part := range splitIdentifier(word) {
			addHashed(vector, strings.ToLower(part), staticTokenWeight)
		}
	}

	lower := strings.ToLower(text)
	for i := 0; i+3 <= len(lower); i++ {
		addHashed(vector, lower[i:i+3], staticTrigramWeight)
	}
	return vector
}

func addHashed(vector []float32, s string, weight float32) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	sum := h.Sum64()
	idx := int(sum % uint64(len(vector)))
	sign := float32(1)
	if sum&(1<<63) != 0 {
		sign = -1
	}
	vector[idx] += sign * weight
}

func splitWords(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	})
}

// splitIdentifier breaks camelCase and snake_case words into parts.
func splitIdentifier(word string) []string {
	var parts []string
	for _, snake := range strings.Split(word, "_") {
		if snake == "" {
			continue
		}
		start := 0
		runes := []rune(snake)
		for i := 1; i < len(runes); i++ {
			if unicode.IsUpper(runes[i]) && !unicode.IsUpper(runes[i-1]) {
				parts = append(parts, string(runes[start:i]))
				start = i
			}
		}
		parts = append(parts, string(runes[start:]))
	}
	return parts
}
