// Package chunk splits note content into token-bounded, overlapping
// windows suitable for embedding.
package chunk

import (
	"math"
	"strings"
)

// Default window geometry.
const (
	DefaultMaxTokens     = 512
	DefaultOverlapTokens = 64
)

// cleanBreakFraction is the tail share of a window searched for a clean
// break point.
const cleanBreakFraction = 0.3

// Tokenizer is the slice of the model adapter the chunker needs.
type Tokenizer interface {
	Tokenize(text string) ([]int32, error)
	Detokenize(tokens []int32) (string, error)
}

// Chunk is one window of note content. Pos is the estimated character
// offset of the chunk within the full content.
type Chunk struct {
	Text string
	Pos  int
}

// Chunker produces overlapping token windows with clean-break trimming.
type Chunker struct {
	tok       Tokenizer
	maxTokens int
	overlap   int
}

// New creates a Chunker. Non-positive maxTokens or out-of-range overlap
// fall back to the defaults.
func New(tok Tokenizer, maxTokens, overlap int) *Chunker {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	if overlap < 0 || overlap >= maxTokens {
		overlap = DefaultOverlapTokens
	}
	return &Chunker{tok: tok, maxTokens: maxTokens, overlap: overlap}
}

// Split chunks text into windows of up to maxTokens tokens, stepping by
// maxTokens-overlap. Content fitting in a single window is returned whole
// at position 0. Longer content is windowed, each window trimmed at a
// clean break found in its last 30%: a paragraph break first, then a
// sentence terminator, then a line break.
func (c *Chunker) Split(text string) ([]Chunk, error) {
	if text == "" {
		return nil, nil
	}

	tokens, err := c.tok.Tokenize(text)
	if err != nil {
		return nil, err
	}
	if len(tokens) <= c.maxTokens {
		return []Chunk{{Text: text, Pos: 0}}, nil
	}

	avgCharsPerToken := float64(len(text)) / float64(len(tokens))
	step := c.maxTokens - c.overlap

	var chunks []Chunk
	for start := 0; start < len(tokens); start += step {
		end := start + c.maxTokens
		if end > len(tokens) {
			end = len(tokens)
		}

		window, err := c.tok.Detokenize(tokens[start:end])
		if err != nil {
			return nil, err
		}
		// The final window keeps its ragged tail.
		if end < len(tokens) {
			window = trimAtCleanBreak(window)
		}

		pos := int(math.Floor(float64(start) * avgCharsPerToken))
		chunks = append(chunks, Chunk{Text: window, Pos: pos})

		if end == len(tokens) {
			break
		}
	}
	return chunks, nil
}

var sentenceBreaks = []string{". ", ".\n", "? ", "?\n", "! ", "!\n"}

// trimAtCleanBreak truncates a window at the best break point found in
// its last 30%: paragraph break, then sentence terminator, then newline.
func trimAtCleanBreak(window string) string {
	tail := int(float64(len(window)) * (1 - cleanBreakFraction))

	if idx := strings.LastIndex(window[tail:], "\n\n"); idx >= 0 {
		return window[:tail+idx]
	}

	best := -1
	for _, b := range sentenceBreaks {
		if idx := strings.LastIndex(window[tail:], b); idx > best {
			best = idx
		}
	}
	if best >= 0 {
		// Keep the terminator, drop the trailing separator.
		return window[:tail+best+1]
	}

	if idx := strings.LastIndex(window[tail:], "\n"); idx >= 0 {
		return window[:tail+idx]
	}
	return window
}
