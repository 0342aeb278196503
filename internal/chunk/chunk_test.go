package chunk

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spall-labs/spall/internal/model"
)

func TestNew_FallsBackToDefaults(t *testing.T) {
	c := New(model.NewStaticEmbedder(), 0, -1)
	assert.Equal(t, DefaultMaxTokens, c.maxTokens)
	assert.Equal(t, DefaultOverlapTokens, c.overlap)

	// Overlap must stay below the window size.
	c = New(model.NewStaticEmbedder(), 8, 8)
	assert.Equal(t, 8, c.maxTokens)
	assert.Equal(t, DefaultOverlapTokens, c.overlap)
}

func TestSplit_Empty(t *testing.T) {
	c := New(model.NewStaticEmbedder(), 8, 2)
	chunks, err := c.Split("")
	require.NoError(t, err)
	assert.Nil(t, chunks)
}

func TestSplit_SingleWindow(t *testing.T) {
	c := New(model.NewStaticEmbedder(), 8, 2)

	chunks, err := c.Split("short note")
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "short note", chunks[0].Text)
	assert.Zero(t, chunks[0].Pos)
}

func TestSplit_OverlappingWindows(t *testing.T) {
	// Each word plus its separating space is two tokens; twelve words make
	// 23 tokens, forcing four windows at max 8 / step 6. No sentence or
	// paragraph breaks, so no window gets trimmed.
	words := make([]string, 12)
	for i := range words {
		words[i] = "a" + strings.Repeat("x", i%3)
	}
	text := strings.Join(words, " ")

	c := New(model.NewStaticEmbedder(), 8, 2)
	chunks, err := c.Split(text)
	require.NoError(t, err)
	require.Len(t, chunks, 4)

	// The first window starts at the beginning, the last keeps the tail.
	assert.Zero(t, chunks[0].Pos)
	assert.True(t, strings.HasPrefix(text, chunks[0].Text))
	assert.True(t, strings.HasSuffix(text, chunks[3].Text))

	for i := 1; i < len(chunks); i++ {
		assert.Greater(t, chunks[i].Pos, chunks[i-1].Pos)
		// Every window is a verbatim slice of the input near its offset.
		assert.Contains(t, text, chunks[i].Text)
	}

	// Adjacent windows share the two overlap tokens (one word, one space).
	first := strings.Fields(chunks[0].Text)
	second := strings.Fields(chunks[1].Text)
	assert.Equal(t, first[len(first)-1], second[0])
}

func TestSplit_ClosedTokenizer(t *testing.T) {
	emb := model.NewStaticEmbedder()
	require.NoError(t, emb.Close())

	c := New(emb, 8, 2)
	_, err := c.Split("anything")
	assert.Error(t, err)
}

func TestTrimAtCleanBreak(t *testing.T) {
	body := strings.Repeat("x", 70)

	t.Run("paragraph break wins", func(t *testing.T) {
		window := body + "\n\nafter paragraph break tail"
		assert.Equal(t, body, trimAtCleanBreak(window))
	})

	t.Run("sentence terminator kept", func(t *testing.T) {
		window := body + " end. more tail here"
		got := trimAtCleanBreak(window)
		assert.Equal(t, body+" end.", got)
	})

	t.Run("newline fallback", func(t *testing.T) {
		window := body + " abc\ndef tail"
		assert.Equal(t, body+" abc", trimAtCleanBreak(window))
	})

	t.Run("no break leaves window alone", func(t *testing.T) {
		window := strings.Repeat("y", 100)
		assert.Equal(t, window, trimAtCleanBreak(window))
	})

	t.Run("break outside the tail is ignored", func(t *testing.T) {
		window := "one. two\n\nthree " + strings.Repeat("z", 80)
		assert.Equal(t, window, trimAtCleanBreak(window))
	})
}
