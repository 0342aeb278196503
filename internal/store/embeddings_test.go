package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func addTestNote(t *testing.T, s *Store, path, content string) *Note {
	t.Helper()
	note, err := s.AddNote(1, path, content, 0, true)
	require.NoError(t, err)
	return note
}

func TestSaveEmbeddings_ReplacesExistingRows(t *testing.T) {
	s := newTestStore(t)
	note := addTestNote(t, s, "a.md", "some content")

	require.NoError(t, s.SaveEmbeddings(note.ID, []ChunkEmbedding{
		{Pos: 0, Vector: []float32{1, 0, 0, 0}},
		{Pos: 100, Vector: []float32{0, 1, 0, 0}},
	}))

	n, err := s.CountEmbeddings(note.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	n, err = s.CountVectors(note.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// Saving again replaces, never accumulates.
	require.NoError(t, s.SaveEmbeddings(note.ID, []ChunkEmbedding{
		{Pos: 0, Vector: []float32{0, 0, 1, 0}},
	}))
	n, err = s.CountEmbeddings(note.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	n, err = s.CountVectors(note.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestSaveEmbeddings_DimensionMismatch(t *testing.T) {
	s := newTestStore(t)
	note := addTestNote(t, s, "a.md", "content")

	err := s.SaveEmbeddings(note.ID, []ChunkEmbedding{{Pos: 0, Vector: []float32{1, 0}}})
	require.Error(t, err)

	// Nothing was written.
	n, err := s.CountEmbeddings(note.ID)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSaveEmbeddingBatch_ContinuationDoesNotClear(t *testing.T) {
	s := newTestStore(t)
	note := addTestNote(t, s, "a.md", "content")

	// First batch clears the note's residual rows.
	require.NoError(t, s.SaveEmbeddingBatch([]EmbeddingRow{
		{NoteID: note.ID, Seq: 0, Pos: 0, Vector: []float32{1, 0, 0, 0}},
	}, []int64{note.ID}))

	// Continuation batch for the same note must not list it again.
	require.NoError(t, s.SaveEmbeddingBatch([]EmbeddingRow{
		{NoteID: note.ID, Seq: 1, Pos: 200, Vector: []float32{0, 1, 0, 0}},
	}, nil))

	n, err := s.CountEmbeddings(note.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestClearEmbeddings(t *testing.T) {
	s := newTestStore(t)
	note := addTestNote(t, s, "a.md", "content")
	require.NoError(t, s.SaveEmbeddings(note.ID, []ChunkEmbedding{
		{Pos: 0, Vector: []float32{1, 0, 0, 0}},
	}))

	require.NoError(t, s.ClearEmbeddings(note.ID))
	n, err := s.CountEmbeddings(note.ID)
	require.NoError(t, err)
	assert.Zero(t, n)
	n, err = s.CountVectors(note.ID)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestUnembeddedNotes(t *testing.T) {
	s := newTestStore(t)
	a := addTestNote(t, s, "a.md", "one")
	b := addTestNote(t, s, "b.md", "two")

	ids, err := s.UnembeddedNotes(1)
	require.NoError(t, err)
	assert.Equal(t, []int64{a.ID, b.ID}, ids)

	require.NoError(t, s.SaveEmbeddings(a.ID, []ChunkEmbedding{
		{Pos: 0, Vector: []float32{1, 0, 0, 0}},
	}))

	ids, err = s.UnembeddedNotes(1)
	require.NoError(t, err)
	assert.Equal(t, []int64{b.ID}, ids)
}

func TestVectorSearch_CosineOrder(t *testing.T) {
	s := newTestStore(t)
	a := addTestNote(t, s, "a.md", "aligned")
	b := addTestNote(t, s, "b.md", "orthogonal")

	require.NoError(t, s.SaveEmbeddings(a.ID, []ChunkEmbedding{
		{Pos: 0, Vector: []float32{1, 0, 0, 0}},
	}))
	require.NoError(t, s.SaveEmbeddings(b.ID, []ChunkEmbedding{
		{Pos: 0, Vector: []float32{0, 1, 0, 0}},
	}))

	hits, err := s.VectorSearch([]float32{1, 0, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, a.ID, hits[0].NoteID)
	assert.InDelta(t, 0.0, hits[0].Distance, 1e-6)
	assert.Equal(t, b.ID, hits[1].NoteID)
	assert.InDelta(t, 1.0, hits[1].Distance, 1e-6)
	assert.Equal(t, "aligned", hits[0].Content)
}

func TestVectorSearch_Validation(t *testing.T) {
	s := newTestStore(t)

	_, err := s.VectorSearch([]float32{1, 0}, 5)
	require.Error(t, err)

	hits, err := s.VectorSearch([]float32{1, 0, 0, 0}, 0)
	require.NoError(t, err)
	assert.Empty(t, hits)
}
