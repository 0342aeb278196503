package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spall-labs/spall/internal/errors"
)

func TestGetOrCreateCorpus_Idempotent(t *testing.T) {
	s := newTestStore(t)

	first, err := s.GetOrCreateCorpus("handbook")
	require.NoError(t, err)
	second, err := s.GetOrCreateCorpus("handbook")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	byName, err := s.GetCorpusByName("handbook")
	require.NoError(t, err)
	assert.Equal(t, first.ID, byName.ID)
}

func TestGetCorpus_NotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetCorpusByName("missing")
	assert.Equal(t, errors.CodeCorpusNotFound, errors.Code(err))
	assert.True(t, errors.IsNotFound(err))

	_, err = s.GetCorpusByID(42)
	assert.Equal(t, errors.CodeCorpusNotFound, errors.Code(err))
}

func TestListCorpora(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetOrCreateCorpus("beta")
	require.NoError(t, err)
	_, err = s.GetOrCreateCorpus("alpha")
	require.NoError(t, err)

	corpora, err := s.ListCorpora()
	require.NoError(t, err)
	require.Len(t, corpora, 3) // seeded default plus two
	assert.Equal(t, "default", corpora[0].Name)
}

func TestRemoveCorpus_Cascades(t *testing.T) {
	s := newTestStore(t)
	corpus, err := s.GetOrCreateCorpus("doomed")
	require.NoError(t, err)

	note, err := s.AddNote(corpus.ID, "a.md", "indexed content", 0, false)
	require.NoError(t, err)
	require.NoError(t, s.SaveEmbeddings(note.ID, []ChunkEmbedding{
		{Pos: 0, Vector: []float32{1, 0, 0, 0}},
	}))

	require.NoError(t, s.RemoveCorpus(corpus.ID))

	_, err = s.GetCorpusByID(corpus.ID)
	assert.True(t, errors.IsNotFound(err))
	_, err = s.GetNoteByID(note.ID)
	assert.True(t, errors.IsNotFound(err))

	n, err := s.CountVectors(note.ID)
	require.NoError(t, err)
	assert.Zero(t, n)

	results, err := s.FTSSearch(`"indexed"`, []int64{corpus.ID}, "", 10, "", "")
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestGetOrCreateWorkspace_Idempotent(t *testing.T) {
	s := newTestStore(t)

	first, err := s.GetOrCreateWorkspace("dev")
	require.NoError(t, err)
	second, err := s.GetOrCreateWorkspace("dev")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	_, err = s.GetWorkspaceByName("missing")
	assert.Equal(t, errors.CodeWorkspaceNotFound, errors.Code(err))
}

func TestRemoveWorkspace_KeepsNotes(t *testing.T) {
	s := newTestStore(t)
	ws, err := s.GetOrCreateWorkspace("dev")
	require.NoError(t, err)
	note := addTestNote(t, s, "a.md", "content")

	q, err := s.CreateQuery(ws.ID, true, []int64{1})
	require.NoError(t, err)
	require.NoError(t, s.AppendStaging(note.ID, q.ID, AccessKindNoteRead, ""))

	require.NoError(t, s.RemoveWorkspace(ws.ID))

	_, err = s.GetWorkspaceByID(ws.ID)
	assert.True(t, errors.IsNotFound(err))
	_, err = s.GetQuery(q.ID)
	assert.True(t, errors.IsNotFound(err))
	staged, err := s.CountStaging()
	require.NoError(t, err)
	assert.Zero(t, staged)

	// Corpora and notes are untouched.
	_, err = s.GetNoteByID(note.ID)
	require.NoError(t, err)
}

func TestPathsByCorpus(t *testing.T) {
	s := newTestStore(t)
	other, err := s.GetOrCreateCorpus("other")
	require.NoError(t, err)

	addTestNote(t, s, "docs/b.md", "b")
	addTestNote(t, s, "docs/a.md", "a")
	_, err = s.AddNote(other.ID, "x.md", "x", 0, false)
	require.NoError(t, err)

	grouped, err := s.PathsByCorpus([]int64{1, other.ID}, "")
	require.NoError(t, err)
	require.Len(t, grouped, 2)
	assert.Equal(t, "default", grouped[0].Corpus)
	assert.Equal(t, []string{"docs/a.md", "docs/b.md"}, grouped[0].Paths)
	assert.Equal(t, "other", grouped[1].Corpus)
	assert.Equal(t, []string{"x.md"}, grouped[1].Paths)

	grouped, err = s.PathsByCorpus([]int64{1}, "docs/a*")
	require.NoError(t, err)
	require.Len(t, grouped, 1)
	assert.Equal(t, []string{"docs/a.md"}, grouped[0].Paths)
}

func TestFileHashCache(t *testing.T) {
	s := newTestStore(t)

	hash, err := s.GetFileHash("/tmp/a.md", 100)
	require.NoError(t, err)
	assert.Empty(t, hash)

	require.NoError(t, s.UpsertFileHash("/tmp/a.md", "abc", 100))

	hash, err = s.GetFileHash("/tmp/a.md", 100)
	require.NoError(t, err)
	assert.Equal(t, "abc", hash)

	// A different mtime misses.
	hash, err = s.GetFileHash("/tmp/a.md", 200)
	require.NoError(t, err)
	assert.Empty(t, hash)

	// Upsert replaces in place.
	require.NoError(t, s.UpsertFileHash("/tmp/a.md", "def", 200))
	hash, err = s.GetFileHash("/tmp/a.md", 200)
	require.NoError(t, err)
	assert.Equal(t, "def", hash)
}

func TestNotesUnderPrefix(t *testing.T) {
	s := newTestStore(t)
	addTestNote(t, s, "docs/a.md", "a")
	addTestNote(t, s, "docs/sub/b.md", "b")
	addTestNote(t, s, "docs2/c.md", "c")
	addTestNote(t, s, "docs", "bare")

	under, err := s.NotesUnderPrefix(1, "docs")
	require.NoError(t, err)
	paths := make([]string, 0, len(under))
	for _, n := range under {
		paths = append(paths, n.Path)
	}
	assert.ElementsMatch(t, []string{"docs", "docs/a.md", "docs/sub/b.md"}, paths)

	all, err := s.NotesUnderPrefix(1, "")
	require.NoError(t, err)
	assert.Len(t, all, 4)
}
