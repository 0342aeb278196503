package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spall-labs/spall/internal/bus"
)

const testDims = 4

// newTestStore opens an in-memory store with a small vector dimension.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(Options{Dims: testDims, ModelName: "test-model"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOpen_SeedsDefaults(t *testing.T) {
	s := newTestStore(t)

	// The default corpus exists with id 1.
	c, err := s.GetCorpusByID(1)
	require.NoError(t, err)
	assert.Equal(t, "default", c.Name)

	model, err := s.Meta("embedding_model_name")
	require.NoError(t, err)
	assert.Equal(t, "test-model", model)

	dims, err := s.Meta("embedding_dims")
	require.NoError(t, err)
	assert.Equal(t, "4", dims)
}

func TestOpen_RejectsZeroDims(t *testing.T) {
	_, err := Open(Options{Dims: 0})
	require.Error(t, err)
}

func TestOpen_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "spall.db")

	s, err := Open(Options{Path: path, Dims: testDims, ModelName: "test-model"})
	require.NoError(t, err)
	note, err := s.AddNote(1, "a.md", "persisted content", 0, false)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s2, err := Open(Options{Path: path, Dims: testDims, ModelName: "test-model"})
	require.NoError(t, err)
	defer s2.Close()

	got, err := s2.GetNoteByID(note.ID)
	require.NoError(t, err)
	assert.Equal(t, "persisted content", got.Content)
}

func TestOpen_PublishesCreateEvents(t *testing.T) {
	b := bus.New()
	var types []string
	b.Subscribe(func(ev bus.Event) { types = append(types, ev.Type) })

	path := filepath.Join(t.TempDir(), "spall.db")
	s, err := Open(Options{Path: path, Dims: testDims, Events: b})
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, []string{bus.TypeStoreCreate, bus.TypeStoreCreated}, types)

	// Reopening an existing database is silent.
	require.NoError(t, s.Close())
	types = nil
	s2, err := Open(Options{Path: path, Dims: testDims, Events: b})
	require.NoError(t, err)
	defer s2.Close()
	assert.Empty(t, types)
}

func TestCanonicalPath(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"a/b.md", "a/b.md"},
		{"./a/b.md", "a/b.md"},
		{"/a/b.md/", "a/b.md"},
		{`a\b\c.md`, "a/b/c.md"},
		{"a//b///c.md", "a/b/c.md"},
		{"", ""},
		{"/", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CanonicalPath(tt.in), "input %q", tt.in)
	}
}

func TestMeta_MissingKey(t *testing.T) {
	s := newTestStore(t)
	v, err := s.Meta("nope")
	require.NoError(t, err)
	assert.Equal(t, "", v)
}
