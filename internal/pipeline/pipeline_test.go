package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spall-labs/spall/internal/bus"
	"github.com/spall-labs/spall/internal/errors"
	"github.com/spall-labs/spall/internal/model"
	"github.com/spall-labs/spall/internal/reqctx"
	"github.com/spall-labs/spall/internal/store"
)

func newTestPipeline(t *testing.T, events *bus.Bus) (*Pipeline, *store.Store) {
	t.Helper()

	s, err := store.Open(store.Options{
		Dims:      model.StaticDimensions,
		ModelName: "static-hash-768",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	adapter := model.NewAdapter(model.Options{Offline: true})
	require.NoError(t, adapter.Load(context.Background()))
	t.Cleanup(adapter.Dispose)

	return New(Options{Store: s, Models: adapter, Events: events, BatchSize: 4}), s
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func bumpMtime(t *testing.T, path string, d time.Duration) {
	t.Helper()
	info, err := os.Stat(path)
	require.NoError(t, err)
	when := info.ModTime().Add(d)
	require.NoError(t, os.Chtimes(path, when, when))
}

func TestScan_AddModifyRemove(t *testing.T) {
	p, s := newTestPipeline(t, nil)
	dir := t.TempDir()
	aPath := writeFile(t, dir, "a.md", "alpha original")
	bPath := writeFile(t, dir, "b.md", "beta")
	rc := reqctx.New(0)

	result, err := p.Scan(rc, dir, "", 1, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"a.md", "b.md"}, result.Added)
	assert.Empty(t, result.Modified)
	assert.Empty(t, result.Removed)
	assert.Len(t, result.Unembedded, 2)

	// A second pass over unchanged files is a no-op.
	result, err = p.Scan(rc, dir, "", 1, "")
	require.NoError(t, err)
	assert.Empty(t, result.Added)
	assert.Empty(t, result.Modified)
	assert.Empty(t, result.Removed)

	// Changed content with a newer mtime counts as modified.
	writeFile(t, dir, "a.md", "alpha rewritten")
	bumpMtime(t, aPath, 2*time.Second)
	require.NoError(t, os.Remove(bPath))

	result, err = p.Scan(rc, dir, "", 1, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"a.md"}, result.Modified)
	assert.Equal(t, []string{"b.md"}, result.Removed)

	note, err := s.GetNote(1, "a.md")
	require.NoError(t, err)
	assert.Equal(t, "alpha rewritten", note.Content)
	_, err = s.GetNote(1, "b.md")
	assert.True(t, errors.IsNotFound(err))
}

func TestScan_NewMtimeSameContentIsTouch(t *testing.T) {
	p, s := newTestPipeline(t, nil)
	dir := t.TempDir()
	path := writeFile(t, dir, "a.md", "stable content")
	rc := reqctx.New(0)

	_, err := p.Scan(rc, dir, "", 1, "")
	require.NoError(t, err)

	bumpMtime(t, path, 2*time.Second)
	result, err := p.Scan(rc, dir, "", 1, "")
	require.NoError(t, err)
	assert.Empty(t, result.Modified)

	// The stored mtime caught up, so a third pass skips the hash entirely.
	info, err := os.Stat(path)
	require.NoError(t, err)
	note, err := s.GetNote(1, "a.md")
	require.NoError(t, err)
	assert.Equal(t, info.ModTime().UnixMilli(), note.Mtime)
}

func TestScan_GlobAndPrefix(t *testing.T) {
	p, s := newTestPipeline(t, nil)
	dir := t.TempDir()
	writeFile(t, dir, "notes/a.md", "alpha")
	writeFile(t, dir, "notes/skip.txt", "not matched")
	rc := reqctx.New(0)

	result, err := p.Scan(rc, dir, "*.md", 1, "imported")
	require.NoError(t, err)
	assert.Equal(t, []string{"imported/notes/a.md"}, result.Added)

	// Notes outside the prefix are invisible to the reconcile pass.
	_, err = s.AddNote(1, "elsewhere.md", "untouched", 0, false)
	require.NoError(t, err)

	result, err = p.Scan(rc, dir, "*.md", 1, "imported")
	require.NoError(t, err)
	assert.Empty(t, result.Removed)
	_, err = s.GetNote(1, "elsewhere.md")
	require.NoError(t, err)
}

func TestSync_EmbedsScannedNotes(t *testing.T) {
	p, s := newTestPipeline(t, nil)
	dir := t.TempDir()
	writeFile(t, dir, "a.md", "the scanned note body")
	rc := reqctx.New(0)

	result, err := p.Sync(context.Background(), rc, dir, "", 1, "")
	require.NoError(t, err)
	require.Len(t, result.Added, 1)

	pendingIDs, err := s.UnembeddedNotes(1)
	require.NoError(t, err)
	assert.Empty(t, pendingIDs)

	note, err := s.GetNote(1, "a.md")
	require.NoError(t, err)
	n, err := s.CountVectors(note.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestIngestNote_ReplacesRows(t *testing.T) {
	p, s := newTestPipeline(t, nil)
	note, err := s.AddNote(1, "a.md", "first body", 0, false)
	require.NoError(t, err)
	rc := reqctx.New(0)

	require.NoError(t, p.IngestNote(context.Background(), rc, note.ID))
	n, err := s.CountVectors(note.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = s.UpdateNote(note.ID, "second body", 1, false)
	require.NoError(t, err)
	require.NoError(t, p.IngestNote(context.Background(), rc, note.ID))

	n, err = s.CountVectors(note.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestEmbed_AbortStopsAtCheckpoint(t *testing.T) {
	p, s := newTestPipeline(t, nil)
	note, err := s.AddNote(1, "a.md", "body", 0, false)
	require.NoError(t, err)

	rc := reqctx.New(1)
	rc.Abort()

	err = p.Embed(context.Background(), rc, []int64{note.ID})
	assert.True(t, errors.IsCancelled(err))

	n, err := s.CountVectors(note.ID)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSync_EventSequence(t *testing.T) {
	events := bus.New()
	var types []string
	events.Subscribe(func(ev bus.Event) { types = append(types, ev.Type) })

	p, _ := newTestPipeline(t, events)
	dir := t.TempDir()
	writeFile(t, dir, "a.md", "event ordering fixture")

	_, err := p.Sync(context.Background(), reqctx.New(0), dir, "", 1, "")
	require.NoError(t, err)

	assert.Equal(t, []string{
		bus.TypeScanStart,
		bus.TypeScanProgress,
		bus.TypeScanDone,
		bus.TypeEmbedStart,
		bus.TypeEmbedProgress,
		bus.TypeEmbedDone,
	}, types)

	// A no-change pass skips embed.progress but still closes with the
	// embed start/done pair.
	types = nil
	_, err = p.Sync(context.Background(), reqctx.New(0), dir, "", 1, "")
	require.NoError(t, err)

	assert.Equal(t, []string{
		bus.TypeScanStart,
		bus.TypeScanProgress,
		bus.TypeScanDone,
		bus.TypeEmbedStart,
		bus.TypeEmbedDone,
	}, types)
}
