package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startWatcher(t *testing.T, dir string) *FSWatcher {
	t.Helper()
	w, err := New(Options{DebounceWindow: 50 * time.Millisecond})
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Stop() })

	go func() { _ = w.Start(context.Background(), dir) }()
	// Give the watch set a moment to register before touching files.
	time.Sleep(100 * time.Millisecond)
	return w
}

func waitBatch(t *testing.T, w *FSWatcher) []Change {
	t.Helper()
	select {
	case batch := <-w.Batches():
		return batch
	case <-time.After(5 * time.Second):
		t.Fatal("no batch arrived")
		return nil
	}
}

func TestFSWatcher_ReportsFileCreation(t *testing.T) {
	dir := t.TempDir()
	w := startWatcher(t, dir)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.md"), []byte("body"), 0o644))

	batch := waitBatch(t, w)
	require.NotEmpty(t, batch)
	assert.Equal(t, "a.md", batch[0].Path)
	assert.Equal(t, OpCreate, batch[0].Op)
}

func TestFSWatcher_WatchesNewSubdirectories(t *testing.T) {
	dir := t.TempDir()
	w := startWatcher(t, dir)

	sub := filepath.Join(dir, "docs")
	require.NoError(t, os.Mkdir(sub, 0o755))
	// Let the create event land so the new directory joins the watch set.
	time.Sleep(200 * time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(sub, "b.md"), []byte("body"), 0o644))

	found := false
	deadline := time.After(5 * time.Second)
	for !found {
		select {
		case batch := <-w.Batches():
			for _, c := range batch {
				if c.Path == "docs/b.md" && c.Op == OpCreate {
					found = true
				}
			}
		case <-deadline:
			t.Fatal("nested file change never reported")
		}
	}
}

func TestFSWatcher_IgnoresInternalDirs(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".git"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".spall"), 0o755))
	w := startWatcher(t, dir)

	require.NoError(t, os.WriteFile(filepath.Join(dir, ".git", "HEAD"), []byte("ref"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".spall", "spall.json"), []byte("{}"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "visible.md"), []byte("body"), 0o644))

	batch := waitBatch(t, w)
	require.Len(t, batch, 1)
	assert.Equal(t, "visible.md", batch[0].Path)
}

func TestFSWatcher_StopClosesBatches(t *testing.T) {
	dir := t.TempDir()
	w := startWatcher(t, dir)

	require.NoError(t, w.Stop())
	require.NoError(t, w.Stop()) // idempotent

	select {
	case _, open := <-w.Batches():
		assert.False(t, open)
	case <-time.After(time.Second):
		t.Fatal("batch channel not closed")
	}
}

func TestSkipPath(t *testing.T) {
	assert.True(t, skipPath("."))
	assert.True(t, skipPath(".git"))
	assert.True(t, skipPath(".git/objects/ab"))
	assert.True(t, skipPath(".spall/spall.json"))
	assert.False(t, skipPath("notes/.github.md"))
	assert.False(t, skipPath("a.md"))
}
