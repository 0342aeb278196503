package watcher

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receiveBatch(t *testing.T, d *debouncer) []Change {
	t.Helper()
	select {
	case batch := <-d.output():
		return batch
	case <-time.After(2 * time.Second):
		t.Fatal("no batch arrived")
		return nil
	}
}

func TestDebouncer_CoalescesCreateModify(t *testing.T) {
	d := newDebouncer(20*time.Millisecond, 4)
	defer d.stop()

	d.add(Change{Path: "a.md", Op: OpCreate})
	d.add(Change{Path: "a.md", Op: OpModify})

	batch := receiveBatch(t, d)
	assert.Equal(t, []Change{{Path: "a.md", Op: OpCreate}}, batch)
}

func TestDebouncer_CreateDeleteCancelsOut(t *testing.T) {
	d := newDebouncer(20*time.Millisecond, 4)
	defer d.stop()

	d.add(Change{Path: "tmp.md", Op: OpCreate})
	d.add(Change{Path: "tmp.md", Op: OpDelete})
	d.add(Change{Path: "kept.md", Op: OpModify})

	batch := receiveBatch(t, d)
	assert.Equal(t, []Change{{Path: "kept.md", Op: OpModify}}, batch)
}

func TestDebouncer_DeleteCreateBecomesModify(t *testing.T) {
	d := newDebouncer(20*time.Millisecond, 4)
	defer d.stop()

	// Editors that replace files emit delete+create back to back.
	d.add(Change{Path: "a.md", Op: OpDelete})
	d.add(Change{Path: "a.md", Op: OpCreate})

	batch := receiveBatch(t, d)
	assert.Equal(t, []Change{{Path: "a.md", Op: OpModify}}, batch)
}

func TestDebouncer_ModifyDeleteBecomesDelete(t *testing.T) {
	d := newDebouncer(20*time.Millisecond, 4)
	defer d.stop()

	d.add(Change{Path: "a.md", Op: OpModify})
	d.add(Change{Path: "a.md", Op: OpDelete})

	batch := receiveBatch(t, d)
	assert.Equal(t, []Change{{Path: "a.md", Op: OpDelete}}, batch)
}

func TestDebouncer_BatchesAcrossPaths(t *testing.T) {
	d := newDebouncer(20*time.Millisecond, 4)
	defer d.stop()

	d.add(Change{Path: "a.md", Op: OpCreate})
	d.add(Change{Path: "b.md", Op: OpModify})

	batch := receiveBatch(t, d)
	assert.ElementsMatch(t, []Change{
		{Path: "a.md", Op: OpCreate},
		{Path: "b.md", Op: OpModify},
	}, batch)
}

func TestDebouncer_StopClosesOutput(t *testing.T) {
	d := newDebouncer(20*time.Millisecond, 4)
	d.add(Change{Path: "a.md", Op: OpCreate})
	d.stop()
	d.stop() // idempotent

	// Adds after stop are dropped without panicking on the closed channel.
	d.add(Change{Path: "b.md", Op: OpCreate})

	_, open := <-d.output()
	assert.False(t, open)
}

func TestOpString(t *testing.T) {
	require.Equal(t, "create", OpCreate.String())
	require.Equal(t, "modify", OpModify.String())
	require.Equal(t, "delete", OpDelete.String())
	require.Equal(t, "rename", OpRename.String())
}
