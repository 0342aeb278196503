// Package watcher observes a directory tree and emits debounced batches
// of file changes. It backs `spall sync --watch`: each batch triggers a
// rescan of the watched directory.
package watcher

import (
	"context"
	"time"
)

// Op is a coarse classification of a file change.
type Op int

const (
	OpCreate Op = iota
	OpModify
	OpDelete
	OpRename
)

func (op Op) String() string {
	switch op {
	case OpCreate:
		return "create"
	case OpModify:
		return "modify"
	case OpDelete:
		return "delete"
	case OpRename:
		return "rename"
	default:
		return "unknown"
	}
}

// Change is one debounced file event, path relative to the watch root.
type Change struct {
	Path string
	Op   Op
}

// Options configures a Watcher.
type Options struct {
	// DebounceWindow is how long to coalesce events before emitting a
	// batch. Default 200ms.
	DebounceWindow time.Duration

	// BufferSize is the batch channel capacity. Default 64.
	BufferSize int
}

func (o Options) withDefaults() Options {
	if o.DebounceWindow == 0 {
		o.DebounceWindow = 200 * time.Millisecond
	}
	if o.BufferSize == 0 {
		o.BufferSize = 64
	}
	return o
}

// Watcher emits batches of coalesced changes under a root directory.
type Watcher interface {
	Start(ctx context.Context, root string) error
	Stop() error
	Batches() <-chan []Change
	Errors() <-chan error
}
