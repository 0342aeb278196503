// Package reqctx carries per-request cancellation state through the
// indexing pipeline.
package reqctx

import (
	"runtime"
	"sync/atomic"

	"github.com/spall-labs/spall/internal/errors"
)

// DefaultYieldEvery is how many checkpoint iterations pass between
// cooperative yields.
const DefaultYieldEvery = 64

// Context is the cooperative cancellation and yield state for one request.
// Abort may be called from any goroutine; Checkpoint is called by the
// worker at chunk and batch boundaries.
type Context struct {
	aborted atomic.Bool
	iter    atomic.Int64
	every   int64
}

// New creates a request context yielding every `every` checkpoints.
// every <= 0 uses DefaultYieldEvery.
func New(every int) *Context {
	if every <= 0 {
		every = DefaultYieldEvery
	}
	return &Context{every: int64(every)}
}

// Abort marks the context aborted. The in-flight operation observes it at
// its next checkpoint.
func (c *Context) Abort() {
	c.aborted.Store(true)
}

// Aborted reports whether Abort has been called.
func (c *Context) Aborted() bool {
	return c.aborted.Load()
}

// Checkpoint returns a storage.cancelled error if the context is aborted,
// and otherwise yields the processor every N iterations so concurrent
// requests make progress during long indexing runs.
func (c *Context) Checkpoint() error {
	if c.aborted.Load() {
		return errors.Cancelled()
	}
	if c.iter.Add(1)%c.every == 0 {
		runtime.Gosched()
	}
	return nil
}
