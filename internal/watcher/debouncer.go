package watcher

import (
	"sync"
	"time"
)

// debouncer coalesces rapid events per path before emitting a batch.
// Merge rules:
//   - create then modify = create
//   - create then delete = dropped entirely
//   - modify then delete = delete
//   - delete then create = modify (file was replaced)
type debouncer struct {
	window time.Duration
	out    chan []Change

	mu      sync.Mutex
	pending map[string]*pendingChange
	timer   *time.Timer
	stopped bool
}

type pendingChange struct {
	change  Change
	firstOp Op
}

func newDebouncer(window time.Duration, bufferSize int) *debouncer {
	return &debouncer{
		window:  window,
		out:     make(chan []Change, bufferSize),
		pending: make(map[string]*pendingChange),
	}
}

func (d *debouncer) add(c Change) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}

	if existing, ok := d.pending[c.Path]; ok {
		merged := merge(existing, c)
		if merged == nil {
			delete(d.pending, c.Path)
		} else {
			existing.change = *merged
		}
	} else {
		d.pending[c.Path] = &pendingChange{change: c, firstOp: c.Op}
	}

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.window, d.flush)
}

func merge(existing *pendingChange, next Change) *Change {
	switch existing.firstOp {
	case OpCreate:
		switch next.Op {
		case OpModify:
			return &existing.change
		case OpDelete:
			return nil
		default:
			return &next
		}
	case OpDelete:
		if next.Op == OpCreate {
			next.Op = OpModify
			return &next
		}
		return &next
	default:
		return &next
	}
}

func (d *debouncer) flush() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped || len(d.pending) == 0 {
		return
	}

	batch := make([]Change, 0, len(d.pending))
	for _, pc := range d.pending {
		batch = append(batch, pc.change)
	}
	d.pending = make(map[string]*pendingChange)

	select {
	case d.out <- batch:
	default:
		// Receiver is behind; the next rescan picks the changes up anyway.
	}
}

func (d *debouncer) output() <-chan []Change {
	return d.out
}

func (d *debouncer) stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
	}
	close(d.out)
}
