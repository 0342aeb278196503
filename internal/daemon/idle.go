package daemon

import (
	"sync"
	"time"
)

// idleTracker counts in-flight HTTP requests and live SSE streams. When
// both reach zero an idle timer starts; if nothing arrives before it
// fires, the shutdown callback runs. Persist mode disables the timer.
type idleTracker struct {
	timeout  time.Duration
	persist  bool
	shutdown func()

	mu       sync.Mutex
	requests int
	sse      int
	timer    *time.Timer
}

func newIdleTracker(timeout time.Duration, persist bool, shutdown func()) *idleTracker {
	return &idleTracker{timeout: timeout, persist: persist, shutdown: shutdown}
}

// Start arms the timer for a freshly started, idle server.
func (t *idleTracker) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.maybeArm()
}

// RequestStarted marks one in-flight request.
func (t *idleTracker) RequestStarted() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.requests++
	t.disarm()
}

// RequestDone releases one in-flight request.
func (t *idleTracker) RequestDone() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.requests--
	t.maybeArm()
}

// StreamStarted marks one live SSE stream.
func (t *idleTracker) StreamStarted() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sse++
	t.disarm()
}

// StreamDone releases one SSE stream.
func (t *idleTracker) StreamDone() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sse--
	t.maybeArm()
}

// Active reports the two counters.
func (t *idleTracker) Active() (requests, sse int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.requests, t.sse
}

// maybeArm starts the idle timer when fully idle. Caller holds mu.
func (t *idleTracker) maybeArm() {
	if t.persist || t.requests > 0 || t.sse > 0 || t.timer != nil {
		return
	}
	t.timer = time.AfterFunc(t.timeout, func() {
		t.mu.Lock()
		idle := t.requests == 0 && t.sse == 0
		t.timer = nil
		t.mu.Unlock()
		if idle {
			t.shutdown()
		}
	})
}

// disarm cancels a pending idle timer. Caller holds mu.
func (t *idleTracker) disarm() {
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}
