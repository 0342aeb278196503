package daemon

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func waitFired(t *testing.T, fired <-chan struct{}) {
	t.Helper()
	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("idle timer never fired")
	}
}

func assertNotFired(t *testing.T, fired <-chan struct{}, within time.Duration) {
	t.Helper()
	select {
	case <-fired:
		t.Fatal("idle timer fired while active")
	case <-time.After(within):
	}
}

func TestIdleTracker_FiresWhenIdle(t *testing.T) {
	fired := make(chan struct{})
	tr := newIdleTracker(10*time.Millisecond, false, func() { close(fired) })

	tr.Start()
	waitFired(t, fired)
}

func TestIdleTracker_RequestsHoldTheTimer(t *testing.T) {
	fired := make(chan struct{})
	tr := newIdleTracker(10*time.Millisecond, false, func() { close(fired) })

	tr.Start()
	tr.RequestStarted()
	assertNotFired(t, fired, 50*time.Millisecond)

	reqs, sse := tr.Active()
	assert.Equal(t, 1, reqs)
	assert.Zero(t, sse)

	tr.RequestDone()
	waitFired(t, fired)
}

func TestIdleTracker_StreamsHoldTheTimer(t *testing.T) {
	fired := make(chan struct{})
	tr := newIdleTracker(10*time.Millisecond, false, func() { close(fired) })

	tr.StreamStarted()
	tr.Start()
	assertNotFired(t, fired, 50*time.Millisecond)

	// One stream down, one request up: still busy.
	tr.RequestStarted()
	tr.StreamDone()
	assertNotFired(t, fired, 50*time.Millisecond)

	tr.RequestDone()
	waitFired(t, fired)
}

func TestIdleTracker_PersistNeverFires(t *testing.T) {
	fired := make(chan struct{})
	tr := newIdleTracker(10*time.Millisecond, true, func() { close(fired) })

	tr.Start()
	tr.RequestStarted()
	tr.RequestDone()
	assertNotFired(t, fired, 50*time.Millisecond)
}
