package bus

import "sync"

// Handler receives a published event. Handlers run synchronously on the
// publisher's goroutine, so a slow handler applies backpressure.
type Handler func(Event)

type subscriber struct {
	id int64
	fn Handler
}

// Bus is a process-wide publish/subscribe channel. The zero value is not
// usable; create with New.
type Bus struct {
	mu     sync.Mutex
	nextID int64
	subs   []subscriber
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{}
}

// Subscribe registers fn and returns an unsubscribe function. Calling the
// unsubscribe function more than once is harmless.
func (b *Bus) Subscribe(fn Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.subs = append(b.subs, subscriber{id: id, fn: fn})

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, s := range b.subs {
			if s.id == id {
				b.subs = append(b.subs[:i], b.subs[i+1:]...)
				return
			}
		}
	}
}

// Publish delivers ev to every current subscriber in insertion order.
// The subscriber list is snapshotted first, so handlers may subscribe or
// unsubscribe during delivery without corrupting the iteration.
func (b *Bus) Publish(ev Event) {
	b.mu.Lock()
	snapshot := make([]subscriber, len(b.subs))
	copy(snapshot, b.subs)
	b.mu.Unlock()

	for _, s := range snapshot {
		s.fn(ev)
	}
}

// Count reports the number of live subscribers.
func (b *Bus) Count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
