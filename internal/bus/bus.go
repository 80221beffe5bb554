// Package bus provides the in-process change bus used to signal that
// notification data may have changed. It carries no payload: every
// emission means "please re-aggregate from scratch", never an
// incremental patch.
package bus

import "sync"

// Bus is a process-wide publish/subscribe channel. A Bus is created
// once during wiring and passed to every component that needs it;
// there is no package-level instance.
type Bus struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]func()
}

// New creates an empty Bus.
func New() *Bus {
	return &Bus{subs: make(map[int]func())}
}

// Subscribe registers fn to be invoked on every emission and returns
// an unsubscribe function. Unsubscribing twice is a no-op. A callback
// unsubscribed while an emission is in flight may still be invoked at
// most once more for that emission.
func (b *Bus) Subscribe(fn func()) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	b.subs[id] = fn

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subs, id)
	}
}

// Emit invokes every registered subscriber. Emitting with zero
// subscribers is a no-op. Subscribers run outside the lock so they may
// subscribe or unsubscribe freely; the set invoked is a snapshot taken
// at the start of the emission.
func (b *Bus) Emit() {
	b.mu.Lock()
	fns := make([]func(), 0, len(b.subs))
	for _, fn := range b.subs {
		fns = append(fns, fn)
	}
	b.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}
