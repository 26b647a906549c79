// Package events is the in-process change notification channel for the
// diary store.
//
// The store publishes an Event after it becomes ready (KindInit), after every
// successful write (KindWrite) and when its connection is reset (KindReset).
// Anything that caches entries, such as an open SSE stream, subscribes and
// refreshes on each event.
//
// # Usage
//
//	bus := events.NewBus()
//	unsubscribe := bus.Subscribe(func(e events.Event) {
//		log.Printf("store changed: %s", e.Kind)
//	})
//	defer unsubscribe()
package events

import (
	"log"
	"runtime/debug"
	"sync"
)

// Kind tags a change event.
type Kind string

const (
	KindInit  Kind = "init"
	KindWrite Kind = "write"
	KindReset Kind = "reset"
)

// Event is a store lifecycle notification. It carries no payload.
type Event struct {
	Kind Kind `json:"type"`
}

// Listener receives events synchronously on the publisher's goroutine.
// Listeners must not block; hand work off to a channel instead.
type Listener func(Event)

// Bus fans events out to registered listeners.
// The zero value is not usable; call NewBus. A nil *Bus drops all events.
type Bus struct {
	mu        sync.RWMutex
	nextID    uint64
	listeners map[uint64]Listener
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{
		listeners: make(map[uint64]Listener),
	}
}

// Subscribe registers l and returns a func that removes it.
// Calling the returned func more than once is harmless.
func (b *Bus) Subscribe(l Listener) (unsubscribe func()) {
	if l == nil {
		return func() {}
	}

	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.listeners[id] = l
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.listeners, id)
			b.mu.Unlock()
		})
	}
}

// Publish delivers e to every listener registered at the time of the call and
// returns once all of them have run. A panicking listener is logged and
// skipped.
func (b *Bus) Publish(e Event) {
	if b == nil {
		return
	}

	b.mu.RLock()
	snapshot := make([]Listener, 0, len(b.listeners))
	for _, l := range b.listeners {
		snapshot = append(snapshot, l)
	}
	b.mu.RUnlock()

	for _, l := range snapshot {
		deliver(l, e)
	}
}

// Len returns the number of registered listeners.
func (b *Bus) Len() int {
	if b == nil {
		return 0
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners)
}

func deliver(l Listener, e Event) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[events] listener panicked on %q event: %v\n%s", e.Kind, r, debug.Stack())
		}
	}()
	l(e)
}
