package events

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBus_Publish(t *testing.T) {
	t.Run("delivers to every listener", func(t *testing.T) {
		bus := NewBus()
		var got []Kind
		var mu sync.Mutex

		for i := 0; i < 3; i++ {
			bus.Subscribe(func(e Event) {
				mu.Lock()
				got = append(got, e.Kind)
				mu.Unlock()
			})
		}

		bus.Publish(Event{Kind: KindWrite})

		assert.Equal(t, []Kind{KindWrite, KindWrite, KindWrite}, got)
	})

	t.Run("panicking listener does not stop delivery", func(t *testing.T) {
		bus := NewBus()
		var calls atomic.Int32

		bus.Subscribe(func(Event) { calls.Add(1) })
		bus.Subscribe(func(Event) { panic("boom") })
		bus.Subscribe(func(Event) { calls.Add(1) })

		assert.NotPanics(t, func() {
			bus.Publish(Event{Kind: KindReset})
		})
		assert.Equal(t, int32(2), calls.Load())
	})

	t.Run("late subscriber misses earlier events", func(t *testing.T) {
		bus := NewBus()
		bus.Publish(Event{Kind: KindInit})

		var calls int
		bus.Subscribe(func(Event) { calls++ })
		assert.Equal(t, 0, calls)

		bus.Publish(Event{Kind: KindWrite})
		assert.Equal(t, 1, calls)
	})

	t.Run("listener added during publish waits for the next event", func(t *testing.T) {
		bus := NewBus()
		var inner int
		bus.Subscribe(func(Event) {
			bus.Subscribe(func(Event) { inner++ })
		})

		bus.Publish(Event{Kind: KindWrite})
		assert.Equal(t, 0, inner)
		assert.Equal(t, 2, bus.Len())
	})

	t.Run("nil bus is a no-op", func(t *testing.T) {
		var bus *Bus
		assert.NotPanics(t, func() {
			bus.Publish(Event{Kind: KindWrite})
		})
		assert.Equal(t, 0, bus.Len())
	})
}

func TestBus_Subscribe(t *testing.T) {
	t.Run("unsubscribe removes only its own listener", func(t *testing.T) {
		bus := NewBus()
		var a, b int
		unsubA := bus.Subscribe(func(Event) { a++ })
		bus.Subscribe(func(Event) { b++ })

		unsubA()
		bus.Publish(Event{Kind: KindWrite})

		assert.Equal(t, 0, a)
		assert.Equal(t, 1, b)
	})

	t.Run("unsubscribe is idempotent", func(t *testing.T) {
		bus := NewBus()
		unsub := bus.Subscribe(func(Event) {})
		bus.Subscribe(func(Event) {})

		unsub()
		unsub()
		assert.Equal(t, 1, bus.Len())
	})

	t.Run("same function subscribed twice is called twice", func(t *testing.T) {
		bus := NewBus()
		var calls int
		l := func(Event) { calls++ }
		unsub1 := bus.Subscribe(l)
		bus.Subscribe(l)

		bus.Publish(Event{Kind: KindWrite})
		assert.Equal(t, 2, calls)

		unsub1()
		bus.Publish(Event{Kind: KindWrite})
		assert.Equal(t, 3, calls)
	})

	t.Run("nil listener is ignored", func(t *testing.T) {
		bus := NewBus()
		unsub := bus.Subscribe(nil)
		unsub()
		assert.Equal(t, 0, bus.Len())
	})
}

func TestBus_ConcurrentUse(t *testing.T) {
	bus := NewBus()
	var delivered atomic.Int64
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unsub := bus.Subscribe(func(Event) { delivered.Add(1) })
			bus.Publish(Event{Kind: KindWrite})
			unsub()
		}()
	}
	wg.Wait()

	assert.Equal(t, 0, bus.Len())
	assert.GreaterOrEqual(t, delivered.Load(), int64(20))
}
