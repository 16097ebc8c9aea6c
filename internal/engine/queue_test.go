package engine

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventQueue_FIFO(t *testing.T) {
	q := newEventQueue()

	for _, name := range []string{"a", "b", "c"} {
		require.True(t, q.Enqueue(Event{Type: EventUpdate, Component: name}))
	}
	assert.Equal(t, 3, q.Len())

	for _, want := range []string{"a", "b", "c"} {
		got, ok := q.TryDequeue()
		require.True(t, ok)
		assert.Equal(t, want, got.Component)
	}
	_, ok := q.TryDequeue()
	assert.False(t, ok)
}

func TestEventQueue_CloseRejectsAndWakes(t *testing.T) {
	q := newEventQueue()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for range q.Wait() {
		}
	}()

	q.Close()
	q.Close()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("waiter not woken by Close")
	}
	assert.True(t, q.Closed())
	assert.False(t, q.Enqueue(Event{Type: EventUpdate}))
}

func TestEventQueue_ConcurrentEnqueue(t *testing.T) {
	q := newEventQueue()
	const producers, each = 10, 100

	var wg sync.WaitGroup
	for i := 0; i < producers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < each; j++ {
				q.Enqueue(Event{Type: EventLoaded})
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, producers*each, q.Len())
}

func TestEventType_String(t *testing.T) {
	tests := map[EventType]string{
		EventLoad:     "load",
		EventUpdate:   "update",
		EventChanged:  "changed",
		EventTeardown: "teardown",
		EventLoaded:   "loaded",
		EventCall:     "call",
		EventType(99): "unknown",
	}
	for typ, want := range tests {
		assert.Equal(t, want, typ.String())
	}
}
