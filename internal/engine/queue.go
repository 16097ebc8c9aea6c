package engine

import (
	"sync"

	"github.com/roach88/patchwork/internal/ir"
)

// EventType distinguishes host inputs from posted completions.
type EventType int

const (
	// EventLoad adds a component from its definition.
	EventLoad EventType = iota + 1
	// EventUpdate assigns attribute values on a component.
	EventUpdate
	// EventChanged notifies a component that named attributes changed.
	EventChanged
	// EventTeardown disposes a component and removes it from the table.
	EventTeardown
	// EventLoaded applies a resource load completion.
	EventLoaded
	// EventCall runs a closure on the loop.
	EventCall
)

// String returns the journal name of the event type.
func (t EventType) String() string {
	switch t {
	case EventLoad:
		return "load"
	case EventUpdate:
		return "update"
	case EventChanged:
		return "changed"
	case EventTeardown:
		return "teardown"
	case EventLoaded:
		return "loaded"
	case EventCall:
		return "call"
	default:
		return "unknown"
	}
}

// Event is one unit of work for the loop.
type Event struct {
	Type       EventType
	Component  string
	Attributes ir.Attributes
	Names      []string

	// apply carries the closure of EventLoaded and EventCall.
	apply func()
}

// eventQueue is a thread-safe FIFO queue for events.
//
// The queue is unbounded so fetch goroutines never block posting their
// completions. Enqueue may be called from any goroutine; only the loop
// dequeues.
type eventQueue struct {
	mu     sync.Mutex
	events []Event
	closed bool
	signal chan struct{} // buffered, size 1
}

func newEventQueue() *eventQueue {
	return &eventQueue{
		events: make([]Event, 0, 64),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue adds an event to the back of the queue.
// Returns false if the queue is closed.
func (q *eventQueue) Enqueue(e Event) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	q.events = append(q.events, e)

	// Buffer of 1 coalesces signals.
	select {
	case q.signal <- struct{}{}:
	default:
	}

	return true
}

// TryDequeue removes the front event without blocking.
func (q *eventQueue) TryDequeue() (Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.events) == 0 {
		return Event{}, false
	}

	e := q.events[0]
	// Clear the slot so the closure and attributes can be collected.
	q.events[0] = Event{}
	if len(q.events) == 1 {
		q.events = q.events[:0]
	} else {
		q.events = q.events[1:]
	}
	return e, true
}

// Wait returns a channel that signals when events may be available. It is
// closed when the queue closes.
func (q *eventQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the current queue length.
func (q *eventQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}

// Closed reports whether Close was called.
func (q *eventQueue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Close stops accepting events and wakes waiters. Idempotent.
func (q *eventQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.signal)
}
