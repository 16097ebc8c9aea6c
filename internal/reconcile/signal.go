package reconcile

import (
	"fmt"
	"slices"
)

// IDGenerator produces subscription handle IDs.
type IDGenerator interface {
	Generate() string
}

// SequentialIDs generates "<prefix>-1", "<prefix>-2", ... in order.
type SequentialIDs struct {
	Prefix string
	next   int
}

// Generate returns the next ID.
func (g *SequentialIDs) Generate() string {
	g.next++
	prefix := g.Prefix
	if prefix == "" {
		prefix = "sub"
	}
	return fmt.Sprintf("%s-%d", prefix, g.next)
}

// Subscription is the handle returned by Signal.Subscribe.
type Subscription struct {
	id     string
	signal *Signal
	fn     func()
	live   bool
}

// ID returns the handle's identifier.
func (s *Subscription) ID() string {
	return s.id
}

// Live reports whether the subscription has not been released.
func (s *Subscription) Live() bool {
	return s != nil && s.live
}

// Release detaches the callback. Safe to call more than once, and safe to
// call from inside the callback itself.
func (s *Subscription) Release() {
	if s == nil || !s.live {
		return
	}
	s.live = false
	s.signal.remove(s)
}

// Signal is a named notification channel with ordered listeners.
type Signal struct {
	name   string
	ids    IDGenerator
	subs   []*Subscription
	closed bool
	fired  int
}

// NewSignal creates a signal. A nil generator uses SequentialIDs.
func NewSignal(name string, ids IDGenerator) *Signal {
	if ids == nil {
		ids = &SequentialIDs{}
	}
	return &Signal{name: name, ids: ids}
}

// Name returns the signal's name.
func (s *Signal) Name() string {
	return s.name
}

// Subscribe registers fn. Subscribing to a closed signal returns an already
// released handle.
func (s *Signal) Subscribe(fn func()) *Subscription {
	sub := &Subscription{id: s.ids.Generate(), signal: s, fn: fn}
	if s.closed {
		return sub
	}
	sub.live = true
	s.subs = append(s.subs, sub)
	return sub
}

// Fire notifies listeners in subscription order and returns how many ran.
// Iteration is over a snapshot: listeners added during Fire are not called,
// listeners released during Fire are skipped.
func (s *Signal) Fire() int {
	if s.closed {
		return 0
	}
	s.fired++
	snapshot := slices.Clone(s.subs)
	n := 0
	for _, sub := range snapshot {
		if !sub.live {
			continue
		}
		sub.fn()
		n++
	}
	return n
}

// Len returns the number of live listeners.
func (s *Signal) Len() int {
	return len(s.subs)
}

// Fired returns how many times Fire ran on the open signal.
func (s *Signal) Fired() int {
	return s.fired
}

// Close releases every listener; later Subscribe and Fire calls are no-ops.
func (s *Signal) Close() {
	if s.closed {
		return
	}
	for _, sub := range slices.Clone(s.subs) {
		sub.Release()
	}
	s.closed = true
}

func (s *Signal) remove(sub *Subscription) {
	s.subs = slices.DeleteFunc(s.subs, func(x *Subscription) bool { return x == sub })
}
