package reconcile

import (
	"slices"
)

// Dependency is one desired edge from an owner slot to a source.
type Dependency struct {
	Slot   string
	Target Source
}

// TargetName returns the target's source name.
func (d Dependency) TargetName() string {
	if d.Target == nil {
		return ""
	}
	return d.Target.SourceName()
}

type edge struct {
	dep Dependency
	sub *Subscription
}

// DependencyManager keeps an owner's live subscriptions equal to its current
// set of resolved slot values. At most one subscription exists per slot.
type DependencyManager struct {
	owner    string
	onChange func(slot string, target Source)
	observer Observer
	edges    map[string]*edge
}

// NewDependencyManager creates a manager for owner. onChange runs when a
// subscribed target fires.
func NewDependencyManager(owner string, onChange func(slot string, target Source), observer Observer) *DependencyManager {
	if observer == nil {
		observer = NopObserver{}
	}
	return &DependencyManager{
		owner:    owner,
		onChange: onChange,
		observer: observer,
		edges:    make(map[string]*edge),
	}
}

// Sync diffs desired against the current edges. Unchanged edges are kept,
// removed or retargeted edges are released, new edges are subscribed.
// Returns the number of subscriptions added and released.
//
// The diff is computed over a snapshot, and releases happen before
// subscribes, so a callback that fires during Sync sees a consistent set.
func (m *DependencyManager) Sync(desired []Dependency) (added, released int) {
	want := make(map[string]Dependency, len(desired))
	for _, d := range desired {
		if d.Target == nil {
			continue
		}
		want[d.Slot] = d
	}

	current := make(map[string]*edge, len(m.edges))
	for slot, e := range m.edges {
		current[slot] = e
	}

	for _, slot := range sortedKeys(current) {
		e := current[slot]
		if d, ok := want[slot]; ok && d.Target == e.dep.Target {
			continue
		}
		m.release(slot, e)
		released++
	}

	for _, slot := range sortedKeys(want) {
		if _, ok := m.edges[slot]; ok {
			continue
		}
		m.subscribe(want[slot])
		added++
	}
	return added, released
}

// ReleaseAll drops every subscription.
func (m *DependencyManager) ReleaseAll() int {
	n := 0
	for _, slot := range sortedKeys(m.edges) {
		m.release(slot, m.edges[slot])
		n++
	}
	return n
}

// Len returns the number of live subscriptions.
func (m *DependencyManager) Len() int {
	return len(m.edges)
}

// Current reports whether slot is subscribed to target.
func (m *DependencyManager) Current(slot string, target Source) bool {
	e, ok := m.edges[slot]
	return ok && e.dep.Target == target
}

// Dependencies returns the live edges sorted by slot.
func (m *DependencyManager) Dependencies() []Dependency {
	out := make([]Dependency, 0, len(m.edges))
	for _, slot := range sortedKeys(m.edges) {
		out = append(out, m.edges[slot].dep)
	}
	return out
}

func (m *DependencyManager) subscribe(d Dependency) {
	slot, target := d.Slot, d.Target
	sub := target.Subscribe(func() {
		m.onChange(slot, target)
	})
	m.edges[slot] = &edge{dep: d, sub: sub}
	m.observer.Subscribed(m.owner, d, sub.ID())
}

func (m *DependencyManager) release(slot string, e *edge) {
	delete(m.edges, slot)
	e.sub.Release()
	m.observer.Released(m.owner, e.dep, e.sub.ID())
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
