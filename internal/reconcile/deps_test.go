package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDependencyManager_SyncDiffs(t *testing.T) {
	a, b := newFakeResource("a"), newFakeResource("b")
	var fired []string
	m := NewDependencyManager("owner", func(slot string, target Source) {
		fired = append(fired, slot+":"+target.SourceName())
	}, nil)

	added, released := m.Sync([]Dependency{{Slot: "map", Target: a}, {Slot: "normal", Target: b}})
	assert.Equal(t, 2, added)
	assert.Equal(t, 0, released)

	added, released = m.Sync([]Dependency{{Slot: "map", Target: a}, {Slot: "normal", Target: b}})
	assert.Equal(t, 0, added, "unchanged edges are kept")
	assert.Equal(t, 0, released)

	added, released = m.Sync([]Dependency{{Slot: "map", Target: b}})
	assert.Equal(t, 1, added)
	assert.Equal(t, 2, released)
	assert.Equal(t, 0, a.signal.Len())
	assert.Equal(t, 1, b.signal.Len())

	b.signal.Fire()
	assert.Equal(t, []string{"map:b"}, fired)
	assert.True(t, m.Current("map", b))
	assert.False(t, m.Current("map", a))
}

func TestDependencyManager_SkipsNilTargets(t *testing.T) {
	m := NewDependencyManager("owner", func(string, Source) {}, nil)

	added, _ := m.Sync([]Dependency{{Slot: "map"}})

	assert.Equal(t, 0, added)
	assert.Equal(t, 0, m.Len())
}

func TestDependencyManager_ReleaseAll(t *testing.T) {
	a, b := newFakeResource("a"), newFakeResource("b")
	obs := &countingObserver{}
	m := NewDependencyManager("owner", func(string, Source) {}, obs)
	m.Sync([]Dependency{{Slot: "normal", Target: b}, {Slot: "map", Target: a}})

	n := m.ReleaseAll()

	assert.Equal(t, 2, n)
	assert.Equal(t, 0, m.Len())
	assert.Equal(t, 0, a.signal.Len()+b.signal.Len())
	assert.Equal(t, []string{"owner.map->a", "owner.normal->b"}, obs.subscribed)
	assert.Equal(t, []string{"owner.map->a", "owner.normal->b"}, obs.released)
}

func TestDependencyManager_ReleaseFromCallback(t *testing.T) {
	a := newFakeResource("a")
	var m *DependencyManager
	m = NewDependencyManager("owner", func(string, Source) {
		m.Sync(nil)
	}, nil)
	m.Sync([]Dependency{{Slot: "map", Target: a}})

	a.signal.Fire()

	assert.Equal(t, 0, m.Len())
	assert.Equal(t, 0, a.signal.Len())
}
