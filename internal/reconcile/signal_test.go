package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/patchwork/internal/ir"
)

func TestSignal_FireInOrder(t *testing.T) {
	s := NewSignal("ready", nil)
	var got []int
	s.Subscribe(func() { got = append(got, 1) })
	s.Subscribe(func() { got = append(got, 2) })

	n := s.Fire()

	assert.Equal(t, 2, n)
	assert.Equal(t, []int{1, 2}, got)
	assert.Equal(t, 1, s.Fired())
}

func TestSignal_SubscribeDuringFireNotCalled(t *testing.T) {
	s := NewSignal("ready", nil)
	late := 0
	s.Subscribe(func() {
		s.Subscribe(func() { late++ })
	})

	s.Fire()
	assert.Equal(t, 0, late)
	assert.Equal(t, 2, s.Len())

	s.Fire()
	assert.Equal(t, 1, late)
}

func TestSignal_ReleaseDuringFireSkipsListener(t *testing.T) {
	s := NewSignal("ready", nil)
	var second *Subscription
	calls := 0
	s.Subscribe(func() { second.Release() })
	second = s.Subscribe(func() { calls++ })

	n := s.Fire()

	assert.Equal(t, 1, n)
	assert.Equal(t, 0, calls)
	assert.Equal(t, 1, s.Len())
}

func TestSubscription_ReleaseIdempotent(t *testing.T) {
	s := NewSignal("ready", nil)
	sub := s.Subscribe(func() {})
	other := s.Subscribe(func() {})

	sub.Release()
	sub.Release()

	assert.False(t, sub.Live())
	assert.True(t, other.Live())
	assert.Equal(t, 1, s.Len())

	var nilSub *Subscription
	nilSub.Release()
	assert.False(t, nilSub.Live())
}

func TestSignal_Close(t *testing.T) {
	s := NewSignal("changed", nil)
	sub := s.Subscribe(func() { t.Fatal("closed signal fired") })

	s.Close()
	s.Close()

	assert.False(t, sub.Live())
	assert.Equal(t, 0, s.Fire())
	late := s.Subscribe(func() {})
	assert.False(t, late.Live())
	assert.Equal(t, 0, s.Len())
}

func TestSequentialIDs(t *testing.T) {
	g := &SequentialIDs{Prefix: "mat"}
	assert.Equal(t, "mat-1", g.Generate())
	assert.Equal(t, "mat-2", g.Generate())

	var d SequentialIDs
	assert.Equal(t, "sub-1", d.Generate())
}

func TestRegistry_LookupIsCaseInsensitive(t *testing.T) {
	r := newTestKinds().registry

	k, err := r.Lookup("SURFACE")
	require.NoError(t, err)
	assert.Equal(t, TypeID("surface"), k.ID)

	_, err = r.Lookup("hologram")
	assert.ErrorIs(t, err, ErrUnknownType)

	assert.Equal(t, []TypeID{"surface", "matte", "picture", "fragile"}, r.Types())
}

func TestRegistry_RejectsDuplicatesAndIncompleteKinds(t *testing.T) {
	r := NewRegistry()
	build := func(*Context, ir.Attributes) (Object, error) { return struct{}{}, nil }

	require.NoError(t, r.Register(Kind{ID: "Box", Build: build}))
	assert.ErrorIs(t, r.Register(Kind{ID: "box", Build: build}), ErrDuplicateType)
	assert.ErrorIs(t, r.Register(Kind{ID: "", Build: build}), ErrInvalidKind)
	assert.ErrorIs(t, r.Register(Kind{ID: "nobuild"}), ErrInvalidKind)
	assert.Panics(t, func() { r.MustRegister(Kind{ID: "box", Build: build}) })
}

func TestKind_Declares(t *testing.T) {
	k := surfaceKind(t)

	for _, name := range []string{"type", "init", "clearinit", "color", "map", "width", "dimensions", "fail"} {
		assert.True(t, k.Declares(name), name)
	}
	assert.False(t, k.Declares("sparkle"))
	assert.False(t, k.IsPatchable("init"))
	assert.True(t, k.IsSlot("map"))
}

func TestContext_ResolveWithoutResolver(t *testing.T) {
	var ctx *Context
	_, ok := ctx.Resolve(ir.String("a.png"))
	assert.False(t, ok)

	ctx = &Context{Resolver: newMapResolver()}
	_, ok = ctx.Resolve(ir.Null{})
	assert.False(t, ok)
	_, ok = ctx.Resolve(ir.String("missing.png"))
	assert.False(t, ok)
}
