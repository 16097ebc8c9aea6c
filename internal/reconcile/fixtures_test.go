package reconcile

import (
	"errors"

	"github.com/roach88/patchwork/internal/ir"
)

// widget is the engine object built by the test kinds.
type widget struct {
	serial   int
	kind     TypeID
	attrs    ir.Attributes
	picture  Object
	patched  []string
	disposed bool
}

type fakeResource struct {
	name   string
	signal *Signal
	value  Object
	loaded bool
}

func newFakeResource(name string) *fakeResource {
	return &fakeResource{name: name, signal: NewSignal(name+".ready", &SequentialIDs{Prefix: name})}
}

func (r *fakeResource) SourceName() string                { return r.name }
func (r *fakeResource) Subscribe(fn func()) *Subscription { return r.signal.Subscribe(fn) }
func (r *fakeResource) Value() (Object, bool)             { return r.value, r.loaded }

func (r *fakeResource) complete(v Object) {
	r.value = v
	r.loaded = true
	r.signal.Fire()
}

type mapResolver struct {
	components map[string]*Component
	resources  map[string]*fakeResource
}

func newMapResolver() *mapResolver {
	return &mapResolver{
		components: make(map[string]*Component),
		resources:  make(map[string]*fakeResource),
	}
}

func (m *mapResolver) Source(v ir.Value) (Source, bool) {
	switch val := v.(type) {
	case ir.Ref:
		c, ok := m.components[string(val)]
		if !ok || c.State() == StateDisposed {
			return nil, false
		}
		return c, true
	case ir.String:
		r, ok := m.resources[string(val)]
		if !ok {
			return nil, false
		}
		return r, true
	}
	return nil, false
}

var errBoom = errors.New("boom")

type testKinds struct {
	registry *Registry
	serial   int
}

// newTestKinds registers:
//
//	surface  patchable color, roughness, dimensions(width,height); slot map
//	matte    nothing patchable; slot map
//	picture  patchable src (resource slot)
//	fragile  fails to build while "fail" is true; patchable level fails on negatives
func newTestKinds() *testKinds {
	tk := &testKinds{registry: NewRegistry()}
	build := func(id TypeID) BuildFunc {
		return func(ctx *Context, attrs ir.Attributes) (Object, error) {
			if fail, _ := ir.AsBool(attrs.Get("fail")); fail {
				return nil, errBoom
			}
			tk.serial++
			w := &widget{serial: tk.serial, kind: id, attrs: attrs}
			if obj, ok := ctx.Resolve(attrs.Get("map")); ok {
				w.picture = obj
			}
			if obj, ok := ctx.Resolve(attrs.Get("src")); ok {
				w.picture = obj
			}
			return w, nil
		}
	}
	record := func(name string) PatchFunc {
		return func(ctx *Context, obj Object, value ir.Value, attrs ir.Attributes) error {
			w := obj.(*widget)
			w.patched = append(w.patched, name)
			w.attrs = attrs.Clone()
			return nil
		}
	}
	dispose := func(obj Object) { obj.(*widget).disposed = true }

	tk.registry.MustRegister(
		Kind{
			ID:       "Surface",
			Defaults: []string{"color", "roughness", "map"},
			Synonyms: []SynonymGroup{{Canonical: "dimensions", Members: []string{"width", "height"}}},
			Patchable: map[string]PatchFunc{
				"color":      record("color"),
				"roughness":  record("roughness"),
				"dimensions": record("dimensions"),
			},
			Slots:      []string{"map"},
			Attributes: []string{"fail"},
			Build:      build("surface"),
			Dispose:    dispose,
		},
		Kind{
			ID:       "matte",
			Defaults: []string{"color", "map"},
			Slots:    []string{"map"},
			Build:    build("matte"),
			Dispose:  dispose,
		},
		Kind{
			ID:       "picture",
			Defaults: []string{"src"},
			Patchable: map[string]PatchFunc{
				"src": func(ctx *Context, obj Object, value ir.Value, attrs ir.Attributes) error {
					w := obj.(*widget)
					w.patched = append(w.patched, "src")
					w.picture, _ = ctx.Resolve(value)
					return nil
				},
			},
			Slots:   []string{"src"},
			Build:   build("picture"),
			Dispose: dispose,
		},
		Kind{
			ID:       "fragile",
			Defaults: []string{"level"},
			Patchable: map[string]PatchFunc{
				"level": func(ctx *Context, obj Object, value ir.Value, attrs ir.Attributes) error {
					if n, _ := ir.AsInt(value); n < 0 {
						return errBoom
					}
					return record("level")(ctx, obj, value, attrs)
				},
			},
			Attributes: []string{"fail"},
			Build:      build("fragile"),
			Dispose:    dispose,
		},
	)
	return tk
}

type countingObserver struct {
	resolved   []Resolution
	failed     []error
	subscribed []string
	released   []string
}

func (o *countingObserver) Resolved(r Resolution) { o.resolved = append(o.resolved, r) }
func (o *countingObserver) Failed(_ string, _ TypeID, err error) {
	o.failed = append(o.failed, err)
}
func (o *countingObserver) Subscribed(owner string, dep Dependency, _ string) {
	o.subscribed = append(o.subscribed, owner+"."+dep.Slot+"->"+dep.TargetName())
}
func (o *countingObserver) Released(owner string, dep Dependency, _ string) {
	o.released = append(o.released, owner+"."+dep.Slot+"->"+dep.TargetName())
}

type harness struct {
	kinds    *testKinds
	resolver *mapResolver
	ctx      *Context
	observer *countingObserver
}

func newHarness() *harness {
	r := newMapResolver()
	return &harness{
		kinds:    newTestKinds(),
		resolver: r,
		ctx:      &Context{Resolver: r},
		observer: &countingObserver{},
	}
}

func (h *harness) component(name string, attrs ir.Attributes, opts ...Option) (*Component, error) {
	opts = append([]Option{WithObserver(h.observer)}, opts...)
	c, err := New(name, h.kinds.registry, attrs, h.ctx, opts...)
	if err != nil {
		return nil, err
	}
	h.resolver.components[name] = c
	return c, nil
}

func (h *harness) resource(name string) *fakeResource {
	r := newFakeResource(name)
	h.resolver.resources[name] = r
	return r
}
