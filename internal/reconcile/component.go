package reconcile

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/patchwork/internal/ir"
)

// State is a component's lifecycle state.
type State int

const (
	// StateEmpty means no object has been built yet.
	StateEmpty State = iota
	// StateBuilt means the component holds an object.
	StateBuilt
	// StateDisposed is terminal.
	StateDisposed
)

// String returns the state's name.
func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateBuilt:
		return "built"
	case StateDisposed:
		return "disposed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Stats counts a component's resolutions.
type Stats struct {
	Builds   int
	Patches  int
	Failures int
	Ready    int
}

// Option configures a Component.
type Option func(*Component)

// WithObserver sets the lifecycle observer.
func WithObserver(o Observer) Option {
	return func(c *Component) {
		if o != nil {
			c.observer = o
		}
	}
}

// WithStrictAttributes rejects attributes the kind does not declare.
func WithStrictAttributes() Option {
	return func(c *Component) {
		c.strict = true
	}
}

// WithIDGenerator sets the generator for subscription handle IDs on the
// component's own signals.
func WithIDGenerator(ids IDGenerator) Option {
	return func(c *Component) {
		if ids != nil {
			c.ids = ids
		}
	}
}

// Component is the lazy rebuild cache for one declarative component.
//
// Changes are recorded as pending work and the component is marked dirty;
// nothing is built until Object() is called. Dependents observe the changed
// signal, which fires on the clean→dirty transition, so a dependency cycle
// settles after one round. It fires once more when a resolution succeeds
// after failed attempts, since dependents read no value while it was failing.
type Component struct {
	name     string
	registry *Registry
	kind     *Kind
	attrs    ir.Attributes
	ctx      *Context
	observer Observer
	ids      IDGenerator
	strict   bool
	logger   *slog.Logger

	obj       Object
	builtKind *Kind
	state     State
	dirty     bool
	resolving bool
	failing   bool

	pendingRebuild bool
	pendingPatch   ChangeSet

	deps    *DependencyManager
	changed *Signal
	ready   *Signal
	stats   Stats
}

// New creates a component of the type named by attrs["type"]. The component
// starts dirty with the "init" change pending; the first Object() call
// builds it.
func New(name string, registry *Registry, attrs ir.Attributes, ctx *Context, opts ...Option) (*Component, error) {
	if ctx == nil {
		ctx = &Context{}
	}
	c := &Component{
		name:     name,
		registry: registry,
		ctx:      ctx,
		observer: NopObserver{},
		attrs:    make(ir.Attributes),
		logger:   ctx.logger().With("component", name),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.ids == nil {
		c.ids = &SequentialIDs{Prefix: name}
	}

	folded := foldAttributes(attrs)
	kind, err := c.lookupKind(folded)
	if err != nil {
		return nil, err
	}
	if err := c.checkDeclared(kind, folded); err != nil {
		return nil, err
	}

	c.kind = kind
	c.attrs = folded
	c.changed = NewSignal(name+".changed", c.ids)
	c.ready = NewSignal(name+".ready", c.ids)
	c.deps = NewDependencyManager(name, c.dependencyChanged, c.observer)

	if err := c.Changed(Init); err != nil {
		return nil, err
	}
	return c, nil
}

// Name returns the component's name.
func (c *Component) Name() string { return c.name }

// Kind returns the component's current kind.
func (c *Component) Kind() *Kind { return c.kind }

// State returns the lifecycle state.
func (c *Component) State() State { return c.state }

// Dirty reports whether work is pending.
func (c *Component) Dirty() bool { return c.dirty }

// Stats returns resolution counters.
func (c *Component) Stats() Stats { return c.stats }

// Attributes returns a copy of the current attributes.
func (c *Component) Attributes() ir.Attributes { return c.attrs.Clone() }

// Dependencies returns the live dependency edges.
func (c *Component) Dependencies() []Dependency { return c.deps.Dependencies() }

// Set assigns attribute values and notifies the names whose value actually
// changed. Setting "type" switches the kind; an unknown type rejects the
// whole call and leaves the component untouched.
func (c *Component) Set(attrs ir.Attributes) error {
	if c.state == StateDisposed {
		return ErrDisposed
	}

	folded := foldAttributes(attrs)
	kind := c.kind
	if _, ok := folded[TypeAttribute]; ok {
		k, err := c.lookupKind(folded)
		if err != nil {
			return err
		}
		kind = k
	}
	if err := c.checkDeclared(kind, folded); err != nil {
		return err
	}

	var names []string
	for _, k := range folded.SortedKeys() {
		v := folded[k]
		if old, ok := c.attrs[k]; ok && ir.Equal(old, v) {
			continue
		}
		if _, isNull := v.(ir.Null); isNull {
			if _, had := c.attrs[k]; !had {
				continue
			}
			delete(c.attrs, k)
		} else {
			c.attrs[k] = v
		}
		names = append(names, k)
	}
	c.kind = kind

	return c.Changed(names...)
}

// Changed notifies the component that the named attributes changed. The
// names are classified and arbitrated; the result is recorded as pending
// work and the component is marked dirty. An empty classification is a
// no-op.
func (c *Component) Changed(names ...string) error {
	if c.state == StateDisposed {
		return ErrDisposed
	}

	cs := Classify(c.kind, names)
	if cs.Empty() {
		return nil
	}
	if c.strict {
		for _, n := range cs.Names() {
			if !c.kind.Declares(n) {
				return fmt.Errorf("%w: %s.%s", ErrUnknownAttribute, c.kind.ID, n)
			}
		}
	}

	d := Arbitrate(c.kind, cs)
	c.schedule(d)
	c.logger.Debug("change classified",
		"changes", cs.String(),
		"decision", d.String(),
	)
	return nil
}

// Object returns the component's engine object, resolving pending work
// first. Failed builds return the error and leave the previous object in
// place; the component stays dirty so the next call retries.
func (c *Component) Object() (Object, error) {
	switch {
	case c.state == StateDisposed:
		return nil, ErrDisposed
	case c.resolving:
		if c.state == StateBuilt {
			return c.obj, nil
		}
		return nil, ErrInFlight
	case !c.dirty && c.state == StateBuilt:
		return c.obj, nil
	}
	return c.resolve()
}

// OnReady registers fn to run after every successful resolution.
func (c *Component) OnReady(fn func()) *Subscription {
	return c.ready.Subscribe(fn)
}

// Dispose releases every dependency subscription and the object, then
// notifies dependents. Idempotent.
func (c *Component) Dispose() {
	if c.state == StateDisposed {
		return
	}
	released := c.deps.ReleaseAll()
	if c.obj != nil && c.builtKind != nil && c.builtKind.Dispose != nil {
		c.builtKind.Dispose(c.obj)
	}
	c.obj = nil
	c.state = StateDisposed
	c.dirty = false
	c.failing = false
	c.pendingRebuild = false
	c.pendingPatch = ChangeSet{}

	c.changed.Fire()
	c.changed.Close()
	c.ready.Close()
	c.logger.Debug("component disposed", "released", released)
}

// SourceName implements Source.
func (c *Component) SourceName() string { return c.name }

// Subscribe implements Source. Dependents are notified when this component
// is invalidated or disposed.
func (c *Component) Subscribe(fn func()) *Subscription {
	return c.changed.Subscribe(fn)
}

// Value implements Source. A failed resolution reports no value.
func (c *Component) Value() (Object, bool) {
	obj, err := c.Object()
	if err != nil || obj == nil {
		return nil, false
	}
	return obj, true
}

// ChangedSignal exposes the invalidation signal for inspection.
func (c *Component) ChangedSignal() *Signal { return c.changed }

// ReadySignal exposes the ready signal for inspection.
func (c *Component) ReadySignal() *Signal { return c.ready }

func (c *Component) schedule(d Decision) {
	if d.Rebuild || c.state != StateBuilt {
		c.pendingRebuild = true
		c.pendingPatch = ChangeSet{}
	} else if !c.pendingRebuild {
		c.pendingPatch.Union(d.Attributes)
	}
	c.markDirty()
}

// markDirty fires the changed signal on the clean→dirty transition, and on
// every change while the last resolution failed.
func (c *Component) markDirty() {
	if c.dirty && !c.failing {
		return
	}
	c.dirty = true
	c.changed.Fire()
}

// dependencyChanged runs when a subscribed source fires. A resource slot
// with a patch function is patched; anything else rebuilds. Notifications
// arriving while this component is resolving are its own doing and are
// dropped.
func (c *Component) dependencyChanged(slot string, target Source) {
	if c.state == StateDisposed || c.resolving {
		return
	}
	if !c.deps.Current(slot, target) {
		return
	}

	_, isComponent := target.(*Component)
	if !isComponent && c.kind.IsPatchable(slot) {
		c.schedule(Decision{Attributes: NewChangeSet(slot)})
	} else {
		c.schedule(rebuildDecision)
	}
	c.logger.Debug("dependency changed", "slot", slot, "target", target.SourceName())
}

func (c *Component) resolve() (Object, error) {
	c.resolving = true
	defer func() { c.resolving = false }()

	decision := Decision{Attributes: c.pendingPatch}
	var err error
	if c.pendingRebuild || c.state != StateBuilt {
		decision = rebuildDecision
		err = c.rebuild()
	} else if perr := c.applyPatches(); perr != nil {
		c.logger.Warn("patch failed, escalating to rebuild", "error", perr)
		decision = rebuildDecision
		err = c.rebuild()
	}

	if err != nil {
		c.stats.Failures++
		c.failing = true
		c.observer.Failed(c.name, c.kind.ID, err)
		c.logger.Error("resolution failed", "kind", c.kind.ID, "error", err)
		return nil, err
	}

	c.dirty = false
	c.pendingRebuild = false
	c.pendingPatch = ChangeSet{}
	c.deps.Sync(c.desiredDependencies())

	fp, fpErr := ir.Fingerprint(c.attrs)
	if fpErr != nil {
		c.logger.Warn("fingerprint failed", "error", fpErr)
	}
	c.observer.Resolved(Resolution{
		Component:   c.name,
		Kind:        c.kind.ID,
		Decision:    decision,
		Fingerprint: fp,
		Builds:      c.stats.Builds,
		Patches:     c.stats.Patches,
	})

	if decision.Rebuild {
		c.logger.Info("component rebuilt", "kind", c.kind.ID, "builds", c.stats.Builds)
	} else {
		c.logger.Debug("component patched", "changes", decision.Attributes.String())
	}

	obj := c.obj
	c.resolving = false
	c.stats.Ready++
	c.ready.Fire()
	if c.failing {
		c.failing = false
		c.changed.Fire()
	}
	return obj, nil
}

// rebuild constructs a replacement object. The previous object stays in
// place until construction succeeds, then it is disposed.
func (c *Component) rebuild() error {
	obj, err := c.kind.Build(c.ctx, c.attrs.Clone())
	if err != nil {
		return &BuildError{Component: c.name, Kind: c.kind.ID, Err: err}
	}
	if obj == nil {
		return &BuildError{Component: c.name, Kind: c.kind.ID, Err: errors.New("builder returned nil object")}
	}

	old, oldKind := c.obj, c.builtKind
	c.obj = obj
	c.builtKind = c.kind
	c.state = StateBuilt
	c.stats.Builds++

	if old != nil && oldKind != nil && oldKind.Dispose != nil {
		oldKind.Dispose(old)
	}
	return nil
}

func (c *Component) applyPatches() error {
	for _, name := range c.pendingPatch.Names() {
		fn := c.kind.Patchable[name]
		if fn == nil {
			return &PatchError{Component: c.name, Attribute: name, Err: errors.New("no patch function")}
		}
		if err := fn(c.ctx, c.obj, c.attrs.Get(name), c.attrs); err != nil {
			return &PatchError{Component: c.name, Attribute: name, Err: err}
		}
	}
	c.stats.Patches++
	return nil
}

// desiredDependencies resolves every set slot to a source. Unresolvable
// values produce no edge.
func (c *Component) desiredDependencies() []Dependency {
	if c.ctx.Resolver == nil {
		return nil
	}
	var deps []Dependency
	for _, slot := range c.kind.Slots {
		v := c.attrs.Get(slot)
		if _, isNull := v.(ir.Null); isNull {
			continue
		}
		src, ok := c.ctx.Resolver.Source(v)
		if !ok {
			continue
		}
		deps = append(deps, Dependency{Slot: slot, Target: src})
	}
	return deps
}

func (c *Component) lookupKind(attrs ir.Attributes) (*Kind, error) {
	typeName, ok := ir.AsString(attrs.Get(TypeAttribute))
	if !ok {
		return nil, fmt.Errorf("%w: %s has no type attribute", ErrUnknownType, c.name)
	}
	return c.registry.Lookup(typeName)
}

func (c *Component) checkDeclared(kind *Kind, attrs ir.Attributes) error {
	if !c.strict {
		return nil
	}
	for _, k := range attrs.SortedKeys() {
		if !kind.Declares(k) {
			return fmt.Errorf("%w: %s.%s", ErrUnknownAttribute, kind.ID, k)
		}
	}
	return nil
}

func foldAttributes(attrs ir.Attributes) ir.Attributes {
	out := make(ir.Attributes, len(attrs))
	for k, v := range attrs {
		out[CanonicalName(k)] = v
	}
	return out
}
