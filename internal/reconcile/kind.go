package reconcile

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/roach88/patchwork/internal/ir"
)

// TypeID identifies a component kind. Registered IDs are canonical
// (see CanonicalName).
type TypeID string

// Object is the opaque engine object a component produces.
type Object any

// BuildFunc constructs a new object from the complete attribute set.
// The attribute map is a private copy.
type BuildFunc func(ctx *Context, attrs ir.Attributes) (Object, error)

// PatchFunc mutates obj in place for one attribute. value is the attribute's
// current value (ir.Null when unset); attrs is the full current set so
// composite attributes can be reassembled from their members. A patch that
// returns an error must leave obj unmodified.
type PatchFunc func(ctx *Context, obj Object, value ir.Value, attrs ir.Attributes) error

// DisposeFunc releases engine resources held by an object that has been
// replaced or torn down.
type DisposeFunc func(obj Object)

// SynonymGroup maps several attribute names to one canonical name. A change
// to any member is reported under the canonical name as well.
type SynonymGroup struct {
	Canonical string
	Members   []string
}

// Kind describes one component type: how to build its object, which
// attributes can be patched, and which attributes name dependencies.
//
// All names must be canonical.
type Kind struct {
	ID TypeID

	// Defaults is the attribute set "init" expands to.
	Defaults []string

	// Synonyms folds alias attribute names into canonical ones.
	Synonyms []SynonymGroup

	// Patchable maps attribute names to in-place mutators. Anything absent
	// forces a rebuild.
	Patchable map[string]PatchFunc

	// Slots are the attributes whose value names a dependency: an ir.Ref
	// for another component, a string for a loaded resource.
	Slots []string

	// Attributes are additional declared attribute names that are neither
	// patchable nor slots. Consulted only in strict mode.
	Attributes []string

	Build   BuildFunc
	Dispose DisposeFunc
}

// IsPatchable reports whether name has a patch function. The reserved
// sentinels are never patchable.
func (k *Kind) IsPatchable(name string) bool {
	if name == Init || name == ClearInit || name == TypeAttribute {
		return false
	}
	_, ok := k.Patchable[name]
	return ok
}

// IsSlot reports whether name is a dependency slot.
func (k *Kind) IsSlot(name string) bool {
	return slices.Contains(k.Slots, name)
}

// Declares reports whether name is known to the kind: the type attribute, a
// reserved sentinel, a default, a slot, a patchable or declared attribute,
// or a synonym canonical or member.
func (k *Kind) Declares(name string) bool {
	switch name {
	case TypeAttribute, Init, ClearInit:
		return true
	}
	if _, ok := k.Patchable[name]; ok {
		return true
	}
	if slices.Contains(k.Slots, name) || slices.Contains(k.Attributes, name) || slices.Contains(k.Defaults, name) {
		return true
	}
	for _, g := range k.Synonyms {
		if g.Canonical == name || slices.Contains(g.Members, name) {
			return true
		}
	}
	return false
}

// synonymOf returns the canonical name of the group name belongs to.
func (k *Kind) synonymOf(name string) (string, bool) {
	for _, g := range k.Synonyms {
		if slices.Contains(g.Members, name) {
			return g.Canonical, true
		}
	}
	return "", false
}

// Registry is the closed table of component kinds. It is populated once at
// startup and read-only afterwards.
type Registry struct {
	kinds map[TypeID]*Kind
	order []TypeID
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{kinds: make(map[TypeID]*Kind)}
}

// Register adds a kind. The ID is canonicalized; registering the same ID
// twice returns ErrDuplicateType.
func (r *Registry) Register(k Kind) error {
	id := TypeID(CanonicalName(string(k.ID)))
	if id == "" {
		return fmt.Errorf("%w: empty type id", ErrInvalidKind)
	}
	if k.Build == nil {
		return fmt.Errorf("%w: %s has no build function", ErrInvalidKind, id)
	}
	if _, exists := r.kinds[id]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateType, id)
	}
	k.ID = id
	r.kinds[id] = &k
	r.order = append(r.order, id)
	return nil
}

// MustRegister is Register that panics on error. Used by static catalogs.
func (r *Registry) MustRegister(kinds ...Kind) *Registry {
	for _, k := range kinds {
		if err := r.Register(k); err != nil {
			panic(err)
		}
	}
	return r
}

// Lookup returns the kind registered under name, compared case-insensitively.
func (r *Registry) Lookup(name string) (*Kind, error) {
	id := TypeID(CanonicalName(name))
	k, ok := r.kinds[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, name)
	}
	return k, nil
}

// Types returns registered type IDs in registration order.
func (r *Registry) Types() []TypeID {
	return slices.Clone(r.order)
}

// Source is something a component can depend on: another component or a
// loaded resource.
type Source interface {
	// SourceName identifies the source in logs and the journal.
	SourceName() string

	// Subscribe registers fn to run when the source changes.
	Subscribe(fn func()) *Subscription

	// Value returns the source's current object. false when it has none.
	Value() (Object, bool)
}

// Resolver maps slot values to sources. An ir.Ref names a component; a
// string names a resource.
type Resolver interface {
	Source(v ir.Value) (Source, bool)
}

// Viewport is the render surface size passed to kinds that depend on it.
type Viewport struct {
	Width      int
	Height     int
	PixelRatio float64
}

// Context is handed to build and patch functions.
type Context struct {
	Resolver Resolver
	Viewport Viewport
	Logger   *slog.Logger
}

// Resolve returns the object behind a slot value. Unset, unknown and not yet
// available sources all report false; builders fall back to their default.
func (c *Context) Resolve(v ir.Value) (Object, bool) {
	if c == nil || c.Resolver == nil {
		return nil, false
	}
	if _, isNull := v.(ir.Null); isNull || v == nil {
		return nil, false
	}
	src, ok := c.Resolver.Source(v)
	if !ok {
		return nil, false
	}
	return src.Value()
}

func (c *Context) logger() *slog.Logger {
	if c == nil || c.Logger == nil {
		return slog.Default()
	}
	return c.Logger
}
