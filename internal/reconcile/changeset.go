package reconcile

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Reserved attribute names.
const (
	// Init expands to the kind's full default attribute set.
	Init = "init"

	// ClearInit forces an unconditional rebuild.
	ClearInit = "clearinit"

	// TypeAttribute holds the component's type identifier.
	TypeAttribute = "type"
)

// CanonicalName folds an attribute or type name into its canonical form:
// surrounding whitespace trimmed, Unicode case folded, NFC normalized.
//
// A fresh Caser is used per call; cases.Caser is stateful.
func CanonicalName(name string) string {
	return norm.NFC.String(cases.Fold().String(strings.TrimSpace(name)))
}

// ChangeSet is an ordered set of canonical attribute names.
// The zero value is an empty set ready to use.
type ChangeSet struct {
	names []string
	index map[string]struct{}
}

// NewChangeSet builds a set from names that are already canonical.
// Duplicates keep their first position.
func NewChangeSet(names ...string) ChangeSet {
	var cs ChangeSet
	for _, n := range names {
		cs.Add(n)
	}
	return cs
}

// Add inserts name if absent. Returns true if the set grew.
func (cs *ChangeSet) Add(name string) bool {
	if cs.index == nil {
		cs.index = make(map[string]struct{})
	}
	if _, ok := cs.index[name]; ok {
		return false
	}
	cs.index[name] = struct{}{}
	cs.names = append(cs.names, name)
	return true
}

// Union adds every member of other, preserving other's order for new names.
func (cs *ChangeSet) Union(other ChangeSet) {
	for _, n := range other.names {
		cs.Add(n)
	}
}

// Has reports membership.
func (cs ChangeSet) Has(name string) bool {
	_, ok := cs.index[name]
	return ok
}

// Len returns the number of names.
func (cs ChangeSet) Len() int {
	return len(cs.names)
}

// Empty reports whether the set has no names.
func (cs ChangeSet) Empty() bool {
	return len(cs.names) == 0
}

// Names returns a copy of the names in insertion order.
func (cs ChangeSet) Names() []string {
	out := make([]string, len(cs.names))
	copy(out, cs.names)
	return out
}

// String renders the set as a comma separated list.
func (cs ChangeSet) String() string {
	return strings.Join(cs.names, ",")
}

// Classify normalizes a raw change notification into a canonical ChangeSet.
//
// Rules, applied in order:
//  1. Every name is canonicalized; empty names are dropped; duplicates keep
//     their first position.
//  2. If Init is present, the kind's Defaults are added.
//  3. For every synonym group with at least one member present, the group's
//     canonical name is added.
//
// Unknown names pass through untouched; the arbiter treats them as
// unpatchable. A nil kind skips steps 2 and 3.
func Classify(kind *Kind, raw []string) ChangeSet {
	var cs ChangeSet
	for _, r := range raw {
		if n := CanonicalName(r); n != "" {
			cs.Add(n)
		}
	}

	if kind == nil {
		return cs
	}

	if cs.Has(Init) {
		for _, d := range kind.Defaults {
			cs.Add(d)
		}
	}

	for _, group := range kind.Synonyms {
		for _, member := range group.Members {
			if cs.Has(member) {
				cs.Add(group.Canonical)
				break
			}
		}
	}

	return cs
}
