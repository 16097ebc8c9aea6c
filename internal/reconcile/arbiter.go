package reconcile

// Decision is the arbiter's verdict for one ChangeSet.
type Decision struct {
	// Rebuild is true when the object must be reconstructed.
	Rebuild bool

	// Attributes lists the patch functions to run, in order. Synonym members
	// covered by their patchable canonical name are omitted. Empty when
	// Rebuild is true.
	Attributes ChangeSet
}

// String returns "rebuild" or "patch".
func (d Decision) String() string {
	if d.Rebuild {
		return "rebuild"
	}
	return "patch"
}

// rebuildDecision forces reconstruction.
var rebuildDecision = Decision{Rebuild: true}

// Arbitrate decides between Patch and Rebuild for a ChangeSet.
//
// Algorithm:
//  1. ClearInit present → Rebuild.
//  2. Every name patchable by the kind → Patch(names).
//  3. Otherwise → Rebuild.
//
// The test is whole-set. Patch functions are not composable enough to apply
// part of a batch and rebuild the rest, so one unpatchable attribute forces a
// rebuild even when every other member is patchable.
//
// A synonym member counts as covered when its group's canonical name is in
// the set and patchable; the canonical patch reapplies the composite value.
func Arbitrate(kind *Kind, cs ChangeSet) Decision {
	if kind == nil || cs.Has(ClearInit) {
		return rebuildDecision
	}

	var patch ChangeSet
	for _, name := range cs.names {
		if kind.IsPatchable(name) {
			patch.Add(name)
			continue
		}
		if canonical, ok := kind.synonymOf(name); ok && cs.Has(canonical) && kind.IsPatchable(canonical) {
			continue
		}
		return rebuildDecision
	}

	// Members covered by a canonical name are dropped; when both a member and
	// its canonical are individually patchable the canonical patch still runs
	// last so the composite wins.
	return Decision{Attributes: patch}
}
