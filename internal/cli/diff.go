package cli

import (
	"github.com/roach88/patchwork/internal/engine"
	"github.com/roach88/patchwork/internal/ir"
	"github.com/roach88/patchwork/internal/reconcile"
)

// sceneDelta is the host input that turns one compiled scene into another.
type sceneDelta struct {
	Removed []string
	Updated []componentUpdate
	Added   []ir.ComponentDef
}

type componentUpdate struct {
	Name       string
	Attributes ir.Attributes
}

// Empty reports whether the scenes were equivalent.
func (d sceneDelta) Empty() bool {
	return len(d.Removed) == 0 && len(d.Updated) == 0 && len(d.Added) == 0
}

// diffScenes compares two scenes component by component. An attribute that
// disappeared is sent as Null so the engine unsets it; a changed type is
// sent as an ordinary "type" assignment.
func diffScenes(prev, next *ir.SceneDef) sceneDelta {
	var d sceneDelta
	for _, def := range prev.Components {
		if _, ok := next.Lookup(def.Name); !ok {
			d.Removed = append(d.Removed, def.Name)
		}
	}
	for _, def := range next.Components {
		old, ok := prev.Lookup(def.Name)
		if !ok {
			d.Added = append(d.Added, def)
			continue
		}
		changed := ir.Attributes{}
		for _, k := range def.Attributes.SortedKeys() {
			if v, had := old.Attributes[k]; !had || !ir.Equal(v, def.Attributes[k]) {
				changed[k] = def.Attributes[k]
			}
		}
		for _, k := range old.Attributes.SortedKeys() {
			if _, still := def.Attributes[k]; !still {
				changed[k] = ir.Null{}
			}
		}
		if old.Type != def.Type {
			changed[reconcile.TypeAttribute] = ir.String(def.Type)
		}
		if len(changed) > 0 {
			d.Updated = append(d.Updated, componentUpdate{Name: def.Name, Attributes: changed})
		}
	}
	return d
}

// apply queues the delta: removals first so a renamed component's
// referrers fall back before the new one loads.
func (d sceneDelta) apply(eng *engine.Engine) {
	for _, name := range d.Removed {
		eng.Remove(name)
	}
	for _, u := range d.Updated {
		eng.Update(u.Name, u.Attributes)
	}
	if len(d.Added) > 0 {
		eng.Load(&ir.SceneDef{Components: d.Added})
	}
}
