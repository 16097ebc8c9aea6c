package engine

import (
	"context"
	"fmt"

	"github.com/roach88/patchwork/internal/ir"
	"github.com/roach88/patchwork/internal/reconcile"
	"github.com/roach88/patchwork/internal/store"
)

// Replay re-applies the host events of a journaled run to a fresh engine
// and checks that every surviving component resolves to the attribute
// fingerprint it last resolved to in the run. Components the run changed
// after their last resolution cannot be checked and are listed as
// unresolved.
//
// Only host inputs (load, update, changed, teardown) are replayed. Load
// completions are regenerated by the fresh engine's own loader, so the
// caller passes the fetcher the run used via opts. Fingerprints cover
// attributes, not objects, so they do not depend on load timing.
func Replay(ctx context.Context, s *store.Store, runID string, registry *reconcile.Registry, opts ...Option) (*ReplayResult, error) {
	run, err := s.ReadRun(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("replay: %w", err)
	}
	events, err := s.ReadEvents(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("replay: %w", err)
	}
	recorded, err := s.ReadResolutions(ctx, runID, "")
	if err != nil {
		return nil, fmt.Errorf("replay: %w", err)
	}

	e := New(registry, opts...)
	defer e.Close()

	result := &ReplayResult{RunID: run.ID}
	for _, ev := range events {
		var ok bool
		switch ev.Kind {
		case store.EventLoad:
			ok = e.Add(ev.Component, ev.Attributes)
		case store.EventUpdate:
			ok = e.Update(ev.Component, ev.Attributes)
		case store.EventChanged:
			ok = e.Notify(ev.Component, ev.Names...)
		case store.EventTeardown:
			ok = e.Remove(ev.Component)
		default:
			continue
		}
		if !ok {
			return nil, fmt.Errorf("replay: engine closed at seq %d", ev.Seq)
		}
		result.Events++
		// Event errors were journaled as part of the original run too; they
		// are expected to repeat and are not a divergence.
		_ = e.Drain(ctx)
	}
	_ = e.Settle(ctx)
	_ = e.ResolveAll()

	last := make(map[string]store.Resolution)
	for _, r := range recorded {
		last[r.Component] = r
	}
	lastInput := make(map[string]int64)
	for _, ev := range events {
		lastInput[ev.Component] = ev.Seq
	}
	for _, name := range e.Names() {
		c, _ := e.Component(name)
		fp, err := ir.Fingerprint(c.Attributes())
		if err != nil {
			return nil, fmt.Errorf("replay: fingerprint %s: %w", name, err)
		}
		result.Components++
		want, ok := last[name]
		if !ok || want.Seq < lastInput[name] {
			// The run changed the component after its last resolution.
			result.Unresolved = append(result.Unresolved, name)
			continue
		}
		if want.Fingerprint != fp {
			result.Mismatches = append(result.Mismatches, Mismatch{
				Component: name,
				Recorded:  want.Fingerprint,
				Replayed:  fp,
			})
		}
	}
	return result, nil
}

// ReplayResult summarizes a replay.
type ReplayResult struct {
	RunID      string     `json:"run_id"`
	Events     int        `json:"events"`
	Components int        `json:"components"`
	Mismatches []Mismatch `json:"mismatches,omitempty"`
	Unresolved []string   `json:"unresolved,omitempty"`
}

// Identical reports whether every component matched its journal.
func (r *ReplayResult) Identical() bool {
	return len(r.Mismatches) == 0
}

// Mismatch is a component whose replayed fingerprint differs from the one
// in the journal.
type Mismatch struct {
	Component string `json:"component"`
	Recorded  string `json:"recorded"`
	Replayed  string `json:"replayed"`
}
