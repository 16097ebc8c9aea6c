package engine

import (
	"context"
	"log/slog"

	"github.com/roach88/patchwork/internal/ir"
	"github.com/roach88/patchwork/internal/reconcile"
	"github.com/roach88/patchwork/internal/store"
)

// journal records component lifecycle events in the store. It implements
// reconcile.Observer. Write failures are logged and counted; they never
// fail a resolution.
type journal struct {
	store  *store.Store
	clock  Sequencer
	logger *slog.Logger
	run    store.Run

	started bool
	dropped int
}

func (j *journal) enabled() bool {
	return j != nil && j.store != nil
}

// begin writes the run record on first use.
func (j *journal) begin(ctx context.Context) bool {
	if !j.enabled() {
		return false
	}
	if j.started {
		return true
	}
	if j.run.Seq == 0 {
		j.run.Seq = j.clock.Next()
	}
	if err := j.store.WriteRun(ctx, j.run); err != nil {
		j.drop("run", err)
		return false
	}
	j.started = true
	return true
}

func (j *journal) event(ctx context.Context, ev Event) {
	if !j.begin(ctx) {
		return
	}
	err := j.store.WriteEvent(ctx, store.Event{
		RunID:      j.run.ID,
		Seq:        j.clock.Next(),
		Kind:       store.EventKind(ev.Type.String()),
		Component:  ev.Component,
		Attributes: ev.Attributes,
		Names:      ev.Names,
	})
	if err != nil {
		j.drop("event", err)
	}
}

// Resolved implements reconcile.Observer.
func (j *journal) Resolved(r reconcile.Resolution) {
	ctx := context.Background()
	if !j.begin(ctx) {
		return
	}
	err := j.store.WriteResolution(ctx, store.Resolution{
		RunID:       j.run.ID,
		Seq:         j.clock.Next(),
		Component:   r.Component,
		Kind:        string(r.Kind),
		Decision:    r.Decision.String(),
		Attributes:  r.Decision.Attributes.Names(),
		Fingerprint: r.Fingerprint,
		Builds:      r.Builds,
		Patches:     r.Patches,
	})
	if err != nil {
		j.drop("resolution", err)
	}
}

// Failed implements reconcile.Observer.
func (j *journal) Failed(component string, kind reconcile.TypeID, err error) {
	ctx := context.Background()
	if !j.begin(ctx) {
		return
	}
	werr := j.store.WriteFailure(ctx, store.Failure{
		RunID:     j.run.ID,
		Seq:       j.clock.Next(),
		Component: component,
		Kind:      string(kind),
		Error:     err.Error(),
	})
	if werr != nil {
		j.drop("failure", werr)
	}
}

// Subscribed implements reconcile.Observer.
func (j *journal) Subscribed(owner string, dep reconcile.Dependency, subscriptionID string) {
	ctx := context.Background()
	if !j.begin(ctx) {
		return
	}
	err := j.store.WriteSubscribed(ctx, store.Subscription{
		ID:            subscriptionID,
		RunID:         j.run.ID,
		Owner:         owner,
		Slot:          dep.Slot,
		Target:        dep.TargetName(),
		SubscribedSeq: j.clock.Next(),
	})
	if err != nil {
		j.drop("subscribed", err)
	}
}

// Released implements reconcile.Observer.
func (j *journal) Released(owner string, dep reconcile.Dependency, subscriptionID string) {
	ctx := context.Background()
	if !j.begin(ctx) {
		return
	}
	if err := j.store.WriteReleased(ctx, subscriptionID, j.clock.Next()); err != nil {
		j.drop("released", err)
	}
}

func (j *journal) drop(record string, err error) {
	j.dropped++
	j.logger.Warn("journal write failed", "record", record, "run", j.run.ID, "error", err)
}

// sceneRun builds the run record for a scene.
func sceneRun(id string, scene *ir.SceneDef) store.Run {
	run := store.Run{ID: id, EngineVersion: ir.EngineVersion, IRVersion: ir.SchemaVersion}
	if scene != nil {
		if h, err := ir.SceneFingerprint(scene); err == nil {
			run.SceneHash = h
		}
	}
	return run
}
