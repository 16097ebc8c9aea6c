package store

import (
	"context"
	"fmt"
)

// WriteRun records the start of an engine run.
// Uses ON CONFLICT(id) DO NOTHING so reopening a run is idempotent.
func (s *Store) WriteRun(ctx context.Context, run Run) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, scene_hash, engine_version, ir_version, seq)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, run.ID, run.SceneHash, run.EngineVersion, run.IRVersion, run.Seq)
	if err != nil {
		return fmt.Errorf("write run: %w", err)
	}
	return nil
}

// WriteEvent appends a host event. Attributes and names are stored as
// canonical JSON.
func (s *Store) WriteEvent(ctx context.Context, ev Event) error {
	attrsJSON, err := marshalAttributes(ev.Attributes)
	if err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	namesJSON, err := marshalNames(ev.Names)
	if err != nil {
		return fmt.Errorf("write event: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO events (run_id, seq, kind, component, attributes, names)
		VALUES (?, ?, ?, ?, ?, ?)
	`, ev.RunID, ev.Seq, string(ev.Kind), ev.Component, attrsJSON, namesJSON)
	if err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	return nil
}

// WriteResolution appends a successful patch or rebuild.
func (s *Store) WriteResolution(ctx context.Context, r Resolution) error {
	attrsJSON, err := marshalNames(r.Attributes)
	if err != nil {
		return fmt.Errorf("write resolution: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO resolutions
		(run_id, seq, component, kind, decision, attributes, fingerprint, builds, patches)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, r.RunID, r.Seq, r.Component, r.Kind, r.Decision, attrsJSON, r.Fingerprint, r.Builds, r.Patches)
	if err != nil {
		return fmt.Errorf("write resolution: %w", err)
	}
	return nil
}

// WriteSubscribed records a new dependency edge.
func (s *Store) WriteSubscribed(ctx context.Context, sub Subscription) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO subscriptions (id, run_id, owner, slot, target, subscribed_seq)
		VALUES (?, ?, ?, ?, ?, ?)
	`, sub.ID, sub.RunID, sub.Owner, sub.Slot, sub.Target, sub.SubscribedSeq)
	if err != nil {
		return fmt.Errorf("write subscribed: %w", err)
	}
	return nil
}

// WriteReleased stamps a subscription's release. Releasing twice keeps the
// first seq, mirroring the idempotent in-memory release.
func (s *Store) WriteReleased(ctx context.Context, id string, seq int64) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE subscriptions SET released_seq = ?
		WHERE id = ? AND released_seq IS NULL
	`, seq, id)
	if err != nil {
		return fmt.Errorf("write released: %w", err)
	}
	if _, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("write released: %w", err)
	}
	return nil
}

// WriteFailure appends a build failure.
func (s *Store) WriteFailure(ctx context.Context, f Failure) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO failures (run_id, seq, component, kind, error)
		VALUES (?, ?, ?, ?, ?)
	`, f.RunID, f.Seq, f.Component, f.Kind, f.Error)
	if err != nil {
		return fmt.Errorf("write failure: %w", err)
	}
	return nil
}
