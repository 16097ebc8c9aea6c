package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("store: not found")

// ReadRun returns a run by ID.
func (s *Store) ReadRun(ctx context.Context, id string) (Run, error) {
	var run Run
	err := s.db.QueryRowContext(ctx, `
		SELECT id, scene_hash, engine_version, ir_version, seq
		FROM runs WHERE id = ?
	`, id).Scan(&run.ID, &run.SceneHash, &run.EngineVersion, &run.IRVersion, &run.Seq)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("read run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Run{}, fmt.Errorf("read run %s: %w", id, err)
	}
	return run, nil
}

// ReadRuns returns every run ordered by starting seq, then ID.
func (s *Store) ReadRuns(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, scene_hash, engine_version, ir_version, seq
		FROM runs
		ORDER BY seq ASC, id ASC COLLATE BINARY
	`)
	if err != nil {
		return nil, fmt.Errorf("read runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		var run Run
		if err := rows.Scan(&run.ID, &run.SceneHash, &run.EngineVersion, &run.IRVersion, &run.Seq); err != nil {
			return nil, fmt.Errorf("read runs: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// LatestRun returns the run with the highest starting seq.
func (s *Store) LatestRun(ctx context.Context) (Run, error) {
	runs, err := s.ReadRuns(ctx)
	if err != nil {
		return Run{}, err
	}
	if len(runs) == 0 {
		return Run{}, fmt.Errorf("latest run: %w", ErrNotFound)
	}
	return runs[len(runs)-1], nil
}

// ReadEvents returns a run's events in seq order.
func (s *Store) ReadEvents(ctx context.Context, runID string) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, seq, kind, component, attributes, names
		FROM events
		WHERE run_id = ?
		ORDER BY seq ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("read events: %w", err)
	}
	defer rows.Close()

	events := []Event{}
	for rows.Next() {
		var ev Event
		var kind, attrsJSON, namesJSON string
		if err := rows.Scan(&ev.RunID, &ev.Seq, &kind, &ev.Component, &attrsJSON, &namesJSON); err != nil {
			return nil, fmt.Errorf("read events: %w", err)
		}
		ev.Kind = EventKind(kind)
		if ev.Attributes, err = unmarshalAttributes(attrsJSON); err != nil {
			return nil, fmt.Errorf("read events seq %d: %w", ev.Seq, err)
		}
		if ev.Names, err = unmarshalNames(namesJSON); err != nil {
			return nil, fmt.Errorf("read events seq %d: %w", ev.Seq, err)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// ReadResolutions returns a run's resolutions in seq order. An empty
// component returns every component's.
func (s *Store) ReadResolutions(ctx context.Context, runID, component string) ([]Resolution, error) {
	query := `
		SELECT run_id, seq, component, kind, decision, attributes, fingerprint, builds, patches
		FROM resolutions
		WHERE run_id = ?`
	args := []any{runID}
	if component != "" {
		query += ` AND component = ?`
		args = append(args, component)
	}
	query += ` ORDER BY seq ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("read resolutions: %w", err)
	}
	defer rows.Close()

	out := []Resolution{}
	for rows.Next() {
		var r Resolution
		var attrsJSON string
		if err := rows.Scan(&r.RunID, &r.Seq, &r.Component, &r.Kind, &r.Decision, &attrsJSON, &r.Fingerprint, &r.Builds, &r.Patches); err != nil {
			return nil, fmt.Errorf("read resolutions: %w", err)
		}
		if r.Attributes, err = unmarshalNames(attrsJSON); err != nil {
			return nil, fmt.Errorf("read resolutions seq %d: %w", r.Seq, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ReadSubscriptions returns a run's subscriptions ordered by the seq they
// were created at. An empty owner returns every owner's.
func (s *Store) ReadSubscriptions(ctx context.Context, runID, owner string) ([]Subscription, error) {
	return s.readSubscriptions(ctx, runID, owner, false)
}

// LiveSubscriptions returns subscriptions that have not been released.
func (s *Store) LiveSubscriptions(ctx context.Context, runID, owner string) ([]Subscription, error) {
	return s.readSubscriptions(ctx, runID, owner, true)
}

func (s *Store) readSubscriptions(ctx context.Context, runID, owner string, liveOnly bool) ([]Subscription, error) {
	var where strings.Builder
	where.WriteString("run_id = ?")
	args := []any{runID}
	if owner != "" {
		where.WriteString(" AND owner = ?")
		args = append(args, owner)
	}
	if liveOnly {
		where.WriteString(" AND released_seq IS NULL")
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, run_id, owner, slot, target, subscribed_seq, released_seq
		FROM subscriptions
		WHERE `+where.String()+`
		ORDER BY subscribed_seq ASC, id ASC COLLATE BINARY
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("read subscriptions: %w", err)
	}
	defer rows.Close()

	out := []Subscription{}
	for rows.Next() {
		var sub Subscription
		var released sql.NullInt64
		if err := rows.Scan(&sub.ID, &sub.RunID, &sub.Owner, &sub.Slot, &sub.Target, &sub.SubscribedSeq, &released); err != nil {
			return nil, fmt.Errorf("read subscriptions: %w", err)
		}
		sub.ReleasedSeq = released.Int64
		out = append(out, sub)
	}
	return out, rows.Err()
}

// ReadFailures returns a run's failures in seq order.
func (s *Store) ReadFailures(ctx context.Context, runID string) ([]Failure, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, seq, component, kind, error
		FROM failures
		WHERE run_id = ?
		ORDER BY seq ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("read failures: %w", err)
	}
	defer rows.Close()

	out := []Failure{}
	for rows.Next() {
		var f Failure
		if err := rows.Scan(&f.RunID, &f.Seq, &f.Component, &f.Kind, &f.Error); err != nil {
			return nil, fmt.Errorf("read failures: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// Timeline merges every record of a run into one seq-ordered view. An empty
// component includes all components; otherwise events, resolutions and
// failures of that component plus subscriptions it owns are returned.
func (s *Store) Timeline(ctx context.Context, runID, component string) ([]TimelineEntry, error) {
	filter := ""
	args := []any{runID, runID, runID, runID, runID}
	if component != "" {
		filter = " AND component = ?"
		args = []any{runID, component, runID, component, runID, component, runID, component, runID, component}
	}
	ownerFilter := strings.ReplaceAll(filter, "component", "owner")

	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, 'event:' || kind, component, names
		FROM events WHERE run_id = ?`+filter+`
		UNION ALL
		SELECT seq, decision, component, attributes
		FROM resolutions WHERE run_id = ?`+filter+`
		UNION ALL
		SELECT subscribed_seq, 'subscribed', owner, slot || ' -> ' || target
		FROM subscriptions WHERE run_id = ?`+ownerFilter+`
		UNION ALL
		SELECT released_seq, 'released', owner, slot || ' -> ' || target
		FROM subscriptions WHERE run_id = ?`+ownerFilter+` AND released_seq IS NOT NULL
		UNION ALL
		SELECT seq, 'failure', component, error
		FROM failures WHERE run_id = ?`+filter+`
		ORDER BY 1 ASC, 2 ASC
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("timeline: %w", err)
	}
	defer rows.Close()

	out := []TimelineEntry{}
	for rows.Next() {
		var e TimelineEntry
		if err := rows.Scan(&e.Seq, &e.Type, &e.Component, &e.Detail); err != nil {
			return nil, fmt.Errorf("timeline: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
