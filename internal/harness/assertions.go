package harness

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/patchwork/internal/engine"
	"github.com/roach88/patchwork/internal/ir"
	"github.com/roach88/patchwork/internal/loader"
	"github.com/roach88/patchwork/internal/reconcile"
	"github.com/roach88/patchwork/internal/store"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type      string       // Assertion type for categorization
	Component string       // Subject component, if any
	Expected  string       // Human-readable expected outcome
	Actual    string       // Human-readable actual outcome
	Trace     []TraceEvent // Subject's timeline for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s", e.Type)
	if e.Component != "" {
		fmt.Fprintf(&buf, " (%s)", e.Component)
	}
	buf.WriteByte('\n')
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nTimeline:\n")
		for _, entry := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s %s %s\n", entry.Seq, entry.Type, entry.Component, entry.Detail)
		}
	}
	return buf.String()
}

// AssertionContext provides what assertions evaluate against.
type AssertionContext struct {
	Ctx      context.Context
	Engine   *engine.Engine
	Store    *store.Store
	Registry *reconcile.Registry
	RunID    string

	// Objects are the objects labelled by get steps.
	Objects map[string]reconcile.Object

	// Fetcher serves assets to a replay engine.
	Fetcher loader.Fetcher
}

// EvaluateAssertions evaluates all assertions against the final state.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errs []string
	for i, a := range assertions {
		var err error
		switch a.Type {
		case AssertSameObject:
			err = assertObjects(a, actx, true)
		case AssertDifferentObject:
			err = assertObjects(a, actx, false)
		case AssertRebuildCount:
			err = assertCounter(result, a, func(s reconcile.Stats) int { return s.Builds })
		case AssertPatchCount:
			err = assertCounter(result, a, func(s reconcile.Stats) int { return s.Patches })
		case AssertReadyCount:
			err = assertCounter(result, a, func(s reconcile.Stats) int { return s.Ready })
		case AssertLiveSubscriptions:
			err = assertLiveSubscriptions(result, a, actx)
		case AssertAttribute:
			err = assertAttribute(a, actx)
		case AssertReplayIdentical:
			err = assertReplayIdentical(actx)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, a.Type)
		}
		if err != nil {
			errs = append(errs, err.Error())
		}
	}
	return errs
}

// assertObjects compares labelled objects by identity.
func assertObjects(a Assertion, actx *AssertionContext, same bool) error {
	first, ok := actx.Objects[a.Objects[0]]
	if !ok {
		return fmt.Errorf("%s: no object labelled %q", a.Type, a.Objects[0])
	}
	for _, label := range a.Objects[1:] {
		obj, ok := actx.Objects[label]
		if !ok {
			return fmt.Errorf("%s: no object labelled %q", a.Type, label)
		}
		if (obj == first) != same {
			return &AssertionError{
				Type:     a.Type,
				Expected: fmt.Sprintf("%s and %s to be %s", a.Objects[0], label, identityWord(same)),
				Actual:   fmt.Sprintf("%s (%p) and %s (%p)", a.Objects[0], first, label, obj),
			}
		}
	}
	return nil
}

func identityWord(same bool) string {
	if same {
		return "the same object"
	}
	return "different objects"
}

// assertCounter checks one of a component's resolution counters. Torn down
// components keep the counters they had at teardown.
func assertCounter(result *Result, a Assertion, get func(reconcile.Stats) int) error {
	stats, ok := result.Stats[a.Component]
	if !ok {
		return fmt.Errorf("%s: unknown component %q", a.Type, a.Component)
	}
	if got := get(stats); got != a.Count {
		return &AssertionError{
			Type:      a.Type,
			Component: a.Component,
			Expected:  fmt.Sprintf("%d", a.Count),
			Actual:    fmt.Sprintf("%d", got),
			Trace:     componentTrace(result, a.Component),
		}
	}
	return nil
}

// assertLiveSubscriptions counts unreleased subscriptions in the journal.
func assertLiveSubscriptions(result *Result, a Assertion, actx *AssertionContext) error {
	subs, err := actx.Store.LiveSubscriptions(actx.Ctx, actx.RunID, a.Component)
	if err != nil {
		return fmt.Errorf("%s: %w", a.Type, err)
	}
	if len(subs) != a.Count {
		edges := make([]string, len(subs))
		for i, s := range subs {
			edges[i] = s.Slot + " -> " + s.Target
		}
		return &AssertionError{
			Type:      a.Type,
			Component: a.Component,
			Expected:  fmt.Sprintf("%d live subscriptions", a.Count),
			Actual:    fmt.Sprintf("%d %v", len(subs), edges),
			Trace:     componentTrace(result, a.Component),
		}
	}
	return nil
}

// assertAttribute compares a component's current attribute value. A null
// expectation means the attribute is unset.
func assertAttribute(a Assertion, actx *AssertionContext) error {
	c, err := actx.Engine.Component(a.Component)
	if err != nil {
		return fmt.Errorf("%s: %w", a.Type, err)
	}
	want, err := ir.FromNative(a.Value)
	if err != nil {
		return fmt.Errorf("%s: value: %w", a.Type, err)
	}
	got := c.Attributes().Get(reconcile.CanonicalName(a.Attribute))
	if !ir.Equal(want, got) {
		return &AssertionError{
			Type:      a.Type,
			Component: a.Component,
			Expected:  fmt.Sprintf("%s = %s", a.Attribute, ir.Format(want)),
			Actual:    fmt.Sprintf("%s = %s", a.Attribute, ir.Format(got)),
		}
	}
	return nil
}

// assertReplayIdentical replays the run's journal into a fresh engine.
func assertReplayIdentical(actx *AssertionContext) error {
	res, err := engine.Replay(actx.Ctx, actx.Store, actx.RunID, actx.Registry,
		engine.WithFetcher(actx.Fetcher),
		engine.WithLogger(discardLogger()),
	)
	if err != nil {
		return fmt.Errorf("%s: %w", AssertReplayIdentical, err)
	}
	if !res.Identical() {
		parts := make([]string, len(res.Mismatches))
		for i, m := range res.Mismatches {
			parts[i] = m.Component
		}
		return &AssertionError{
			Type:     AssertReplayIdentical,
			Expected: "every component to resolve to its journaled fingerprint",
			Actual:   fmt.Sprintf("mismatched: %s", strings.Join(parts, ", ")),
		}
	}
	return nil
}

func componentTrace(result *Result, component string) []TraceEvent {
	var out []TraceEvent
	for _, e := range result.Trace {
		if e.Component == component {
			out = append(out, e)
		}
	}
	return out
}
