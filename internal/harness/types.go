package harness

import (
	"github.com/roach88/patchwork/internal/reconcile"
	"github.com/roach88/patchwork/internal/store"
)

// TraceEvent is one journal timeline entry.
type TraceEvent = store.TimelineEntry

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if every step behaved as expected and all assertions held.
	Pass bool `json:"pass"`

	// RunID is the journal run the scenario wrote.
	RunID string `json:"run_id"`

	// Trace is the journal timeline of the run, ordered by seq.
	Trace []TraceEvent `json:"trace"`

	// Errors contains step and assertion failures.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Stats holds every live component's counters at the end of the run.
	Stats map[string]reconcile.Stats `json:"stats,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
		Stats:  make(map[string]reconcile.Stats),
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
