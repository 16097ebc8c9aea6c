package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/patchwork/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database  string
	RunID     string // optional - defaults to the latest run
	Component string // optional - filter to one component
}

// TraceResult holds the complete trace output.
type TraceResult struct {
	RunID     string                `json:"run_id"`
	Component string                `json:"component,omitempty"`
	Timeline  []store.TimelineEntry `json:"timeline"`
	Live      []LiveEdge            `json:"live_subscriptions"`
	Stats     TraceStats            `json:"stats"`
}

// LiveEdge is a subscription that was never released.
type LiveEdge struct {
	Owner  string `json:"owner"`
	Slot   string `json:"slot"`
	Target string `json:"target"`
}

// TraceStats counts timeline entries by type.
type TraceStats struct {
	TotalEntries int `json:"total_entries"`
	Events       int `json:"events"`
	Rebuilds     int `json:"rebuilds"`
	Patches      int `json:"patches"`
	Subscribed   int `json:"subscribed"`
	Released     int `json:"released"`
	Failures     int `json:"failures"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Show the journal timeline of a run",
		Long: `Show what the engine did during a run, in logical clock order.

The timeline merges host events, patches (with the attributes they
applied), rebuilds, dependency subscriptions and releases, and build
failures. Subscriptions still live at the end of the run are listed
separately.

Examples:
  patchwork trace --db ./journal.db
  patchwork trace --db ./journal.db --run scenario-material_patch
  patchwork trace --db ./journal.db --component wall --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "run ID to trace (default: latest run)")
	cmd.Flags().StringVar(&opts.Component, "component", "", "filter to one component")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	ctx := context.Background()
	formatter := newFormatter(opts.RootOptions, cmd)

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	runID, err := resolveRunID(ctx, st, opts.RunID)
	if errors.Is(err, store.ErrNotFound) && opts.RunID == "" {
		if formatter.IsJSON() {
			return formatter.Success(TraceResult{Timeline: []store.TimelineEntry{}, Live: []LiveEdge{}})
		}
		formatter.Printf("No runs found in database.\n")
		return nil
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to find run", err)
	}

	timeline, err := st.Timeline(ctx, runID, opts.Component)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read timeline", err)
	}
	subs, err := st.LiveSubscriptions(ctx, runID, opts.Component)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read subscriptions", err)
	}

	result := TraceResult{
		RunID:     runID,
		Component: opts.Component,
		Timeline:  timeline,
		Live:      make([]LiveEdge, len(subs)),
		Stats:     traceStats(timeline),
	}
	for i, s := range subs {
		result.Live[i] = LiveEdge{Owner: s.Owner, Slot: s.Slot, Target: s.Target}
	}

	if formatter.IsJSON() {
		return formatter.JSON(CLIResponse{Status: "ok", Data: result, RunID: runID})
	}
	outputTraceText(formatter.Writer, result, opts.Verbose)
	return nil
}

// resolveRunID checks that id exists, or picks the latest run when empty.
func resolveRunID(ctx context.Context, st *store.Store, id string) (string, error) {
	if id == "" {
		run, err := st.LatestRun(ctx)
		if err != nil {
			return "", err
		}
		return run.ID, nil
	}
	run, err := st.ReadRun(ctx, id)
	if err != nil {
		return "", err
	}
	return run.ID, nil
}

func traceStats(timeline []store.TimelineEntry) TraceStats {
	stats := TraceStats{TotalEntries: len(timeline)}
	for _, e := range timeline {
		switch {
		case strings.HasPrefix(e.Type, "event:"):
			stats.Events++
		case e.Type == "rebuild":
			stats.Rebuilds++
		case e.Type == "patch":
			stats.Patches++
		case e.Type == "subscribed":
			stats.Subscribed++
		case e.Type == "released":
			stats.Released++
		case e.Type == "failure":
			stats.Failures++
		}
	}
	return stats
}

// outputTraceText prints the timeline. Resolutions whose attribute list is
// empty are shown without it unless verbose.
func outputTraceText(w io.Writer, result TraceResult, verbose bool) {
	fmt.Fprintf(w, "Trace for Run: %s\n", result.RunID)
	if result.Component != "" {
		fmt.Fprintf(w, "Component: %s\n", result.Component)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Timeline ===")
	if len(result.Timeline) == 0 {
		fmt.Fprintln(w, "  (no entries)")
	}
	for _, e := range result.Timeline {
		detail := e.Detail
		if detail == "[]" && !verbose {
			detail = ""
		}
		line := fmt.Sprintf("  [%d] %-16s %s", e.Seq, strings.ToUpper(strings.TrimPrefix(e.Type, "event:")), e.Component)
		if detail != "" {
			line += " " + detail
		}
		fmt.Fprintln(w, line)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Live Subscriptions ===")
	if len(result.Live) == 0 {
		fmt.Fprintln(w, "  (none)")
	}
	for _, edge := range result.Live {
		fmt.Fprintf(w, "  %s.%s -> %s\n", edge.Owner, edge.Slot, edge.Target)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Stats ===")
	fmt.Fprintf(w, "  Total Entries: %d\n", result.Stats.TotalEntries)
	fmt.Fprintf(w, "  Events:        %d\n", result.Stats.Events)
	fmt.Fprintf(w, "  Rebuilds:      %d\n", result.Stats.Rebuilds)
	fmt.Fprintf(w, "  Patches:       %d\n", result.Stats.Patches)
	fmt.Fprintf(w, "  Subscribed:    %d\n", result.Stats.Subscribed)
	fmt.Fprintf(w, "  Released:      %d\n", result.Stats.Released)
	fmt.Fprintf(w, "  Failures:      %d\n", result.Stats.Failures)
}
