package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/patchwork/internal/catalog"
	"github.com/roach88/patchwork/internal/engine"
	"github.com/roach88/patchwork/internal/store"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database string
	RunID    string // optional - specific run only
	Assets   string // asset root the runs loaded from
}

// ReplayResult holds the overall replay result.
type ReplayResult struct {
	Runs         []*engine.ReplayResult `json:"runs"`
	TotalRuns    int                    `json:"total_runs"`
	AllIdentical bool                   `json:"all_identical"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay journaled runs and verify they resolve identically",
		Long: `Replay the host events of journaled runs into a fresh engine.

Each component's final attributes are fingerprinted and compared with the
fingerprint journaled at its last resolution. Components changed after
their last resolution are reported as unresolved, not as mismatches.

Exit codes:
  0 - Every replayed run is identical
  1 - At least one component resolved differently
  2 - Command error (database not found, etc.)

Examples:
  patchwork replay --db ./journal.db
  patchwork replay --db ./journal.db --run scenario-texture_swap
  patchwork replay --db ./journal.db --assets ./textures --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "replay specific run only")
	cmd.Flags().StringVar(&opts.Assets, "assets", "", "asset root directory")

	return cmd
}

func runReplay(opts *ReplayOptions, cmd *cobra.Command) error {
	ctx := context.Background()
	formatter := newFormatter(opts.RootOptions, cmd)

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	var runIDs []string
	if opts.RunID != "" {
		runIDs = []string{opts.RunID}
	} else {
		runs, err := st.ReadRuns(ctx)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to list runs", err)
		}
		for _, r := range runs {
			runIDs = append(runIDs, r.ID)
		}
	}

	result := ReplayResult{
		Runs:         make([]*engine.ReplayResult, 0, len(runIDs)),
		TotalRuns:    len(runIDs),
		AllIdentical: true,
	}
	if len(runIDs) == 0 {
		if formatter.IsJSON() {
			return formatter.Success(result)
		}
		formatter.Printf("No runs found in database.\n")
		return nil
	}

	logOut := io.Discard
	if opts.Verbose {
		logOut = cmd.ErrOrStderr()
	}
	engineOpts := engineOptions(engineConfig{
		assets: opts.Assets,
		logger: newLogger(opts.RootOptions, logOut),
	})

	for _, id := range runIDs {
		formatter.VerboseLog("Replaying run %s", id)
		res, err := engine.Replay(ctx, st, id, catalog.NewRegistry(), engineOpts...)
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("failed to replay run %s", id), err)
		}
		result.Runs = append(result.Runs, res)
		if !res.Identical() {
			result.AllIdentical = false
		}
	}

	if formatter.IsJSON() {
		if err := formatter.JSON(CLIResponse{Status: replayStatus(result), Data: result}); err != nil {
			return err
		}
	} else {
		outputReplayText(formatter, result)
	}
	if !result.AllIdentical {
		return NewExitError(ExitFailure, "replay diverged from the journal")
	}
	return nil
}

func replayStatus(result ReplayResult) string {
	if result.AllIdentical {
		return "ok"
	}
	return "error"
}

func outputReplayText(formatter *OutputFormatter, result ReplayResult) {
	for _, r := range result.Runs {
		mark := "✓"
		if !r.Identical() {
			mark = "✗"
		}
		formatter.Printf("%s %s: %d event(s), %d component(s)\n", mark, r.RunID, r.Events, r.Components)
		for _, m := range r.Mismatches {
			formatter.Printf("    %s: recorded %s, replayed %s\n", m.Component, shortHash(m.Recorded), shortHash(m.Replayed))
		}
		for _, name := range r.Unresolved {
			formatter.Printf("    %s: changed after its last resolution\n", name)
		}
	}
	formatter.Printf("\n%d run(s) replayed", result.TotalRuns)
	if result.AllIdentical {
		formatter.Printf(", all identical\n")
	} else {
		formatter.Printf(", divergence detected\n")
	}
}

func shortHash(h string) string {
	if len(h) <= 12 {
		return h
	}
	return h[:12]
}
