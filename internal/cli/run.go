package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/patchwork/internal/catalog"
	"github.com/roach88/patchwork/internal/engine"
	"github.com/roach88/patchwork/internal/loader"
	"github.com/roach88/patchwork/internal/reconcile"
	"github.com/roach88/patchwork/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database string
	Assets   string // asset root; defaults to the scene directory
	RunID    string
	Strict   bool
	Watch    bool

	// IDs overrides the subscription ID generator (for testing).
	// If nil, the engine uses UUIDv7.
	IDs reconcile.IDGenerator
}

// ComponentReport is one component's state after a run.
type ComponentReport struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	State    string `json:"state"`
	Builds   int    `json:"builds"`
	Patches  int    `json:"patches"`
	Failures int    `json:"failures"`
	Ready    int    `json:"ready"`
	Error    string `json:"error,omitempty"`
}

// RunReport summarizes a settled scene.
type RunReport struct {
	RunID      string            `json:"run_id"`
	Components []ComponentReport `json:"components"`
	Failed     int               `json:"failed"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <scene-dir>",
		Short: "Load a scene, resolve every component and journal the run",
		Long: `Load the CUE scene in a directory into the engine and resolve it.

Every host event, patch, rebuild and subscription is journaled into the
SQLite database (created if it doesn't exist). Asset URLs in resource slots
are read from --assets, which defaults to the scene directory.

With --watch the engine keeps running: SIGHUP recompiles the scene and
sends only the attributes that changed, so unchanged components keep
their objects. Ctrl-C stops it.

Example:
  patchwork run --db ./journal.db ./scene
  patchwork run --db ./journal.db --assets ./textures ./scene --watch`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScene(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Assets, "assets", "", "asset root directory (default: scene directory)")
	cmd.Flags().StringVar(&opts.RunID, "run-id", "", "journal run ID (default: generated)")
	cmd.Flags().BoolVar(&opts.Strict, "strict", false, "reject attributes a kind does not declare")
	cmd.Flags().BoolVar(&opts.Watch, "watch", false, "keep running and reload the scene on SIGHUP")

	return cmd
}

func runScene(opts *RunOptions, sceneDir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	logger := newLogger(opts.RootOptions, cmd.ErrOrStderr())

	logger.Info("compiling scene", "dir", sceneDir)
	loaded, err := LoadScene(sceneDir)
	if err != nil {
		return outputLoadError(formatter, err)
	}
	logger.Info("scene compiled", "components", len(loaded.Scene.Components), "hash", loaded.Hash)

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			logger.Error("error closing database", "error", closeErr)
		}
	}()

	eng := engine.New(catalog.NewRegistry(), engineOptions(engineConfig{
		store:  st,
		assets: assetRoot(opts.Assets, sceneDir),
		runID:  opts.RunID,
		strict: opts.Strict,
		ids:    opts.IDs,
		logger: logger,
	})...)
	defer eng.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	eng.Load(loaded.Scene)
	if err := eng.Settle(ctx); err != nil {
		logger.Warn("scene settled with errors", "error", err)
	}
	report := resolveReport(eng)

	if opts.Watch {
		if err := watchScene(ctx, eng, sceneDir, loaded, formatter, logger); err != nil {
			return WrapExitError(ExitFailure, "engine error", err)
		}
		report = resolveReport(eng)
	}

	if err := outputRunReport(formatter, report); err != nil {
		return err
	}
	if report.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d component(s) failed to resolve", report.Failed))
	}
	return nil
}

// engineConfig gathers what the run, shell and replay commands configure.
type engineConfig struct {
	store  *store.Store
	assets string
	runID  string
	strict bool
	ids    reconcile.IDGenerator
	logger *slog.Logger
}

func engineOptions(cfg engineConfig) []engine.Option {
	opts := []engine.Option{
		engine.WithLogger(cfg.logger),
		engine.WithIDGenerator(cfg.ids),
	}
	if cfg.store != nil {
		opts = append(opts, engine.WithStore(cfg.store))
	}
	if cfg.assets != "" {
		opts = append(opts, engine.WithFetcher(loader.FSFetcher{FS: os.DirFS(cfg.assets)}))
	}
	if cfg.runID != "" {
		opts = append(opts, engine.WithRunID(cfg.runID))
	}
	if cfg.strict {
		opts = append(opts, engine.WithStrictAttributes())
	}
	return opts
}

func assetRoot(assets, sceneDir string) string {
	if assets != "" {
		return assets
	}
	return sceneDir
}

// resolveReport resolves every component and collects its counters.
// Loop goroutine only.
func resolveReport(eng *engine.Engine) RunReport {
	report := RunReport{RunID: eng.RunID(), Components: []ComponentReport{}}
	for _, name := range eng.Names() {
		c, err := eng.Component(name)
		if err != nil {
			continue
		}
		r := ComponentReport{Name: name}
		if _, err := c.Object(); err != nil {
			r.Error = err.Error()
			report.Failed++
		}
		if k := c.Kind(); k != nil {
			r.Type = string(k.ID)
		}
		stats := c.Stats()
		r.State = c.State().String()
		r.Builds, r.Patches, r.Failures, r.Ready = stats.Builds, stats.Patches, stats.Failures, stats.Ready
		report.Components = append(report.Components, r)
	}
	return report
}

// watchScene hands the engine to its Run loop and reloads the scene on
// SIGHUP until ctx is cancelled or SIGINT/SIGTERM arrives.
func watchScene(ctx context.Context, eng *engine.Engine, sceneDir string, current *LoadResult, formatter *OutputFormatter, logger *slog.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigChan)

	go func() {
		for {
			select {
			case sig := <-sigChan:
				if sig != syscall.SIGHUP {
					logger.Info("received signal, shutting down", "signal", sig)
					cancel()
					return
				}
				next, err := LoadScene(sceneDir)
				if err != nil {
					logger.Error("reload failed, keeping current scene", "error", err)
					continue
				}
				delta := diffScenes(current.Scene, next.Scene)
				current = next
				logger.Info("scene reloaded",
					"removed", len(delta.Removed),
					"updated", len(delta.Updated),
					"added", len(delta.Added),
				)
				delta.apply(eng)
				eng.Do(func() {
					report := resolveReport(eng)
					logger.Info("scene resolved", "components", len(report.Components), "failed", report.Failed)
				})
			case <-ctx.Done():
				return
			}
		}
	}()

	formatter.Printf("Engine running. Send SIGHUP to reload %s, Ctrl-C to stop.\n", sceneDir)
	err := eng.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	logger.Info("engine stopped gracefully")
	return nil
}

func outputRunReport(formatter *OutputFormatter, report RunReport) error {
	if formatter.IsJSON() {
		status := "ok"
		var cliErr *CLIError
		if report.Failed > 0 {
			status = "error"
			cliErr = &CLIError{Code: "E_RESOLVE_FAILED", Message: fmt.Sprintf("%d component(s) failed to resolve", report.Failed)}
		}
		return formatter.JSON(CLIResponse{Status: status, Data: report, Error: cliErr, RunID: report.RunID})
	}

	formatter.Printf("Run %s\n\n", report.RunID)
	for _, c := range report.Components {
		mark := "✓"
		if c.Error != "" {
			mark = "✗"
		}
		formatter.Printf("%s %-16s %-18s builds=%d patches=%d ready=%d\n",
			mark, c.Name, c.Type, c.Builds, c.Patches, c.Ready)
		if c.Error != "" {
			formatter.Printf("    %s\n", c.Error)
		}
	}
	formatter.Printf("\n%d component(s), %d failed\n", len(report.Components), report.Failed)
	return nil
}
