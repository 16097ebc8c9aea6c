package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"sync"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/patchwork/internal/catalog"
	"github.com/roach88/patchwork/internal/engine"
	"github.com/roach88/patchwork/internal/ir"
	"github.com/roach88/patchwork/internal/reconcile"
	"github.com/roach88/patchwork/internal/store"
)

// ShellOptions holds flags for the shell command.
type ShellOptions struct {
	*RootOptions
	Database string // optional - journal the session
	Assets   string
	RunID    string
	Strict   bool
	History  string
}

// NewShellCommand creates the shell command.
func NewShellCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ShellOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "shell <scene-dir>",
		Short: "Drive a loaded scene interactively",
		Long: `Load a scene and send host inputs to it from a prompt.

Set attributes, notify changes and resolve components one at a time to
see which changes patch an object in place and which force a rebuild.
Type 'help' at the prompt for the command list.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShell(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "journal the session into this SQLite database")
	cmd.Flags().StringVar(&opts.Assets, "assets", "", "asset root directory (default: scene directory)")
	cmd.Flags().StringVar(&opts.RunID, "run-id", "", "journal run ID (default: generated)")
	cmd.Flags().BoolVar(&opts.Strict, "strict", false, "reject attributes a kind does not declare")
	cmd.Flags().StringVar(&opts.History, "history", "", "readline history file")

	return cmd
}

func runShell(opts *ShellOptions, sceneDir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	loaded, err := LoadScene(sceneDir)
	if err != nil {
		return outputLoadError(formatter, err)
	}

	var st *store.Store
	if opts.Database != "" {
		st, err = store.Open(opts.Database)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open database", err)
		}
		defer st.Close()
	}

	logOut := io.Discard
	if opts.Verbose {
		logOut = cmd.ErrOrStderr()
	}
	eng := engine.New(catalog.NewRegistry(), engineOptions(engineConfig{
		store:  st,
		assets: assetRoot(opts.Assets, sceneDir),
		runID:  opts.RunID,
		strict: opts.Strict,
		logger: newLogger(opts.RootOptions, logOut),
	})...)
	defer eng.Close()

	ctx := context.Background()
	sh := NewShell(eng, st, sceneDir, loaded.Scene, cmd.OutOrStdout())
	if err := sh.settle(ctx); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", err)
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "patchwork> ",
		HistoryFile:     opts.History,
		AutoComplete:    sh.completer(),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		Stdout:          cmd.OutOrStdout(),
		Stderr:          cmd.ErrOrStderr(),
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to create readline", err)
	}
	defer rl.Close()
	sh.out = rl.Stdout()

	fmt.Fprintf(sh.out, "Loaded %d component(s) from %s. Type 'help' for commands.\n", len(loaded.Scene.Components), sceneDir)
	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if err != nil {
			return nil
		}
		quit, err := sh.Exec(ctx, line)
		if err != nil {
			fmt.Fprintf(sh.out, "error: %v\n", err)
		}
		if quit {
			return nil
		}
	}
}

// Shell executes prompt commands against an engine. Exec must be called
// from the goroutine that owns the engine loop.
type Shell struct {
	eng      *engine.Engine
	store    *store.Store
	sceneDir string
	scene    *ir.SceneDef
	out      io.Writer

	mu    sync.Mutex
	names []string // completion snapshot
}

// NewShell returns a shell over a loaded scene. The scene is queued but not
// drained.
func NewShell(eng *engine.Engine, st *store.Store, sceneDir string, scene *ir.SceneDef, out io.Writer) *Shell {
	sh := &Shell{eng: eng, store: st, sceneDir: sceneDir, scene: scene, out: out}
	eng.Load(scene)
	return sh
}

const shellHelp = `Commands:
  list                          components with their type, state and counters
  get <name>                    resolve a component (rebuilt, patched or cached)
  set <name> <attr>=<value>...  assign attributes (YAML values: 0.8, [1,2,3], {ref: box})
  unset <name> <attr>...        remove attributes
  changed <name> <attr>...      notify that attributes changed in place
  add <name> <type> [attr=value...]
  teardown <name>               dispose a component
  deps <name>                   live dependency subscriptions
  reload                        recompile the scene and send what changed
  trace [name]                  journal timeline (requires --db)
  help
  quit`

// Exec runs one command line. quit reports whether the session should end.
func (s *Shell) Exec(ctx context.Context, line string) (quit bool, err error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false, nil
	}
	cmd, args := strings.ToLower(fields[0]), fields[1:]

	switch cmd {
	case "help", "?":
		fmt.Fprintln(s.out, shellHelp)
	case "quit", "exit", "q":
		return true, nil
	case "list", "ls":
		s.list()
	case "get", "g":
		if len(args) != 1 {
			return false, errors.New("usage: get <name>")
		}
		return false, s.get(args[0])
	case "set", "s":
		if len(args) < 2 {
			return false, errors.New("usage: set <name> <attr>=<value>...")
		}
		attrs, err := parseAssignments(args[1:])
		if err != nil {
			return false, err
		}
		s.eng.Update(args[0], attrs)
		return false, s.settle(ctx)
	case "unset":
		if len(args) < 2 {
			return false, errors.New("usage: unset <name> <attr>...")
		}
		attrs := ir.Attributes{}
		for _, a := range args[1:] {
			attrs[a] = ir.Null{}
		}
		s.eng.Update(args[0], attrs)
		return false, s.settle(ctx)
	case "changed":
		if len(args) < 2 {
			return false, errors.New("usage: changed <name> <attr>...")
		}
		s.eng.Notify(args[0], args[1:]...)
		return false, s.settle(ctx)
	case "add":
		if len(args) < 2 {
			return false, errors.New("usage: add <name> <type> [attr=value...]")
		}
		attrs, err := parseAssignments(args[2:])
		if err != nil {
			return false, err
		}
		attrs[reconcile.TypeAttribute] = ir.String(args[1])
		s.eng.Add(args[0], attrs)
		return false, s.settle(ctx)
	case "teardown", "rm":
		if len(args) != 1 {
			return false, errors.New("usage: teardown <name>")
		}
		s.eng.Remove(args[0])
		return false, s.settle(ctx)
	case "deps":
		if len(args) != 1 {
			return false, errors.New("usage: deps <name>")
		}
		return false, s.deps(args[0])
	case "reload":
		return false, s.reload(ctx)
	case "trace":
		component := ""
		if len(args) > 0 {
			component = args[0]
		}
		return false, s.trace(ctx, component)
	default:
		return false, fmt.Errorf("unknown command: %s (type 'help' for commands)", cmd)
	}
	return false, nil
}

func (s *Shell) settle(ctx context.Context) error {
	err := s.eng.Settle(ctx)
	s.mu.Lock()
	s.names = s.eng.Names()
	s.mu.Unlock()
	return err
}

func (s *Shell) list() {
	names := s.eng.Names()
	if len(names) == 0 {
		fmt.Fprintln(s.out, "(no components)")
		return
	}
	for _, name := range names {
		c, err := s.eng.Component(name)
		if err != nil {
			continue
		}
		stats := c.Stats()
		dirty := ""
		if c.Dirty() {
			dirty = " dirty"
		}
		fmt.Fprintf(s.out, "%-16s %-18s %s%s builds=%d patches=%d ready=%d\n",
			name, c.Kind().ID, c.State(), dirty, stats.Builds, stats.Patches, stats.Ready)
	}
}

// get resolves a component and says how the object was produced.
func (s *Shell) get(name string) error {
	c, err := s.eng.Component(name)
	if err != nil {
		return err
	}
	before := c.Stats()
	obj, err := c.Object()
	if err != nil {
		return err
	}
	after := c.Stats()

	how := "cached"
	switch {
	case after.Builds > before.Builds:
		how = "rebuilt"
	case after.Patches > before.Patches:
		how = "patched"
	}
	fmt.Fprintf(s.out, "%s: %T %p (%s)\n", name, obj, obj, how)
	return nil
}

func (s *Shell) deps(name string) error {
	c, err := s.eng.Component(name)
	if err != nil {
		return err
	}
	deps := c.Dependencies()
	if len(deps) == 0 {
		fmt.Fprintln(s.out, "(no dependencies)")
		return nil
	}
	for _, d := range deps {
		fmt.Fprintf(s.out, "%s -> %s\n", d.Slot, d.Target.SourceName())
	}
	return nil
}

func (s *Shell) reload(ctx context.Context) error {
	next, err := LoadScene(s.sceneDir)
	if err != nil {
		return err
	}
	delta := diffScenes(s.scene, next.Scene)
	s.scene = next.Scene
	if delta.Empty() {
		fmt.Fprintln(s.out, "scene unchanged")
		return nil
	}
	delta.apply(s.eng)
	fmt.Fprintf(s.out, "reloaded: %d removed, %d updated, %d added\n", len(delta.Removed), len(delta.Updated), len(delta.Added))
	return s.settle(ctx)
}

func (s *Shell) trace(ctx context.Context, component string) error {
	if s.store == nil {
		return errors.New("trace needs a journal (start the shell with --db)")
	}
	// Journal writes are synchronous; the timeline is current.
	timeline, err := s.store.Timeline(ctx, s.eng.RunID(), component)
	if err != nil {
		return err
	}
	for _, e := range timeline {
		fmt.Fprintf(s.out, "[%d] %s %s %s\n", e.Seq, e.Type, e.Component, e.Detail)
	}
	return nil
}

func (s *Shell) componentNames(string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.names)
}

func (s *Shell) completer() *readline.PrefixCompleter {
	named := func(cmd string) readline.PrefixCompleterInterface {
		return readline.PcItem(cmd, readline.PcItemDynamic(s.componentNames))
	}
	return readline.NewPrefixCompleter(
		readline.PcItem("list"),
		named("get"),
		named("set"),
		named("unset"),
		named("changed"),
		readline.PcItem("add"),
		named("teardown"),
		named("deps"),
		readline.PcItem("reload"),
		named("trace"),
		readline.PcItem("help"),
		readline.PcItem("quit"),
	)
}

// parseAssignments parses attr=value pairs. Values are YAML, so numbers,
// lists and {ref: name} maps convert the way scenario files do; anything
// YAML reads as empty (such as "#ff0000", a comment) is taken literally.
func parseAssignments(tokens []string) (ir.Attributes, error) {
	attrs := ir.Attributes{}
	for _, pair := range joinAssignments(tokens) {
		name, raw, ok := strings.Cut(pair, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("expected attr=value, got %q", pair)
		}
		v, err := parseValue(raw)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		attrs[name] = v
	}
	return attrs, nil
}

// joinAssignments glues tokens without '=' onto the pair before them, so a
// value split on whitespace like "map={ref: box}" is put back together.
func joinAssignments(tokens []string) []string {
	var pairs []string
	for _, tok := range tokens {
		if len(pairs) > 0 && !strings.Contains(tok, "=") {
			pairs[len(pairs)-1] += " " + tok
			continue
		}
		pairs = append(pairs, tok)
	}
	return pairs
}

func parseValue(raw string) (ir.Value, error) {
	var native any
	if err := yaml.Unmarshal([]byte(raw), &native); err != nil {
		return nil, err
	}
	if native == nil && raw != "" && raw != "null" && raw != "~" {
		return ir.String(raw), nil
	}
	return ir.FromNative(native)
}
