package harness

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/image/bmp"

	"github.com/roach88/patchwork/internal/catalog"
	"github.com/roach88/patchwork/internal/compiler"
	"github.com/roach88/patchwork/internal/engine"
	"github.com/roach88/patchwork/internal/ir"
	"github.com/roach88/patchwork/internal/loader"
	"github.com/roach88/patchwork/internal/reconcile"
	"github.com/roach88/patchwork/internal/store"
	"github.com/roach88/patchwork/internal/testutil"
)

// fetchTimeout bounds how long a load step waits for a released fetch.
const fetchTimeout = 5 * time.Second

// Harness drives one scenario through a real engine.
type Harness struct {
	engine  *engine.Engine
	store   *store.Store
	gate    *loader.GatedFetcher
	logger  *slog.Logger
	objects map[string]reconcile.Object
	torn    map[string]reconcile.Stats
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs against a fresh journal in a temporary directory, with
// a deterministic clock, deterministic subscription IDs and a fixed run ID,
// so two runs of the same scenario write identical journals.
//
// Execution flow:
//  1. Compile the scene files and append inline components
//  2. Load the scene and let it settle
//  3. Apply each step, draining the queue after it
//  4. Read the journal timeline and evaluate assertions
//
// A returned error means the scenario could not run; failed steps and
// assertions are reported in the Result.
func Run(scenario *Scenario) (*Result, error) {
	dir, err := os.MkdirTemp("", "patchwork-harness-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create journal directory: %w", err)
	}
	defer os.RemoveAll(dir)

	st, err := store.Open(filepath.Join(dir, "journal.db"))
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	defer st.Close()

	scene, err := buildScene(scenario)
	if err != nil {
		return nil, fmt.Errorf("failed to build scene: %w", err)
	}
	assets, err := buildAssets(scenario.Assets)
	if err != nil {
		return nil, fmt.Errorf("failed to build assets: %w", err)
	}

	h := &Harness{
		store:   st,
		logger:  discardLogger(),
		objects: make(map[string]reconcile.Object),
		torn:    make(map[string]reconcile.Stats),
	}
	var fetcher loader.Fetcher = assets
	if scenario.Gated {
		h.gate = loader.NewGatedFetcher(assets)
		fetcher = h.gate
	}

	runID := scenario.RunID
	if runID == "" {
		runID = "scenario-" + scenario.Name
	}
	registry := catalog.NewRegistry()
	opts := []engine.Option{
		engine.WithStore(st),
		engine.WithFetcher(fetcher),
		engine.WithRunID(runID),
		engine.WithClock(testutil.NewDeterministicClock()),
		engine.WithIDGenerator(testutil.NewDeterministicIDs("sub")),
		engine.WithLogger(h.logger),
	}
	if scenario.Strict {
		opts = append(opts, engine.WithStrictAttributes())
	}
	h.engine = engine.New(registry, opts...)
	defer h.engine.Close()

	ctx := context.Background()
	result := NewResult()
	result.RunID = runID

	h.engine.Load(scene)
	if err := h.settle(ctx); err != nil {
		result.AddError(fmt.Sprintf("load: %v", err))
	}

	for i, step := range scenario.Steps {
		if err := h.executeStep(ctx, step); err != nil {
			result.AddError(fmt.Sprintf("steps[%d]: %v", i, err))
		}
	}

	trace, err := st.Timeline(ctx, runID, "")
	if err != nil {
		return nil, fmt.Errorf("failed to read timeline: %w", err)
	}
	result.Trace = trace
	for name, stats := range h.torn {
		result.Stats[name] = stats
	}
	for _, name := range h.engine.Names() {
		c, _ := h.engine.Component(name)
		result.Stats[name] = c.Stats()
	}

	actx := &AssertionContext{
		Ctx:      ctx,
		Engine:   h.engine,
		Store:    st,
		Registry: registry,
		RunID:    runID,
		Objects:  h.objects,
		Fetcher:  assets,
	}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}

	h.logger.Info("scenario completed", "scenario", scenario.Name, "pass", result.Pass)
	return result, nil
}

// executeStep applies one host input and drains the queue.
func (h *Harness) executeStep(ctx context.Context, step Step) error {
	switch {
	case step.Set != nil:
		attrs, err := ir.AttributesFromNative(step.Set.Attributes)
		if err != nil {
			return fmt.Errorf("set %s: %w", step.Set.Component, err)
		}
		h.engine.Update(step.Set.Component, attrs)
		return h.settle(ctx)

	case step.Changed != nil:
		h.engine.Notify(step.Changed.Component, step.Changed.Names...)
		return h.settle(ctx)

	case step.Add != nil:
		def, err := step.Add.Def()
		if err != nil {
			return err
		}
		h.engine.Load(&ir.SceneDef{Components: []ir.ComponentDef{def}})
		return h.settle(ctx)

	case step.Teardown != "":
		if c, err := h.engine.Component(step.Teardown); err == nil {
			h.torn[step.Teardown] = c.Stats()
		}
		h.engine.Remove(step.Teardown)
		return h.settle(ctx)

	case step.Load != "":
		return h.load(ctx, step.Load)

	case step.Get != nil:
		return h.get(step.Get)
	}
	return errors.New("empty step")
}

// get resolves a component, checking an expected failure.
func (h *Harness) get(step *GetStep) error {
	obj, err := h.engine.Object(step.Component)
	if step.Error != "" {
		if err == nil {
			return fmt.Errorf("get %s: expected error containing %q, got none", step.Component, step.Error)
		}
		if !strings.Contains(err.Error(), step.Error) {
			return fmt.Errorf("get %s: expected error containing %q, got %v", step.Component, step.Error, err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("get %s: %w", step.Component, err)
	}
	if step.As != "" {
		h.objects[step.As] = obj
	}
	return nil
}

// load releases a gated fetch, waits for its completion to be posted and
// applies it.
func (h *Harness) load(ctx context.Context, url string) error {
	if h.gate == nil {
		return fmt.Errorf("load %s: scenario is not gated", url)
	}
	r, ok := h.engine.Loader().Lookup(url)
	if !ok {
		return fmt.Errorf("load %s: resource was never acquired", url)
	}
	handle := r.Handle()
	h.gate.Open(url)
	if handle != nil {
		select {
		case <-handle.Fetched():
		case <-time.After(fetchTimeout):
			return fmt.Errorf("load %s: fetch did not complete within %s", url, fetchTimeout)
		}
	}
	return h.engine.Drain(ctx)
}

// settle drains the queue. Ungated scenarios also wait for loads so that
// completions are applied before the next step.
func (h *Harness) settle(ctx context.Context) error {
	if h.gate != nil {
		return h.engine.Drain(ctx)
	}
	return h.engine.Settle(ctx)
}

func buildScene(scenario *Scenario) (*ir.SceneDef, error) {
	scene := &ir.SceneDef{Components: []ir.ComponentDef{}}
	if len(scenario.Scene) > 0 {
		compiled, err := compiler.CompileFiles(scenario.Scene...)
		if err != nil {
			return nil, err
		}
		scene = compiled
	}
	for _, spec := range scenario.Components {
		def, err := spec.Def()
		if err != nil {
			return nil, err
		}
		scene.Components = append(scene.Components, def)
	}
	return scene, nil
}

func buildAssets(specs map[string]AssetSpec) (loader.MapFetcher, error) {
	assets := make(loader.MapFetcher, len(specs))
	for url, spec := range specs {
		if spec.Text != "" {
			assets[url] = []byte(spec.Text)
			continue
		}
		data, err := encodeImage(spec)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", url, err)
		}
		assets[url] = data
	}
	return assets, nil
}

func encodeImage(spec AssetSpec) ([]byte, error) {
	w, h := max(spec.Width, 1), max(spec.Height, 1)
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	var buf bytes.Buffer
	var err error
	switch spec.Format {
	case "png":
		err = png.Encode(&buf, img)
	case "bmp":
		err = bmp.Encode(&buf, img)
	default:
		err = fmt.Errorf("unsupported image format %q", spec.Format)
	}
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
