package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/patchwork/internal/ir"
	"github.com/roach88/patchwork/internal/loader"
	"github.com/roach88/patchwork/internal/reconcile"
	"github.com/roach88/patchwork/internal/store"
)

// Engine hosts a table of reconciled components.
//
// Host inputs (Load, Update, Notify, Remove) and loader completions are
// queued and applied by exactly one goroutine: either the caller of Drain
// or the Run loop. Component objects are resolved lazily through Object,
// which must be called from that same goroutine (directly after Drain, or
// inside Do when Run owns the loop).
//
// Thread-safety model:
//   - Load, Update, Notify, Remove, Do, Post: safe from any goroutine
//   - Drain, Run, Object, Component, Names: loop goroutine only
type Engine struct {
	registry *reconcile.Registry
	store    *store.Store
	loader   *loader.Loader
	clock    Sequencer
	queue    *eventQueue
	ids      reconcile.IDGenerator
	logger   *slog.Logger
	journal  *journal

	strict   bool
	limit    int
	viewport reconcile.Viewport
	fetcher  loader.Fetcher
	runID    string

	ctx        *reconcile.Context
	components map[string]*reconcile.Component
	order      []string // declaration order
}

// Option configures an Engine.
type Option func(*Engine)

// WithStore journals the run into s.
func WithStore(s *store.Store) Option {
	return func(e *Engine) { e.store = s }
}

// WithFetcher sets the fetcher of the engine's resource loader.
func WithFetcher(f loader.Fetcher) Option {
	return func(e *Engine) { e.fetcher = f }
}

// WithIDGenerator sets the generator for subscription and run IDs.
func WithIDGenerator(ids reconcile.IDGenerator) Option {
	return func(e *Engine) {
		if ids != nil {
			e.ids = ids
		}
	}
}

// WithRunID fixes the journal run ID.
func WithRunID(id string) Option {
	return func(e *Engine) { e.runID = id }
}

// WithClock replaces the logical clock.
func WithClock(c Sequencer) Option {
	return func(e *Engine) {
		if c != nil {
			e.clock = c
		}
	}
}

// WithStrictAttributes rejects attributes a kind does not declare.
func WithStrictAttributes() Option {
	return func(e *Engine) { e.strict = true }
}

// WithPropagationLimit sets the maximum number of events one Drain may
// process. Zero or less disables the limit.
func WithPropagationLimit(n int) Option {
	return func(e *Engine) { e.limit = n }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithViewport sets the render surface size handed to builders.
func WithViewport(vp reconcile.Viewport) Option {
	return func(e *Engine) { e.viewport = vp }
}

// New creates an engine over the kinds in registry.
func New(registry *reconcile.Registry, opts ...Option) *Engine {
	e := &Engine{
		registry:   registry,
		clock:      NewClock(),
		queue:      newEventQueue(),
		ids:        UUIDv7Generator{},
		logger:     slog.Default(),
		limit:      DefaultPropagationLimit,
		viewport:   reconcile.Viewport{Width: 800, Height: 600, PixelRatio: 1},
		components: make(map[string]*reconcile.Component),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.runID == "" {
		e.runID = e.ids.Generate()
	}

	e.loader = loader.New(e,
		loader.WithFetcher(e.fetcher),
		loader.WithIDGenerator(e.ids),
		loader.WithLogger(e.logger),
	)
	e.journal = &journal{
		store:  e.store,
		clock:  e.clock,
		logger: e.logger,
		run:    sceneRun(e.runID, nil),
	}
	e.ctx = &reconcile.Context{
		Resolver: resolver{e},
		Viewport: e.viewport,
		Logger:   e.logger,
	}
	return e
}

// RunID returns the journal run ID.
func (e *Engine) RunID() string { return e.runID }

// Loader returns the engine's resource loader.
func (e *Engine) Loader() *loader.Loader { return e.loader }

// Clock returns the engine's logical clock.
func (e *Engine) Clock() Sequencer { return e.clock }

// JournalDropped returns the number of journal writes that failed.
func (e *Engine) JournalDropped() int { return e.journal.dropped }

// Load queues one EventLoad per definition, in declaration order.
// Returns false if the engine has been stopped.
func (e *Engine) Load(scene *ir.SceneDef) bool {
	if scene == nil {
		return true
	}
	e.Do(func() {
		if !e.journal.started {
			e.journal.run = sceneRun(e.runID, scene)
		}
	})
	for _, def := range scene.Components {
		attrs := def.Attributes.Clone()
		if attrs == nil {
			attrs = ir.Attributes{}
		}
		if _, ok := attrs[reconcile.TypeAttribute]; !ok && def.Type != "" {
			attrs[reconcile.TypeAttribute] = ir.String(def.Type)
		}
		if !e.queue.Enqueue(Event{Type: EventLoad, Component: def.Name, Attributes: attrs}) {
			return false
		}
	}
	return true
}

// Add queues a single component definition.
func (e *Engine) Add(name string, attrs ir.Attributes) bool {
	return e.queue.Enqueue(Event{Type: EventLoad, Component: name, Attributes: attrs.Clone()})
}

// Update queues an attribute assignment. A Null value unsets the attribute.
func (e *Engine) Update(name string, attrs ir.Attributes) bool {
	return e.queue.Enqueue(Event{Type: EventUpdate, Component: name, Attributes: attrs.Clone()})
}

// Notify queues a change notification for the named attributes.
func (e *Engine) Notify(name string, names ...string) bool {
	return e.queue.Enqueue(Event{Type: EventChanged, Component: name, Names: append([]string(nil), names...)})
}

// Remove queues the teardown of a component.
func (e *Engine) Remove(name string) bool {
	return e.queue.Enqueue(Event{Type: EventTeardown, Component: name})
}

// Do queues fn to run on the loop.
func (e *Engine) Do(fn func()) bool {
	return e.queue.Enqueue(Event{Type: EventCall, apply: fn})
}

// Post implements loader.Poster.
func (e *Engine) Post(url string, fn func()) bool {
	return e.queue.Enqueue(Event{Type: EventLoaded, Component: url, apply: fn})
}

// Pending returns the number of queued events.
func (e *Engine) Pending() int {
	return e.queue.Len()
}

// Drain applies queued events until the queue is empty or the propagation
// limit is hit, then evicts resources nothing subscribes to. Event errors
// do not stop the drain; they are returned joined.
func (e *Engine) Drain(ctx context.Context) error {
	budget := newPropagationBudget(e.limit)
	var errs []error
	for e.queue.Len() > 0 {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if err := budget.Check(e.queue.Len()); err != nil {
			e.logger.Error("propagation limit exceeded",
				"limit", e.limit,
				"pending", e.queue.Len(),
			)
			errs = append(errs, err)
			break
		}
		ev, ok := e.queue.TryDequeue()
		if !ok {
			break
		}
		if err := e.processEvent(ctx, ev); err != nil {
			logEventError(e.logger, ev, err)
			errs = append(errs, err)
		}
	}
	if n := e.loader.Sweep(); n > 0 {
		e.logger.Debug("resources evicted", "count", n)
	}
	return errors.Join(errs...)
}

// Settle drains, waits for every started load to post its completion, and
// drains again until no work is left. Loads that never finish (a gated
// fetcher that is never opened) block Settle.
func (e *Engine) Settle(ctx context.Context) error {
	var errs []error
	for {
		if err := e.Drain(ctx); err != nil {
			errs = append(errs, err)
		}
		e.loader.Wait()
		if e.queue.Len() == 0 {
			return errors.Join(errs...)
		}
		if err := ctx.Err(); err != nil {
			return errors.Join(append(errs, err)...)
		}
	}
}

// Run is the single-writer event loop. It blocks until ctx is cancelled or
// Stop is called. Event errors are logged and processing continues.
func (e *Engine) Run(ctx context.Context) error {
	e.logger.Info("engine starting", "run", e.runID)
	for {
		if ev, ok := e.queue.TryDequeue(); ok {
			if err := e.processEvent(ctx, ev); err != nil {
				logEventError(e.logger, ev, err)
			}
			if e.queue.Len() == 0 {
				e.loader.Sweep()
			}
			continue
		}

		select {
		case <-ctx.Done():
			e.logger.Info("engine stopping: context cancelled")
			e.queue.Close()
			return ctx.Err()
		case <-e.queue.Wait():
			if e.queue.Closed() && e.queue.Len() == 0 {
				e.logger.Info("engine stopping: queue closed")
				return nil
			}
		}
	}
}

// Stop closes the queue; Run returns once it is empty.
func (e *Engine) Stop() {
	e.queue.Close()
}

// Close stops the engine, disposes every component and cancels all loads.
// Call from the loop goroutine after Run has returned, or instead of Run.
func (e *Engine) Close() {
	e.queue.Close()
	for i := len(e.order) - 1; i >= 0; i-- {
		e.components[e.order[i]].Dispose()
	}
	e.components = make(map[string]*reconcile.Component)
	e.order = nil
	e.loader.Close()
}

// Component returns the named component.
func (e *Engine) Component(name string) (*reconcile.Component, error) {
	c, ok := e.components[name]
	if !ok {
		return nil, NewUnknownComponentError(name)
	}
	return c, nil
}

// Object resolves the named component's engine object.
func (e *Engine) Object(name string) (reconcile.Object, error) {
	c, err := e.Component(name)
	if err != nil {
		return nil, err
	}
	return c.Object()
}

// ResolveAll resolves every component in declaration order and returns the
// failures joined.
func (e *Engine) ResolveAll() error {
	var errs []error
	for _, name := range e.order {
		if _, err := e.components[name].Object(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

// Names returns component names in declaration order.
func (e *Engine) Names() []string {
	return append([]string(nil), e.order...)
}

func (e *Engine) processEvent(ctx context.Context, ev Event) error {
	switch ev.Type {
	case EventCall:
		if ev.apply != nil {
			ev.apply()
		}
		return nil
	case EventLoaded:
		e.journal.event(ctx, ev)
		if ev.apply != nil {
			ev.apply()
		}
		return nil
	}

	e.journal.event(ctx, ev)
	e.logger.Debug("processing event", "type", ev.Type.String(), "component", ev.Component)

	switch ev.Type {
	case EventLoad:
		return e.load(ev.Component, ev.Attributes)
	case EventUpdate:
		c, err := e.Component(ev.Component)
		if err != nil {
			return err
		}
		if err := c.Set(ev.Attributes); err != nil {
			return fmt.Errorf("update %s: %w", ev.Component, err)
		}
		return nil
	case EventChanged:
		c, err := e.Component(ev.Component)
		if err != nil {
			return err
		}
		if err := c.Changed(ev.Names...); err != nil {
			return fmt.Errorf("notify %s: %w", ev.Component, err)
		}
		return nil
	case EventTeardown:
		return e.teardown(ev.Component)
	default:
		return fmt.Errorf("unknown event type: %d", ev.Type)
	}
}

func (e *Engine) load(name string, attrs ir.Attributes) error {
	if _, exists := e.components[name]; exists {
		return NewDuplicateComponentError(name)
	}
	opts := []reconcile.Option{
		reconcile.WithObserver(e.journal),
		reconcile.WithIDGenerator(e.ids),
	}
	if e.strict {
		opts = append(opts, reconcile.WithStrictAttributes())
	}
	c, err := reconcile.New(name, e.registry, attrs, e.ctx, opts...)
	if err != nil {
		return fmt.Errorf("load %s: %w", name, err)
	}
	e.components[name] = c
	e.order = append(e.order, name)
	e.logger.Debug("component loaded", "component", name, "kind", c.Kind().ID)

	e.notifyReferrers(name)
	return nil
}

func (e *Engine) teardown(name string) error {
	c, err := e.Component(name)
	if err != nil {
		return err
	}
	// Remove first so dependents rebuilding in response see no source.
	delete(e.components, name)
	for i, n := range e.order {
		if n == name {
			e.order = append(e.order[:i], e.order[i+1:]...)
			break
		}
	}
	c.Dispose()
	e.logger.Debug("component removed", "component", name)
	return nil
}

// notifyReferrers tells components whose slots name a newly added
// component that the slot now resolves. They had no edge to it before.
func (e *Engine) notifyReferrers(name string) {
	for _, other := range e.order {
		if other == name {
			continue
		}
		c := e.components[other]
		attrs := c.Attributes()
		for _, slot := range c.Kind().Slots {
			if ref, ok := attrs.Get(slot).(ir.Ref); ok && string(ref) == name {
				if err := c.Changed(slot); err != nil {
					e.logger.Warn("referrer notify failed", "component", other, "slot", slot, "error", err)
				}
			}
		}
	}
}

// resolver maps slot values to sources: ir.Ref names a component in the
// table, a string names a loader resource.
type resolver struct {
	e *Engine
}

func (r resolver) Source(v ir.Value) (reconcile.Source, bool) {
	switch val := v.(type) {
	case ir.Ref:
		c, ok := r.e.components[string(val)]
		if !ok {
			return nil, false
		}
		return c, true
	case ir.String:
		if val == "" {
			return nil, false
		}
		return r.e.loader.Acquire(string(val)), true
	default:
		return nil, false
	}
}

// logEventError logs a failed event with enough context to replay it by
// hand.
func logEventError(logger *slog.Logger, ev Event, err error) {
	logger.Error("event processing failed",
		"type", ev.Type.String(),
		"component", ev.Component,
		"error", err,
	)
}
