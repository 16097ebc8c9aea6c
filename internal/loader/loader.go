package loader

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/roach88/patchwork/internal/reconcile"
)

// Poster hands a completion back to the owning event loop. url names the
// resource the completion belongs to. Post returns false if the loop no
// longer accepts work.
type Poster interface {
	Post(url string, fn func()) bool
}

// PosterFunc adapts a function to Poster.
type PosterFunc func(url string, fn func()) bool

// Post calls f.
func (f PosterFunc) Post(url string, fn func()) bool { return f(url, fn) }

// State is a resource's load state.
type State int

const (
	StatePending State = iota
	StateLoaded
	StateFailed
	StateCancelled
)

// String returns the state's name.
func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateLoaded:
		return "loaded"
	case StateFailed:
		return "failed"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Handle controls one in-flight load.
type Handle struct {
	cancelled atomic.Bool
	cancel    context.CancelFunc
	fetched   chan struct{}
}

// Cancel aborts the fetch and drops its completion if it has not been
// applied yet. Idempotent.
func (h *Handle) Cancel() {
	if h.cancelled.CompareAndSwap(false, true) {
		h.cancel()
	}
}

// Cancelled reports whether Cancel was called.
func (h *Handle) Cancelled() bool {
	return h.cancelled.Load()
}

// Fetched is closed once the fetch goroutine has posted its completion.
func (h *Handle) Fetched() <-chan struct{} {
	return h.fetched
}

// Resource is a shared, lazily loaded external asset. It implements
// reconcile.Source; subscribers are notified once, when the load completes.
type Resource struct {
	url    string
	signal *reconcile.Signal
	state  State
	asset  *Asset
	err    error
	handle *Handle
}

// URL returns the resource's URL.
func (r *Resource) URL() string { return r.url }

// State returns the load state.
func (r *Resource) State() State { return r.state }

// Err returns the load error of a failed resource.
func (r *Resource) Err() error { return r.err }

// Handle returns the in-flight load handle, or nil once the load settled.
func (r *Resource) Handle() *Handle { return r.handle }

// Subscribers returns the number of live subscriptions.
func (r *Resource) Subscribers() int { return r.signal.Len() }

// SourceName implements reconcile.Source.
func (r *Resource) SourceName() string { return r.url }

// Subscribe implements reconcile.Source.
func (r *Resource) Subscribe(fn func()) *reconcile.Subscription {
	return r.signal.Subscribe(fn)
}

// Value implements reconcile.Source. Only loaded resources have a value;
// pending and failed ones fall back to the slot's default.
func (r *Resource) Value() (reconcile.Object, bool) {
	if r.state != StateLoaded {
		return nil, false
	}
	return r.asset, true
}

// Option configures a Loader.
type Option func(*Loader)

// WithFetcher sets the fetcher. The default fetcher fails every URL.
func WithFetcher(f Fetcher) Option {
	return func(l *Loader) {
		if f != nil {
			l.fetcher = f
		}
	}
}

// WithDecoder replaces DecodeAsset.
func WithDecoder(d Decoder) Option {
	return func(l *Loader) {
		if d != nil {
			l.decode = d
		}
	}
}

// WithIDGenerator sets the generator for subscription IDs.
func WithIDGenerator(ids reconcile.IDGenerator) Option {
	return func(l *Loader) {
		if ids != nil {
			l.ids = ids
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loader) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// Loader owns the table of shared resources. Every method except the fetch
// goroutines runs on the engine loop.
type Loader struct {
	poster    Poster
	fetcher   Fetcher
	decode    Decoder
	ids       reconcile.IDGenerator
	logger    *slog.Logger
	resources map[string]*Resource

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a loader that posts completions through poster.
func New(poster Poster, opts ...Option) *Loader {
	ctx, cancel := context.WithCancel(context.Background())
	l := &Loader{
		poster:    poster,
		fetcher:   MapFetcher{},
		decode:    DecodeAsset,
		ids:       &reconcile.SequentialIDs{Prefix: "res"},
		logger:    slog.Default(),
		resources: make(map[string]*Resource),
		ctx:       ctx,
		cancel:    cancel,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Acquire returns the shared resource for url, starting its load on first
// use.
func (l *Loader) Acquire(url string) *Resource {
	if r, ok := l.resources[url]; ok {
		return r
	}
	r := &Resource{
		url:    url,
		signal: reconcile.NewSignal(url+".ready", l.ids),
	}
	l.resources[url] = r
	l.start(r)
	return r
}

// Lookup returns an already acquired resource.
func (l *Loader) Lookup(url string) (*Resource, bool) {
	r, ok := l.resources[url]
	return r, ok
}

// URLs returns acquired URLs in sorted order.
func (l *Loader) URLs() []string {
	urls := make([]string, 0, len(l.resources))
	for u := range l.resources {
		urls = append(urls, u)
	}
	slices.Sort(urls)
	return urls
}

// Len returns the number of acquired resources.
func (l *Loader) Len() int {
	return len(l.resources)
}

// Sweep evicts resources nobody subscribes to and cancels their loads.
// Returns the number evicted.
func (l *Loader) Sweep() int {
	n := 0
	for _, url := range l.URLs() {
		r := l.resources[url]
		if r.Subscribers() > 0 {
			continue
		}
		if r.handle != nil {
			r.handle.Cancel()
			r.handle = nil
		}
		if r.state == StatePending {
			r.state = StateCancelled
		}
		r.signal.Close()
		delete(l.resources, url)
		n++
		l.logger.Debug("resource evicted", "url", url)
	}
	return n
}

// Wait blocks until every started fetch goroutine has posted.
func (l *Loader) Wait() {
	l.wg.Wait()
}

// Close cancels all loads and waits for their goroutines.
func (l *Loader) Close() {
	l.cancel()
	for _, r := range l.resources {
		if r.handle != nil {
			r.handle.Cancel()
		}
	}
	l.wg.Wait()
}

func (l *Loader) start(r *Resource) {
	ctx, cancel := context.WithCancel(l.ctx)
	h := &Handle{cancel: cancel, fetched: make(chan struct{})}
	r.handle = h
	url := r.url

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		defer close(h.fetched)
		defer cancel()

		data, err := l.fetcher.Fetch(ctx, url)
		var asset *Asset
		if err == nil {
			asset, err = l.decode(url, data)
		}
		if !l.poster.Post(url, func() { l.complete(r, h, asset, err) }) {
			l.logger.Debug("load completion dropped, loop closed", "url", url)
		}
	}()
}

// complete runs on the loop.
func (l *Loader) complete(r *Resource, h *Handle, asset *Asset, err error) {
	if h.Cancelled() || r.handle != h {
		l.logger.Debug("stale load completion ignored", "url", r.url)
		return
	}
	r.handle = nil
	if err != nil {
		r.state = StateFailed
		r.err = err
		l.logger.Warn("resource load failed", "url", r.url, "error", err)
		return
	}
	r.state = StateLoaded
	r.asset = asset
	notified := r.signal.Fire()
	l.logger.Debug("resource loaded", "url", r.url, "format", asset.Format, "notified", notified)
}
