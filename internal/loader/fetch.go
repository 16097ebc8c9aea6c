package loader

import (
	"context"
	"fmt"
	"io/fs"
	"strings"
	"sync"
)

// Fetcher retrieves the raw bytes behind a URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, url string) ([]byte, error)

// Fetch calls f.
func (f FetcherFunc) Fetch(ctx context.Context, url string) ([]byte, error) {
	return f(ctx, url)
}

// FSFetcher reads URLs as slash-separated paths inside an fs.FS. A leading
// "file://" or "/" is stripped.
type FSFetcher struct {
	FS fs.FS
}

// Fetch reads the file.
func (f FSFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	name := strings.TrimPrefix(strings.TrimPrefix(url, "file://"), "/")
	data, err := fs.ReadFile(f.FS, name)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	return data, nil
}

// MapFetcher serves fixed contents from memory.
type MapFetcher map[string][]byte

// Fetch returns the stored bytes or fs.ErrNotExist.
func (m MapFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, ok := m[url]
	if !ok {
		return nil, fmt.Errorf("fetch %s: %w", url, fs.ErrNotExist)
	}
	return data, nil
}

// GatedFetcher holds every fetch until its URL is opened. Scripted hosts use
// it to decide exactly when a load completes.
type GatedFetcher struct {
	inner Fetcher

	mu    sync.Mutex
	gates map[string]chan struct{}
}

// NewGatedFetcher wraps inner.
func NewGatedFetcher(inner Fetcher) *GatedFetcher {
	return &GatedFetcher{inner: inner, gates: make(map[string]chan struct{})}
}

// Open releases pending and future fetches of url. Opening twice is a no-op.
func (g *GatedFetcher) Open(url string) {
	gate := g.gate(url)
	g.mu.Lock()
	defer g.mu.Unlock()
	select {
	case <-gate:
	default:
		close(gate)
	}
}

// Fetch blocks until url is opened or ctx is done.
func (g *GatedFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	select {
	case <-g.gate(url):
		return g.inner.Fetch(ctx, url)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (g *GatedFetcher) gate(url string) chan struct{} {
	g.mu.Lock()
	defer g.mu.Unlock()
	gate, ok := g.gates[url]
	if !ok {
		gate = make(chan struct{})
		g.gates[url] = gate
	}
	return gate
}
