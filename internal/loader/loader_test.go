package loader

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"io"
	"log/slog"
	"sync"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/bmp"
)

type queuePoster struct {
	mu     sync.Mutex
	fns    []func()
	closed bool
}

func (p *queuePoster) Post(_ string, fn func()) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return false
	}
	p.fns = append(p.fns, fn)
	return true
}

func (p *queuePoster) drain() int {
	p.mu.Lock()
	fns := p.fns
	p.fns = nil
	p.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
	return len(fns)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))))
	return buf.Bytes()
}

func encodeBMP(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, bmp.Encode(&buf, image.NewGray(image.Rect(0, 0, w, h))))
	return buf.Bytes()
}

func newTestLoader(t *testing.T, f Fetcher) (*Loader, *queuePoster) {
	t.Helper()
	p := &queuePoster{}
	l := New(p, WithFetcher(f), WithLogger(quietLogger()))
	t.Cleanup(l.Close)
	return l, p
}

func TestLoader_AcquireIsShared(t *testing.T) {
	l, _ := newTestLoader(t, MapFetcher{})

	a := l.Acquire("a.png")
	b := l.Acquire("a.png")

	assert.Same(t, a, b)
	assert.Equal(t, 1, l.Len())
	got, ok := l.Lookup("a.png")
	assert.True(t, ok)
	assert.Same(t, a, got)
}

func TestLoader_LoadNotifiesSubscribersOnce(t *testing.T) {
	l, p := newTestLoader(t, MapFetcher{"brick.png": encodePNG(t, 4, 2)})
	r := l.Acquire("brick.png")
	calls := 0
	r.Subscribe(func() { calls++ })

	_, ok := r.Value()
	assert.False(t, ok)
	assert.Equal(t, StatePending, r.State())

	l.Wait()
	assert.Equal(t, 1, p.drain())

	assert.Equal(t, StateLoaded, r.State())
	assert.Equal(t, 1, calls)
	assert.Nil(t, r.Handle())
	obj, ok := r.Value()
	require.True(t, ok)
	asset := obj.(*Asset)
	assert.Equal(t, "png", asset.Format)
	assert.Equal(t, 4, asset.Width)
	assert.Equal(t, 2, asset.Height)
	assert.True(t, asset.IsImage())
}

func TestLoader_FetchFailure(t *testing.T) {
	l, p := newTestLoader(t, MapFetcher{})
	r := l.Acquire("missing.png")
	calls := 0
	r.Subscribe(func() { calls++ })

	l.Wait()
	p.drain()

	assert.Equal(t, StateFailed, r.State())
	assert.Error(t, r.Err())
	assert.Equal(t, 0, calls)
	_, ok := r.Value()
	assert.False(t, ok)
}

func TestLoader_CancelDropsCompletion(t *testing.T) {
	l, p := newTestLoader(t, MapFetcher{"a.png": encodePNG(t, 1, 1)})
	r := l.Acquire("a.png")
	calls := 0
	r.Subscribe(func() { calls++ })

	h := r.Handle()
	require.NotNil(t, h)
	h.Cancel()
	h.Cancel()

	l.Wait()
	p.drain()

	assert.True(t, h.Cancelled())
	assert.Equal(t, StatePending, r.State())
	assert.Equal(t, 0, calls)
}

func TestLoader_SweepEvictsUnsubscribed(t *testing.T) {
	gate := NewGatedFetcher(MapFetcher{"a.png": encodePNG(t, 1, 1), "b.png": encodePNG(t, 1, 1)})
	l, p := newTestLoader(t, gate)
	a := l.Acquire("a.png")
	b := l.Acquire("b.png")
	sub := b.Subscribe(func() {})
	handle := a.Handle()

	n := l.Sweep()

	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"b.png"}, l.URLs())
	assert.Equal(t, StateCancelled, a.State())
	assert.True(t, handle.Cancelled())

	sub.Release()
	assert.Equal(t, 1, l.Sweep())
	assert.Equal(t, 0, l.Len())

	l.Wait()
	p.drain()
	assert.NotEqual(t, StateLoaded, b.State())
}

func TestLoader_ClosedPosterDropsCompletion(t *testing.T) {
	l, p := newTestLoader(t, MapFetcher{"a.png": encodePNG(t, 1, 1)})
	p.closed = true
	r := l.Acquire("a.png")

	l.Wait()

	assert.Equal(t, 0, p.drain())
	assert.Equal(t, StatePending, r.State())
}

func TestGatedFetcher_HoldsUntilOpen(t *testing.T) {
	gate := NewGatedFetcher(MapFetcher{"a.png": encodePNG(t, 3, 3)})
	l, p := newTestLoader(t, gate)
	r := l.Acquire("a.png")

	select {
	case <-r.Handle().Fetched():
		t.Fatal("fetch completed before gate opened")
	case <-time.After(20 * time.Millisecond):
	}

	fetched := r.Handle().Fetched()
	gate.Open("a.png")
	gate.Open("a.png")

	select {
	case <-fetched:
	case <-time.After(5 * time.Second):
		t.Fatal("fetch did not complete after gate opened")
	}
	p.drain()
	assert.Equal(t, StateLoaded, r.State())
}

func TestGatedFetcher_ContextCancel(t *testing.T) {
	gate := NewGatedFetcher(MapFetcher{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := gate.Fetch(ctx, "a.png")

	assert.True(t, errors.Is(err, context.Canceled))
}

func TestFSFetcher(t *testing.T) {
	f := FSFetcher{FS: fstest.MapFS{"textures/a.txt": {Data: []byte("hello")}}}

	data, err := f.Fetch(context.Background(), "file:///textures/a.txt")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	_, err = f.Fetch(context.Background(), "textures/missing.txt")
	assert.Error(t, err)
}

func TestDecodeAsset(t *testing.T) {
	tests := []struct {
		name   string
		data   []byte
		format string
		width  int
		height int
	}{
		{"png", encodePNG(t, 8, 4), "png", 8, 4},
		{"bmp", encodeBMP(t, 2, 5), "bmp", 2, 5},
		{"raw text", []byte("void main() {}"), "", 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			asset, err := DecodeAsset("x", tt.data)
			require.NoError(t, err)
			assert.Equal(t, tt.format, asset.Format)
			assert.Equal(t, tt.width, asset.Width)
			assert.Equal(t, tt.height, asset.Height)
			assert.Equal(t, tt.data, asset.Data)
		})
	}
}

func TestDecodeAsset_CorruptImage(t *testing.T) {
	data := encodePNG(t, 8, 8)[:12]

	_, err := DecodeAsset("broken.png", data)

	assert.Error(t, err)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "pending", StatePending.String())
	assert.Equal(t, "loaded", StateLoaded.String())
	assert.Equal(t, "failed", StateFailed.String())
	assert.Equal(t, "cancelled", StateCancelled.String())
}
