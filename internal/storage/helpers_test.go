package storage

import (
	"context"
	"errors"
	"sync"
)

var errBackendDown = errors.New("backend down")

// flakyBackend wraps a memory backend and fails selected operations.
type flakyBackend struct {
	*MemoryBackend
	name       string
	failProbe  bool
	failGet    bool
	failSet    bool
	failDelete bool
}

func newFlaky(name string) *flakyBackend {
	return &flakyBackend{MemoryBackend: NewMemoryBackend(), name: name}
}

func (f *flakyBackend) Name() string { return f.name }

func (f *flakyBackend) Probe(ctx context.Context) error {
	if f.failProbe {
		return errBackendDown
	}
	return nil
}

func (f *flakyBackend) Get(ctx context.Context, key string) (string, bool, error) {
	if f.failGet {
		return "", false, errBackendDown
	}
	return f.MemoryBackend.Get(ctx, key)
}

func (f *flakyBackend) Set(ctx context.Context, key, value string) error {
	if f.failSet {
		return errBackendDown
	}
	return f.MemoryBackend.Set(ctx, key, value)
}

func (f *flakyBackend) Delete(ctx context.Context, key string) error {
	if f.failDelete {
		return errBackendDown
	}
	return f.MemoryBackend.Delete(ctx, key)
}

// gatedBackend blocks reads of one key until the gate opens and counts reads.
type gatedBackend struct {
	*MemoryBackend
	gatedKey string
	gate     chan struct{}

	mu    sync.Mutex
	reads map[string]int
}

func newGated(gatedKey string) *gatedBackend {
	return &gatedBackend{
		MemoryBackend: NewMemoryBackend(),
		gatedKey:      gatedKey,
		gate:          make(chan struct{}),
		reads:         make(map[string]int),
	}
}

func (g *gatedBackend) Name() string { return "gated" }

func (g *gatedBackend) Get(ctx context.Context, key string) (string, bool, error) {
	g.mu.Lock()
	g.reads[key]++
	g.mu.Unlock()
	if key == g.gatedKey {
		<-g.gate
	}
	return g.MemoryBackend.Get(ctx, key)
}

func (g *gatedBackend) readCount(key string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.reads[key]
}
