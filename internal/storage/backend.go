package storage

import (
	"context"
	"fmt"
)

// Backend is one persistence tier. Get reports absence with ok=false, never
// with an error.
type Backend interface {
	Name() string
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	Probe(ctx context.Context) error
}

const probeKey = "__arena_probe__"

// roundTripProbe writes, reads back and deletes a throwaway key.
func roundTripProbe(ctx context.Context, b Backend) error {
	const want = "ok"
	if err := b.Set(ctx, probeKey, want); err != nil {
		return fmt.Errorf("probe %s write: %w", b.Name(), err)
	}
	got, ok, err := b.Get(ctx, probeKey)
	if err != nil {
		return fmt.Errorf("probe %s read: %w", b.Name(), err)
	}
	if !ok || got != want {
		return fmt.Errorf("probe %s: value did not round trip", b.Name())
	}
	if err := b.Delete(ctx, probeKey); err != nil {
		return fmt.Errorf("probe %s delete: %w", b.Name(), err)
	}
	return nil
}

type callOptions struct {
	critical bool
}

// Option tunes a single store call.
type Option func(*callOptions)

// Critical makes a storage failure surface as an error instead of being
// logged and swallowed.
func Critical() Option {
	return func(o *callOptions) {
		o.critical = true
	}
}

func applyOptions(opts []Option) callOptions {
	var o callOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
