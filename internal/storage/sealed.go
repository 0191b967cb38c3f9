package storage

import (
	"context"
	"fmt"

	"github.com/arenahub/playground-client/internal/util"
)

const sealedKeyPrefix = "sealed:"

// SealedBackend stores AES-GCM sealed values in another backend. It stands in
// for the secure tier on platforms without a usable keyring.
type SealedBackend struct {
	inner  Backend
	sealer *util.Sealer
}

func NewSealedBackend(inner Backend, secret string) (*SealedBackend, error) {
	key, err := util.SealKey(secret)
	if err != nil {
		return nil, err
	}
	sealer, err := util.NewSealer(key)
	if err != nil {
		return nil, err
	}
	return &SealedBackend{inner: inner, sealer: sealer}, nil
}

func (b *SealedBackend) Name() string { return "sealed(" + b.inner.Name() + ")" }

func (b *SealedBackend) Get(ctx context.Context, key string) (string, bool, error) {
	sealed, ok, err := b.inner.Get(ctx, sealedKeyPrefix+key)
	if err != nil || !ok {
		return "", false, err
	}
	value, err := b.sealer.Open(sealed)
	if err != nil {
		return "", false, fmt.Errorf("open %s: %w", key, err)
	}
	return value, true, nil
}

func (b *SealedBackend) Set(ctx context.Context, key, value string) error {
	sealed, err := b.sealer.Seal(value)
	if err != nil {
		return err
	}
	return b.inner.Set(ctx, sealedKeyPrefix+key, sealed)
}

func (b *SealedBackend) Delete(ctx context.Context, key string) error {
	return b.inner.Delete(ctx, sealedKeyPrefix+key)
}

func (b *SealedBackend) Probe(ctx context.Context) error {
	if err := b.inner.Probe(ctx); err != nil {
		return err
	}
	return roundTripProbe(ctx, b)
}
