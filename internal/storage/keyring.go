package storage

import (
	"context"
	"errors"

	"github.com/zalando/go-keyring"
)

// KeyringBackend is the secure tier backed by the OS credential facility
// (Keychain, Secret Service, Windows Credential Manager).
type KeyringBackend struct {
	service string
}

func NewKeyringBackend(service string) *KeyringBackend {
	return &KeyringBackend{service: service}
}

func (b *KeyringBackend) Name() string { return "keyring" }

func (b *KeyringBackend) Get(_ context.Context, key string) (string, bool, error) {
	value, err := keyring.Get(b.service, key)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

func (b *KeyringBackend) Set(_ context.Context, key, value string) error {
	return keyring.Set(b.service, key, value)
}

func (b *KeyringBackend) Delete(_ context.Context, key string) error {
	err := keyring.Delete(b.service, key)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil
	}
	return err
}

func (b *KeyringBackend) Probe(ctx context.Context) error {
	return roundTripProbe(ctx, b)
}
