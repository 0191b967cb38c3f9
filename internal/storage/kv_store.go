package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/arenahub/playground-client/internal/config"
	"github.com/arenahub/playground-client/internal/model"
)

// KeyValueStore holds non-secret state: drafts, filters, session metadata.
// Same fallback rules as CredentialStore without the secure tier.
type KeyValueStore struct {
	tier     model.Tier
	primary  Backend
	volatile Backend
}

func NewKeyValueStore(ctx context.Context, durable, volatile Backend) *KeyValueStore {
	if volatile == nil {
		volatile = NewMemoryBackend()
	}

	probeCtx, cancel := context.WithTimeout(ctx, config.StorageProbeTimeout)
	defer cancel()

	s := &KeyValueStore{tier: model.TierVolatile, primary: volatile, volatile: volatile}
	if probe(probeCtx, durable) {
		s.tier, s.primary = model.TierDurable, durable
	}
	log.Debug().Str("tier", string(s.tier)).Str("backend", s.primary.Name()).Msg("key-value tier selected")
	return s
}

func (s *KeyValueStore) Tier() model.Tier {
	return s.tier
}

func (s *KeyValueStore) Get(ctx context.Context, key string, opts ...Option) (string, bool, error) {
	o := applyOptions(opts)

	value, ok, err := s.primary.Get(ctx, key)
	if err != nil {
		if o.critical {
			return "", false, fmt.Errorf("read %s: %w", key, err)
		}
		log.Warn().Err(err).Str("key", key).Msg("state read failed")
	}
	if ok {
		return value, true, nil
	}
	if s.primary != s.volatile {
		return s.volatile.Get(ctx, key)
	}
	return "", false, nil
}

func (s *KeyValueStore) Set(ctx context.Context, key, value string, opts ...Option) error {
	o := applyOptions(opts)

	if err := s.primary.Set(ctx, key, value); err != nil {
		if o.critical {
			return fmt.Errorf("write %s: %w", key, err)
		}
		log.Warn().Err(err).Str("key", key).Msg("state write failed")
	}
	if s.primary != s.volatile {
		_ = s.volatile.Set(ctx, key, value)
	}
	return nil
}

func (s *KeyValueStore) Remove(ctx context.Context, key string, opts ...Option) error {
	o := applyOptions(opts)

	_ = s.volatile.Delete(ctx, key)
	if s.primary == s.volatile {
		return nil
	}
	if err := s.primary.Delete(ctx, key); err != nil {
		if o.critical {
			return fmt.Errorf("remove %s: %w", key, err)
		}
		log.Warn().Err(err).Str("key", key).Msg("state remove failed")
	}
	return nil
}

// GetJSON decodes the stored value into dest. A value that no longer decodes
// is treated as absent.
func (s *KeyValueStore) GetJSON(ctx context.Context, key string, dest any, opts ...Option) (bool, error) {
	raw, ok, err := s.Get(ctx, key, opts...)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal([]byte(raw), dest); err != nil {
		if applyOptions(opts).critical {
			return false, fmt.Errorf("decode %s: %w", key, err)
		}
		log.Warn().Err(err).Str("key", key).Msg("discarding undecodable state")
		return false, nil
	}
	return true, nil
}

func (s *KeyValueStore) SetJSON(ctx context.Context, key string, value any, opts ...Option) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return s.Set(ctx, key, string(raw), opts...)
}
