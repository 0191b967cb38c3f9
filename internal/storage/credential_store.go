package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/arenahub/playground-client/internal/audit"
	"github.com/arenahub/playground-client/internal/config"
	"github.com/arenahub/playground-client/internal/model"
)

const migrationFlightKey = "credential-migration"

// keyState tracks keys whose copies disagree across tiers after a partial
// failure. It lives in memory only.
type keyState int

const (
	keyRemoved keyState = iota + 1 // a remove left a copy in some tier
	keyStale                       // the primary missed the latest write
)

// Tiers are the candidate backends, best first. Any of them may be nil.
type Tiers struct {
	Secure   Backend
	Durable  Backend
	Volatile Backend
}

type MigrationReport struct {
	Copied  int `json:"copied"`
	Skipped int `json:"skipped"`
	Removed int `json:"removed"`
}

// CredentialStore persists secrets in the best tier found at startup.
type CredentialStore struct {
	tier     model.Tier
	primary  Backend
	mirror   Backend
	durable  Backend
	volatile Backend
	legacy   map[string]string

	// legacySource holds plaintext keys from older builds; defaults to durable
	legacySource Backend

	flight   singleflight.Group
	migrated atomic.Bool
	mu       sync.Mutex
	report   MigrationReport
	states   map[string]keyState
}

type CredentialOption func(*CredentialStore)

// WithLegacySource reads legacy plaintext keys from b instead of the durable
// tier. Used when the durable tier is sealed and old builds wrote elsewhere.
func WithLegacySource(b Backend) CredentialOption {
	return func(s *CredentialStore) {
		s.legacySource = b
	}
}

// WithLegacyKeys overrides the legacy plaintext key map used by Migrate.
func WithLegacyKeys(keys map[string]string) CredentialOption {
	return func(s *CredentialStore) {
		s.legacy = keys
	}
}

// NewCredentialStore probes secure, durable and volatile tiers in that order.
// The chosen tier is fixed for the life of the store.
func NewCredentialStore(ctx context.Context, tiers Tiers, opts ...CredentialOption) *CredentialStore {
	s := &CredentialStore{
		volatile: tiers.Volatile,
		legacy:   LegacyCredentialKeys,
		states:   make(map[string]keyState),
	}
	if s.volatile == nil {
		s.volatile = NewMemoryBackend()
	}
	for _, opt := range opts {
		opt(s)
	}

	probeCtx, cancel := context.WithTimeout(ctx, config.StorageProbeTimeout)
	defer cancel()

	secureOK := probe(probeCtx, tiers.Secure)
	durableOK := probe(probeCtx, tiers.Durable)
	if durableOK {
		s.durable = tiers.Durable
	}
	if s.legacySource == nil {
		s.legacySource = s.durable
	}

	switch {
	case secureOK:
		s.tier, s.primary = model.TierSecure, tiers.Secure
		if durableOK {
			s.mirror = tiers.Durable
		}
	case durableOK:
		s.tier, s.primary = model.TierDurable, tiers.Durable
	default:
		s.tier, s.primary = model.TierVolatile, s.volatile
	}

	audit.Log(audit.Event{
		Type: audit.EventCredentialTierSelected,
		Details: map[string]interface{}{
			"tier":     string(s.tier),
			"backend":  s.primary.Name(),
			"mirrored": s.mirror != nil,
		},
	})

	return s
}

func probe(ctx context.Context, b Backend) bool {
	if b == nil {
		return false
	}
	if err := b.Probe(ctx); err != nil {
		log.Warn().Err(err).Str("backend", b.Name()).Msg("storage tier unavailable")
		return false
	}
	return true
}

func (s *CredentialStore) Tier() model.Tier {
	return s.tier
}

// IsAvailable reports whether credentials survive a restart.
func (s *CredentialStore) IsAvailable() bool {
	return s.tier != model.TierVolatile
}

func (s *CredentialStore) Get(ctx context.Context, key string, opts ...Option) (string, bool, error) {
	cred, ok, err := s.Lookup(ctx, key, opts...)
	if err != nil || !ok {
		return "", false, err
	}
	return cred.Value, true, nil
}

// Lookup is Get that also reports which tier the value was found in.
func (s *CredentialStore) Lookup(ctx context.Context, key string, opts ...Option) (model.StoredCredential, bool, error) {
	o := applyOptions(opts)
	if err := s.ensureMigrated(ctx); err != nil && o.critical {
		return model.StoredCredential{}, false, err
	}

	order := s.readOrder()
	switch s.stateOf(key) {
	case keyRemoved:
		return model.StoredCredential{}, false, nil
	case keyStale:
		order = s.volatileFirst()
	}

	for i, b := range order {
		value, ok, err := b.Get(ctx, key)
		if err != nil {
			if o.critical {
				return model.StoredCredential{}, false, fmt.Errorf("read credential %s from %s: %w", key, b.Name(), err)
			}
			log.Warn().Err(err).Str("key", key).Str("backend", b.Name()).Msg("credential read failed")
			continue
		}
		if !ok {
			continue
		}
		if i > 0 && b == s.mirror {
			s.heal(ctx, key, value)
		}
		return model.StoredCredential{Key: key, Value: value, Tier: s.tierOf(b)}, true, nil
	}
	return model.StoredCredential{}, false, nil
}

func (s *CredentialStore) tierOf(b Backend) model.Tier {
	switch b {
	case s.primary:
		return s.tier
	case s.mirror:
		return model.TierDurable
	default:
		return model.TierVolatile
	}
}

// heal restores a primary copy from the durable mirror.
func (s *CredentialStore) heal(ctx context.Context, key, value string) {
	if err := s.primary.Set(ctx, key, value); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("credential heal from mirror failed")
		return
	}
	s.setState(key, 0)
	log.Info().Str("key", key).Str("backend", s.primary.Name()).Msg("credential restored from mirror")
}

func (s *CredentialStore) Set(ctx context.Context, key, value string, opts ...Option) error {
	o := applyOptions(opts)
	if err := s.ensureMigrated(ctx); err != nil && o.critical {
		return err
	}
	return s.write(ctx, key, value, o)
}

func (s *CredentialStore) write(ctx context.Context, key, value string, o callOptions) error {
	if err := s.primary.Set(ctx, key, value); err != nil {
		if o.critical {
			return fmt.Errorf("write credential %s to %s: %w", key, s.primary.Name(), err)
		}
		log.Warn().Err(err).Str("key", key).Str("backend", s.primary.Name()).Msg("credential write failed")
		// the primary may still hold the previous value
		if delErr := s.primary.Delete(ctx, key); delErr != nil {
			log.Warn().Err(delErr).Str("key", key).Msg("stale primary credential not dropped")
		}
		s.setState(key, keyStale)
	} else {
		s.setState(key, 0)
	}
	if s.mirror != nil {
		if err := s.mirror.Set(ctx, key, value); err != nil {
			log.Warn().Err(err).Str("key", key).Str("backend", s.mirror.Name()).Msg("credential mirror write failed")
		}
	}
	if s.primary != s.volatile {
		_ = s.volatile.Set(ctx, key, value)
	}
	return nil
}

// Remove clears key from every tier that could hold a copy, including the
// legacy plaintext aliases of that key.
func (s *CredentialStore) Remove(ctx context.Context, key string, opts ...Option) error {
	o := applyOptions(opts)
	if err := s.ensureMigrated(ctx); err != nil && o.critical {
		return err
	}

	var errs []error
	for _, b := range s.allTiers() {
		if err := b.Delete(ctx, key); err != nil {
			errs = append(errs, fmt.Errorf("remove %s from %s: %w", key, b.Name(), err))
		}
	}
	if s.legacySource != nil {
		for legacyKey, current := range s.legacy {
			if current != key {
				continue
			}
			if err := s.legacySource.Delete(ctx, legacyKey); err != nil {
				errs = append(errs, fmt.Errorf("remove legacy %s: %w", legacyKey, err))
			}
		}
	}

	err := errors.Join(errs...)
	if err == nil {
		s.setState(key, 0)
		return nil
	}
	// a surviving copy must not be served or healed back
	s.setState(key, keyRemoved)
	if o.critical {
		return err
	}
	log.Warn().Err(err).Str("key", key).Msg("credential remove incomplete")
	return nil
}

func (s *CredentialStore) stateOf(key string) keyState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.states[key]
}

func (s *CredentialStore) setState(key string, st keyState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st == 0 {
		delete(s.states, key)
		return
	}
	s.states[key] = st
}

// Migrate moves legacy plaintext credentials into the primary tier. Concurrent
// callers share one run; once it succeeds later calls return the same report.
func (s *CredentialStore) Migrate(ctx context.Context) (MigrationReport, error) {
	if s.migrated.Load() {
		return s.lastReport(), nil
	}

	v, err, _ := s.flight.Do(migrationFlightKey, func() (interface{}, error) {
		if s.migrated.Load() {
			return s.lastReport(), nil
		}
		report, err := s.migrateLegacy(context.WithoutCancel(ctx))
		if err != nil {
			return report, err
		}
		s.mu.Lock()
		s.report = report
		s.mu.Unlock()
		s.migrated.Store(true)
		return report, nil
	})
	if err != nil {
		return MigrationReport{}, err
	}
	return v.(MigrationReport), nil
}

func (s *CredentialStore) lastReport() MigrationReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.report
}

func (s *CredentialStore) ensureMigrated(ctx context.Context) error {
	if s.migrated.Load() {
		return nil
	}
	if _, err := s.Migrate(ctx); err != nil {
		log.Warn().Err(err).Msg("credential migration failed, will retry")
		return err
	}
	return nil
}

func (s *CredentialStore) migrateLegacy(ctx context.Context) (MigrationReport, error) {
	var report MigrationReport
	src := s.legacySource
	if src == nil {
		return report, nil
	}

	legacyKeys := make([]string, 0, len(s.legacy))
	for k := range s.legacy {
		legacyKeys = append(legacyKeys, k)
	}
	sort.Strings(legacyKeys)

	for _, legacyKey := range legacyKeys {
		key := s.legacy[legacyKey]

		value, ok, err := src.Get(ctx, legacyKey)
		if err != nil {
			return report, fmt.Errorf("read legacy %s: %w", legacyKey, err)
		}
		if !ok {
			continue
		}

		_, present, err := s.primary.Get(ctx, key)
		if err != nil {
			return report, fmt.Errorf("check %s: %w", key, err)
		}
		if present {
			report.Skipped++
		} else {
			if err := s.write(ctx, key, value, callOptions{critical: true}); err != nil {
				return report, err
			}
			report.Copied++
		}

		if err := src.Delete(ctx, legacyKey); err != nil {
			return report, fmt.Errorf("delete legacy %s: %w", legacyKey, err)
		}
		report.Removed++
	}

	if report.Removed > 0 {
		audit.Log(audit.Event{
			Type: audit.EventCredentialMigration,
			Details: map[string]interface{}{
				"copied":  report.Copied,
				"skipped": report.Skipped,
				"removed": report.Removed,
				"tier":    string(s.tier),
			},
		})
	}
	return report, nil
}

func (s *CredentialStore) readOrder() []Backend {
	order := []Backend{s.primary}
	if s.mirror != nil {
		order = append(order, s.mirror)
	}
	if s.primary != s.volatile {
		order = append(order, s.volatile)
	}
	return order
}

// volatileFirst is the read order for a key whose primary copy is stale.
func (s *CredentialStore) volatileFirst() []Backend {
	order := []Backend{s.volatile}
	if s.mirror != nil {
		order = append(order, s.mirror)
	}
	if s.primary != s.volatile {
		order = append(order, s.primary)
	}
	return order
}

func (s *CredentialStore) allTiers() []Backend {
	seen := make(map[Backend]bool)
	var out []Backend
	for _, b := range []Backend{s.primary, s.mirror, s.durable, s.volatile} {
		if b == nil || seen[b] {
			continue
		}
		seen[b] = true
		out = append(out, b)
	}
	return out
}
