package main

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/arenahub/playground-client/internal/config"
	"github.com/arenahub/playground-client/internal/database"
	"github.com/arenahub/playground-client/internal/dispatch"
	"github.com/arenahub/playground-client/internal/portal"
	"github.com/arenahub/playground-client/internal/redis"
	"github.com/arenahub/playground-client/internal/service"
	"github.com/arenahub/playground-client/internal/session"
	"github.com/arenahub/playground-client/internal/storage"
)

// client is the fully wired core, the same graph a UI shell would build.
type client struct {
	cfg        *config.Config
	creds      *storage.CredentialStore
	kv         *storage.KeyValueStore
	dispatcher *dispatch.Dispatcher
	store      *session.Store
	manager    *portal.Manager
	auth       *service.AuthAPI
	portal     *service.PortalAPI
	prefs      *service.PreferencesAPI

	closers []func() error
}

func newClient(ctx context.Context, cfg *config.Config) (*client, error) {
	c := &client{cfg: cfg}

	credDurable, stateDurable := c.openDurable(ctx)

	tiers := storage.Tiers{Durable: credDurable}
	if !cfg.DisableKeyring {
		tiers.Secure = storage.NewKeyringBackend(cfg.KeyringService)
	}
	if cfg.CredentialSealKey != "" && credDurable != nil {
		sealed, err := storage.NewSealedBackend(credDurable, cfg.CredentialSealKey)
		if err != nil {
			c.Close()
			return nil, err
		}
		if tiers.Secure == nil {
			tiers.Secure, tiers.Durable = sealed, nil
		} else {
			tiers.Durable = sealed
		}
	}

	var opts []storage.CredentialOption
	if stateDurable != nil {
		// older builds kept credentials in the plain key-value store
		opts = append(opts, storage.WithLegacySource(stateDurable))
	}

	c.creds = storage.NewCredentialStore(ctx, tiers, opts...)
	c.kv = storage.NewKeyValueStore(ctx, stateDurable, nil)

	c.dispatcher = dispatch.New(cfg, c.creds, c.kv)
	c.auth = service.NewAuthAPI(c.dispatcher)
	c.store = session.NewStore(c.creds, c.kv, c.auth)
	c.dispatcher.Attach(c.store, c.store)

	c.manager = portal.NewManager(c.store, c.dispatcher)
	c.portal = service.NewPortalAPI(c.dispatcher, c.manager, c.store)
	c.prefs = service.NewPreferencesAPI(c.kv, cfg.DefaultLocale)

	log.Info().
		Str("credentialTier", string(c.creds.Tier())).
		Str("stateTier", string(c.kv.Tier())).
		Msg("client wired")

	return c, nil
}

// openDurable connects the durable tier: redis when configured, otherwise
// SQL. A durable tier that cannot be reached is left nil and the stores
// degrade to memory.
func (c *client) openDurable(ctx context.Context) (creds, state storage.Backend) {
	if c.cfg.RedisURL != "" {
		rc, err := redis.NewClient(ctx, c.cfg.RedisURL)
		if err == nil {
			c.closers = append(c.closers, rc.Close)
			log.Info().Msg("redis durable tier connected")
			return storage.NewRedisBackend(rc.Client, storage.NamespaceCredentials),
				storage.NewRedisBackend(rc.Client, storage.NamespaceState)
		}
		log.Warn().Err(err).Msg("redis unavailable, falling back to sql storage")
	}

	db, err := database.Connect(c.cfg.StorageDSN)
	if err != nil {
		log.Warn().Err(err).Msg("durable storage unavailable")
		return nil, nil
	}
	c.closers = append(c.closers, db.Close)

	pingCtx, cancel := context.WithTimeout(ctx, config.StorageProbeTimeout)
	defer cancel()
	if err := db.Ping(pingCtx); err != nil {
		log.Warn().Err(err).Msg("durable storage unreachable")
		return nil, nil
	}

	credBackend, err := storage.NewSQLBackend(ctx, db.DB, storage.NamespaceCredentials)
	if err != nil {
		log.Warn().Err(err).Msg("failed to prepare credential table")
		return nil, nil
	}
	stateBackend, err := storage.NewSQLBackend(ctx, db.DB, storage.NamespaceState)
	if err != nil {
		log.Warn().Err(err).Msg("failed to prepare state table")
		return credBackend, nil
	}
	return credBackend, stateBackend
}

func (c *client) Close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		errs = append(errs, c.closers[i]())
	}
	c.closers = nil
	return errors.Join(errs...)
}
