package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/arenahub/playground-client/internal/audit"
	"github.com/arenahub/playground-client/internal/model"
	"github.com/arenahub/playground-client/internal/storage"
)

// PortalSession projects the current session plus the cached try-out id. It
// returns nil when nobody is logged in.
func (s *Store) PortalSession() *model.PortalSession {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state.Status != model.SessionStatusAuthenticated || s.state.Session == nil {
		return nil
	}
	return &model.PortalSession{Session: s.state.Session.Clone(), TryOutID: s.tryOutID}
}

func (s *Store) BearerToken() string {
	if sess := s.Current(); sess != nil {
		return sess.BearerToken
	}
	return ""
}

func (s *Store) AcademyID() string {
	if sess := s.Current(); sess != nil {
		return sess.PortalAcademyID
	}
	return ""
}

func (s *Store) TryOutID() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tryOutID
}

func (s *Store) setTryOutID(id int64) {
	s.mu.Lock()
	s.tryOutID = id
	s.mu.Unlock()
}

// UpdatePortalTokens persists new portal tokens and then swaps them into the
// session. On a persist failure the session is left untouched.
func (s *Store) UpdatePortalTokens(ctx context.Context, tokens model.PortalTokens) error {
	if tokens.Access == "" {
		return fmt.Errorf("portal access token is empty")
	}
	if s.Current() == nil {
		return fmt.Errorf("no authenticated session")
	}

	raw, err := json.Marshal(tokens)
	if err != nil {
		return fmt.Errorf("encode portal tokens: %w", err)
	}
	if err := s.creds.Set(ctx, storage.KeyPortalTokens, string(raw), storage.Critical()); err != nil {
		return fmt.Errorf("persist portal tokens: %w", err)
	}

	if !s.mutate(func(sess *model.Session) { sess.PortalTokens = &tokens }) {
		return fmt.Errorf("session ended during token update")
	}
	return nil
}

// UpdatePortalIdentity records tenant and player ids learned from the portal.
// Empty values leave the current ones in place.
func (s *Store) UpdatePortalIdentity(ctx context.Context, academyID, playerID string) error {
	sess := s.Current()
	if sess == nil {
		return fmt.Errorf("no authenticated session")
	}
	if academyID == "" {
		academyID = sess.PortalAcademyID
	}
	if playerID == "" {
		playerID = sess.PortalPlayerID
	}
	if academyID == sess.PortalAcademyID && playerID == sess.PortalPlayerID {
		return nil
	}

	if academyID != "" {
		if err := s.creds.Set(ctx, storage.KeyPortalAcademyID, academyID, storage.Critical()); err != nil {
			return fmt.Errorf("persist portal academy: %w", err)
		}
	}
	s.mutate(func(sess *model.Session) {
		sess.PortalAcademyID = academyID
		sess.PortalPlayerID = playerID
	})
	if current := s.Current(); current != nil {
		_ = s.kv.SetJSON(ctx, storage.KeySessionMeta, current.Meta())
	}
	return nil
}

// CacheTryOutID remembers the try-out id for the current portal tenant.
func (s *Store) CacheTryOutID(ctx context.Context, id int64) error {
	sess := s.Current()
	if sess == nil {
		return fmt.Errorf("no authenticated session")
	}

	s.setTryOutID(id)
	snapshot := model.PortalSnapshot{
		AcademyID: sess.PortalAcademyID,
		PlayerID:  sess.PortalPlayerID,
		TryOutID:  id,
	}
	if err := s.kv.SetJSON(ctx, storage.KeyPortalSession, snapshot); err != nil {
		return fmt.Errorf("persist portal snapshot: %w", err)
	}
	return nil
}

// ClearPortalCredentials drops portal tokens, the portal tenant id and the
// cached try-out id. The app bearer token and user type are kept. Memory is
// cleared first so concurrent readers stop using the rejected credentials.
func (s *Store) ClearPortalCredentials(ctx context.Context) error {
	academyID := s.AcademyID()

	s.setTryOutID(0)
	s.mutate(func(sess *model.Session) {
		sess.PortalTokens = nil
		sess.PortalAcademyID = ""
	})

	var errs []error
	for _, key := range []string{storage.KeyPortalTokens, storage.KeyPortalAcademyID} {
		if err := s.creds.Remove(ctx, key, storage.Critical()); err != nil {
			errs = append(errs, err)
		}
	}
	if err := s.kv.Remove(ctx, storage.KeyPortalSession, storage.Critical()); err != nil {
		errs = append(errs, err)
	}
	if sess := s.Current(); sess != nil {
		if err := s.kv.SetJSON(ctx, storage.KeySessionMeta, sess.Meta(), storage.Critical()); err != nil {
			errs = append(errs, err)
		}
	}

	audit.Log(audit.Event{Type: audit.EventPortalCredentialsClear, AcademyID: academyID})

	if err := errors.Join(errs...); err != nil {
		log.Warn().Err(err).Msg("portal credentials only partially cleared")
		return err
	}
	return nil
}
