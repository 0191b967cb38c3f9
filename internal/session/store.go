package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/arenahub/playground-client/internal/audit"
	"github.com/arenahub/playground-client/internal/broker"
	"github.com/arenahub/playground-client/internal/model"
	"github.com/arenahub/playground-client/internal/storage"
)

// Authenticator performs the login calls against the auth endpoints.
type Authenticator interface {
	LoginPublic(ctx context.Context, creds model.Credentials) (*model.LoginResult, error)
	LoginPlayer(ctx context.Context, creds model.Credentials) (*model.LoginResult, error)
}

// State is a snapshot handed to readers and subscribers. Session is a copy.
type State struct {
	Status  model.SessionStatus
	Session *model.Session
	Err     error
}

func (s State) Authenticated() bool {
	return s.Status == model.SessionStatusAuthenticated && s.Session != nil
}

// Store owns the canonical session. Readers only ever see unauthenticated,
// pending or a fully persisted authenticated session.
type Store struct {
	creds *storage.CredentialStore
	kv    *storage.KeyValueStore
	auth  Authenticator

	// op serializes login, logout and restore so their persist-then-flip
	// sequences never interleave.
	op sync.Mutex

	mu       sync.RWMutex
	state    State
	tryOutID int64

	events *broker.Broker[State]
}

func NewStore(creds *storage.CredentialStore, kv *storage.KeyValueStore, auth Authenticator) *Store {
	return &Store{
		creds:  creds,
		kv:     kv,
		auth:   auth,
		state:  State{Status: model.SessionStatusUnauthenticated},
		events: broker.New[State]("session"),
	}
}

func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() State {
	return State{Status: s.state.Status, Session: s.state.Session.Clone(), Err: s.state.Err}
}

// Current returns a copy of the authenticated session, or nil.
func (s *Store) Current() *model.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state.Status != model.SessionStatusAuthenticated {
		return nil
	}
	return s.state.Session.Clone()
}

// Subscribe registers fn for every state change and returns its unsubscribe.
func (s *Store) Subscribe(fn func(State)) func() {
	return s.events.Subscribe(fn)
}

// transition swaps the state under the lock and notifies outside it.
func (s *Store) transition(next State) {
	s.mu.Lock()
	s.state = next
	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	s.events.Publish(snapshot)
}

// mutate edits the authenticated session in place. It is a no-op when no
// session exists.
func (s *Store) mutate(fn func(sess *model.Session)) bool {
	s.mu.Lock()
	if s.state.Session == nil {
		s.mu.Unlock()
		return false
	}
	fn(s.state.Session)
	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	s.events.Publish(snapshot)
	return true
}

type restored struct {
	meta         model.SessionMeta
	hasMeta      bool
	token        string
	portalTokens *model.PortalTokens
	academyID    string
	snapshot     model.PortalSnapshot
	lastSelected string
}

// Restore rehydrates the session from storage. Any read failure leaves the
// store unauthenticated; it never returns an error.
func (s *Store) Restore(ctx context.Context) State {
	s.op.Lock()
	defer s.op.Unlock()

	s.transition(State{Status: model.SessionStatusPending})

	r, err := s.readPersisted(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("session restore failed, starting unauthenticated")
		s.transition(State{Status: model.SessionStatusUnauthenticated})
		return s.State()
	}
	if !r.hasMeta || r.token == "" {
		log.Debug().Bool("hasMeta", r.hasMeta).Bool("hasToken", r.token != "").Msg("no persisted session")
		s.setTryOutID(0)
		s.transition(State{Status: model.SessionStatusUnauthenticated})
		return s.State()
	}

	sess := &model.Session{
		UserType:              r.meta.UserType,
		BearerToken:           r.token,
		PortalTokens:          r.portalTokens,
		PortalAcademyID:       firstNonEmpty(r.academyID, r.meta.PortalAcademyID),
		PortalPlayerID:        r.meta.PortalPlayerID,
		LastSelectedAcademyID: firstNonEmpty(r.lastSelected, r.meta.LastSelectedAcademyID),
	}
	if sess.UserType == "" {
		sess.UserType = model.UserTypePublic
	}

	tryOutID := int64(0)
	if r.snapshot.TryOutID > 0 && (r.snapshot.AcademyID == "" || r.snapshot.AcademyID == sess.PortalAcademyID) {
		tryOutID = r.snapshot.TryOutID
	}
	s.setTryOutID(tryOutID)
	s.transition(State{Status: model.SessionStatusAuthenticated, Session: sess})

	audit.Log(audit.Event{
		Type:      audit.EventSessionRestored,
		UserType:  string(sess.UserType),
		AcademyID: sess.PortalAcademyID,
	})
	return s.State()
}

func (s *Store) readPersisted(ctx context.Context) (restored, error) {
	var r restored
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		ok, err := s.kv.GetJSON(gctx, storage.KeySessionMeta, &r.meta, storage.Critical())
		r.hasMeta = ok
		return err
	})
	g.Go(func() error {
		token, _, err := s.creds.Get(gctx, storage.KeyBearerToken, storage.Critical())
		r.token = token
		return err
	})
	g.Go(func() error {
		raw, ok, err := s.creds.Get(gctx, storage.KeyPortalTokens, storage.Critical())
		if err != nil || !ok {
			return err
		}
		var tokens model.PortalTokens
		if err := json.Unmarshal([]byte(raw), &tokens); err != nil {
			log.Warn().Err(err).Msg("discarding undecodable portal tokens")
			return nil
		}
		r.portalTokens = &tokens
		return nil
	})
	g.Go(func() error {
		id, _, err := s.creds.Get(gctx, storage.KeyPortalAcademyID, storage.Critical())
		r.academyID = id
		return err
	})
	g.Go(func() error {
		_, err := s.kv.GetJSON(gctx, storage.KeyPortalSession, &r.snapshot)
		return err
	})
	g.Go(func() error {
		id, _, err := s.kv.Get(gctx, storage.KeyLastSelectedAcademy)
		r.lastSelected = id
		return err
	})

	if err := g.Wait(); err != nil {
		return restored{}, err
	}
	return r, nil
}

func (s *Store) LoginPublic(ctx context.Context, creds model.Credentials) error {
	return s.login(ctx, model.UserTypePublic, creds, s.auth.LoginPublic)
}

func (s *Store) LoginPlayer(ctx context.Context, creds model.Credentials) error {
	return s.login(ctx, model.UserTypePlayer, creds, s.auth.LoginPlayer)
}

// Adopt installs a session obtained outside the login endpoints, such as a
// registration response that already carries a token.
func (s *Store) Adopt(ctx context.Context, result *model.LoginResult) error {
	s.op.Lock()
	defer s.op.Unlock()
	return s.establish(ctx, result)
}

func (s *Store) login(ctx context.Context, userType model.UserType, creds model.Credentials, call func(context.Context, model.Credentials) (*model.LoginResult, error)) error {
	s.op.Lock()
	defer s.op.Unlock()

	s.transition(State{Status: model.SessionStatusPending})

	result, err := call(ctx, creds)
	if err == nil && (result == nil || result.BearerToken == "") {
		err = fmt.Errorf("login response carried no token")
	}
	if err != nil {
		// a failed re-login must not leave the previous session restorable
		if clearErr := s.teardown(ctx); clearErr != nil {
			log.Warn().Err(clearErr).Msg("failed login left persisted session behind")
		}
		s.setTryOutID(0)
		s.transition(State{Status: model.SessionStatusUnauthenticated, Err: err})
		audit.Log(audit.Event{Type: audit.EventLoginFailure, UserType: string(userType), Reason: err.Error()})
		return err
	}
	if result.UserType == "" {
		result.UserType = userType
	}
	return s.establish(ctx, result)
}

// establish persists a login result and only then flips to authenticated.
// Caller holds s.op.
func (s *Store) establish(ctx context.Context, result *model.LoginResult) error {
	lastSelected := ""
	if prev := s.State().Session; prev != nil {
		lastSelected = prev.LastSelectedAcademyID
	}
	if lastSelected == "" {
		lastSelected, _, _ = s.kv.Get(ctx, storage.KeyLastSelectedAcademy)
	}

	sess := &model.Session{
		UserType:              result.UserType,
		BearerToken:           result.BearerToken,
		PortalTokens:          result.PortalTokens,
		PortalAcademyID:       result.PortalAcademyID,
		PortalPlayerID:        result.PortalPlayerID,
		LastSelectedAcademyID: lastSelected,
	}

	if err := s.persist(ctx, sess); err != nil {
		s.rollback(ctx)
		s.transition(State{Status: model.SessionStatusUnauthenticated, Err: err})
		audit.Log(audit.Event{Type: audit.EventLoginFailure, UserType: string(sess.UserType), Reason: "persist_failed"})
		return err
	}

	s.setTryOutID(0)
	s.transition(State{Status: model.SessionStatusAuthenticated, Session: sess})
	audit.Log(audit.Event{
		Type:      audit.EventLoginSuccess,
		UserType:  string(sess.UserType),
		AcademyID: sess.PortalAcademyID,
	})
	return nil
}

func (s *Store) persist(ctx context.Context, sess *model.Session) error {
	if err := s.creds.Set(ctx, storage.KeyBearerToken, sess.BearerToken, storage.Critical()); err != nil {
		return fmt.Errorf("persist bearer token: %w", err)
	}
	if err := s.writePortalCredentials(ctx, sess); err != nil {
		return err
	}
	if err := s.kv.Remove(ctx, storage.KeyPortalSession, storage.Critical()); err != nil {
		return fmt.Errorf("reset portal snapshot: %w", err)
	}
	if err := s.kv.SetJSON(ctx, storage.KeySessionMeta, sess.Meta(), storage.Critical()); err != nil {
		return fmt.Errorf("persist session meta: %w", err)
	}
	return nil
}

func (s *Store) writePortalCredentials(ctx context.Context, sess *model.Session) error {
	if sess.PortalTokens != nil && (sess.PortalTokens.Access != "" || sess.PortalTokens.Refresh != "") {
		raw, err := json.Marshal(sess.PortalTokens)
		if err != nil {
			return fmt.Errorf("encode portal tokens: %w", err)
		}
		if err := s.creds.Set(ctx, storage.KeyPortalTokens, string(raw), storage.Critical()); err != nil {
			return fmt.Errorf("persist portal tokens: %w", err)
		}
	} else if err := s.creds.Remove(ctx, storage.KeyPortalTokens, storage.Critical()); err != nil {
		return fmt.Errorf("clear portal tokens: %w", err)
	}

	if sess.PortalAcademyID != "" {
		if err := s.creds.Set(ctx, storage.KeyPortalAcademyID, sess.PortalAcademyID, storage.Critical()); err != nil {
			return fmt.Errorf("persist portal academy: %w", err)
		}
	} else if err := s.creds.Remove(ctx, storage.KeyPortalAcademyID, storage.Critical()); err != nil {
		return fmt.Errorf("clear portal academy: %w", err)
	}
	return nil
}

// rollback removes whatever a failed persist may have written.
func (s *Store) rollback(ctx context.Context) {
	_ = s.creds.Remove(ctx, storage.KeyBearerToken)
	_ = s.creds.Remove(ctx, storage.KeyPortalTokens)
	_ = s.creds.Remove(ctx, storage.KeyPortalAcademyID)
	_ = s.kv.Remove(ctx, storage.KeySessionMeta)
}

// Logout removes every persisted trace of the session and then flips to
// unauthenticated. The state flips even when a removal fails; the joined
// removal error is returned.
func (s *Store) Logout(ctx context.Context) error {
	s.op.Lock()
	defer s.op.Unlock()

	prev := s.State().Session

	err := s.teardown(ctx, storage.KeyLastSelectedAcademy)

	s.setTryOutID(0)
	s.transition(State{Status: model.SessionStatusUnauthenticated})

	event := audit.Event{Type: audit.EventLogout}
	if prev != nil {
		event.UserType = string(prev.UserType)
	}
	audit.Log(event)

	if err != nil {
		log.Warn().Err(err).Msg("logout left persisted state behind")
		return err
	}
	return nil
}

// teardown removes the persisted session: credentials, session meta, the
// portal snapshot and any extra state keys. Caller holds s.op.
func (s *Store) teardown(ctx context.Context, extraState ...string) error {
	var errs []error
	for _, key := range []string{storage.KeyBearerToken, storage.KeyPortalTokens, storage.KeyPortalAcademyID} {
		if err := s.creds.Remove(ctx, key, storage.Critical()); err != nil {
			errs = append(errs, err)
		}
	}
	stateKeys := append([]string{storage.KeySessionMeta, storage.KeyPortalSession}, extraState...)
	for _, key := range stateKeys {
		if err := s.kv.Remove(ctx, key, storage.Critical()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *Store) SetLastSelectedAcademyID(ctx context.Context, id string) error {
	if err := s.kv.Set(ctx, storage.KeyLastSelectedAcademy, id); err != nil {
		return err
	}
	if s.mutate(func(sess *model.Session) { sess.LastSelectedAcademyID = id }) {
		if sess := s.Current(); sess != nil {
			_ = s.kv.SetJSON(ctx, storage.KeySessionMeta, sess.Meta())
		}
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
