package portal

import (
	"context"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/arenahub/playground-client/internal/audit"
	"github.com/arenahub/playground-client/internal/config"
	"github.com/arenahub/playground-client/internal/dispatch"
	apperrors "github.com/arenahub/playground-client/internal/errors"
	"github.com/arenahub/playground-client/internal/model"
)

const (
	RefreshPath      = "/auth/portal/refresh"
	refreshFlightKey = "portal-refresh"
)

// Validation failure reasons, in the order they are checked.
const (
	ReasonMissingSession      = "missing_session"
	ReasonNotPlayer           = "not_player"
	ReasonMissingAcademy      = "missing_academy"
	ReasonMissingAccessToken  = "missing_access_token"
	ReasonAccessTokenExpired  = "access_token_expired"
	ReasonMissingRefreshToken = "missing_refresh_token"
	ReasonRefreshRejected     = "refresh_rejected"
	ReasonRefreshInvalid      = "refresh_response_invalid"
)

type Validation struct {
	OK     bool
	Reason string
}

// Refreshable reports whether a refresh token could repair the session.
func (v Validation) Refreshable() bool {
	return v.Reason == ReasonMissingAccessToken || v.Reason == ReasonAccessTokenExpired
}

// Doer is the dispatcher surface the manager needs.
type Doer interface {
	Do(ctx context.Context, method, path string, body, out any, opts ...dispatch.Option) error
}

// Sessions is the session store surface the manager reads and updates.
type Sessions interface {
	PortalSession() *model.PortalSession
	UpdatePortalTokens(ctx context.Context, tokens model.PortalTokens) error
}

type Manager struct {
	sessions Sessions
	api      Doer
	flight   singleflight.Group
	now      func() time.Time
}

func NewManager(sessions Sessions, api Doer) *Manager {
	return &Manager{sessions: sessions, api: api, now: time.Now}
}

// Validate checks a session for portal use. A JWT access token whose exp has
// passed, within a small leeway, counts as expired; opaque tokens never do.
func (m *Manager) Validate(sess *model.Session) Validation {
	switch {
	case sess == nil:
		return Validation{Reason: ReasonMissingSession}
	case !sess.IsPlayer():
		return Validation{Reason: ReasonNotPlayer}
	case sess.PortalAcademyID == "":
		return Validation{Reason: ReasonMissingAcademy}
	case sess.PortalAccessToken() == "":
		return Validation{Reason: ReasonMissingAccessToken}
	case m.expired(sess.PortalAccessToken()):
		return Validation{Reason: ReasonAccessTokenExpired}
	}
	return Validation{OK: true}
}

func (m *Manager) expired(token string) bool {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return !m.now().Add(config.PortalTokenExpiryLeeway).Before(exp.Time)
}

// RefreshIfNeeded returns a usable portal session, refreshing the access
// token when it is missing or expired, or unconditionally when force is set.
// Reasons a refresh cannot fix come back as PORTAL_SESSION_INVALID. Concurrent
// callers share one refresh call.
func (m *Manager) RefreshIfNeeded(ctx context.Context, force bool) (*model.Session, error) {
	sess := m.current()
	v := m.Validate(sess)
	if v.OK && !force {
		return sess, nil
	}
	if !v.OK && !v.Refreshable() {
		return nil, apperrors.PortalSessionInvalid(v.Reason)
	}

	refreshToken := sess.PortalRefreshToken()
	if refreshToken == "" {
		reason := v.Reason
		if reason == "" {
			reason = ReasonMissingRefreshToken
		}
		return nil, apperrors.PortalSessionInvalid(reason)
	}

	result, err, shared := m.flight.Do(refreshFlightKey, func() (interface{}, error) {
		// a refresh that finished between our check and this flight already
		// repaired the session
		if latest := m.current(); !force && m.Validate(latest).OK {
			return latest, nil
		}
		return m.refresh(context.WithoutCancel(ctx), sess, refreshToken)
	})
	if shared {
		log.Debug().Msg("joined in-flight portal refresh")
	}
	if err != nil {
		return nil, err
	}
	return result.(*model.Session), nil
}

// EnsureSession validates the portal session and refreshes it when a refresh
// can help.
func (m *Manager) EnsureSession(ctx context.Context) (*model.PortalSession, error) {
	if _, err := m.RefreshIfNeeded(ctx, false); err != nil {
		return nil, err
	}
	ps := m.sessions.PortalSession()
	if ps == nil {
		return nil, apperrors.PortalSessionInvalid(ReasonMissingSession)
	}
	return ps, nil
}

// refresh is all-or-nothing: the session store only changes after a usable
// token was received and persisted.
func (m *Manager) refresh(ctx context.Context, sess *model.Session, refreshToken string) (*model.Session, error) {
	var payload any
	err := m.api.Do(ctx, http.MethodPost, RefreshPath, map[string]string{"refreshToken": refreshToken}, &payload)
	if err != nil {
		log.Warn().Err(err).Msg("portal token refresh failed")
		if refreshRejected(err) {
			m.auditFailure(sess, ReasonRefreshRejected)
			return nil, apperrors.PortalSessionInvalid(ReasonRefreshRejected).WithCause(err)
		}
		m.auditFailure(sess, "request_failed")
		return nil, err
	}

	tokens, ok := ExtractRefreshedTokens(payload)
	if !ok {
		m.auditFailure(sess, ReasonRefreshInvalid)
		return nil, apperrors.PortalSessionInvalid(ReasonRefreshInvalid)
	}
	if tokens.Refresh == "" {
		tokens.Refresh = refreshToken
	}

	if err := m.sessions.UpdatePortalTokens(ctx, tokens); err != nil {
		m.auditFailure(sess, "persist_failed")
		return nil, err
	}

	audit.Log(audit.Event{
		Type:      audit.EventPortalRefreshSuccess,
		UserType:  string(sess.UserType),
		AcademyID: sess.PortalAcademyID,
		Details:   map[string]interface{}{"rotated": tokens.Refresh != refreshToken},
	})

	if updated := m.current(); updated != nil {
		return updated, nil
	}
	refreshed := sess.Clone()
	refreshed.PortalTokens = &tokens
	return refreshed, nil
}

// refreshRejected reports whether the server refused the refresh token itself.
// Retrying with the same token cannot succeed.
func refreshRejected(err error) bool {
	appErr, ok := apperrors.AsAppError(err)
	if !ok {
		return false
	}
	switch appErr.Status {
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden:
		return true
	}
	return false
}

func (m *Manager) auditFailure(sess *model.Session, reason string) {
	audit.Log(audit.Event{
		Type:      audit.EventPortalRefreshFailure,
		UserType:  string(sess.UserType),
		AcademyID: sess.PortalAcademyID,
		Reason:    reason,
	})
}

func (m *Manager) current() *model.Session {
	if ps := m.sessions.PortalSession(); ps != nil {
		return ps.Session
	}
	return nil
}
