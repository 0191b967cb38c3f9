package portal

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arenahub/playground-client/internal/config"
	"github.com/arenahub/playground-client/internal/dispatch"
	apperrors "github.com/arenahub/playground-client/internal/errors"
	"github.com/arenahub/playground-client/internal/model"
	"github.com/arenahub/playground-client/internal/session"
	"github.com/arenahub/playground-client/internal/storage"
)

type staticAuth struct {
	result model.LoginResult
}

func (a staticAuth) LoginPublic(context.Context, model.Credentials) (*model.LoginResult, error) {
	r := a.result
	r.UserType = model.UserTypePublic
	return &r, nil
}

func (a staticAuth) LoginPlayer(context.Context, model.Credentials) (*model.LoginResult, error) {
	r := a.result
	return &r, nil
}

type refreshServer struct {
	server *httptest.Server
	calls  atomic.Int32

	mu       sync.Mutex
	status   int
	response string
	delay    time.Duration
	bodies   []map[string]string
}

func newRefreshServer(t *testing.T) *refreshServer {
	t.Helper()
	rs := &refreshServer{status: http.StatusOK, response: `{"accessToken":"fresh-access"}`}

	r := chi.NewRouter()
	r.Post(RefreshPath, func(w http.ResponseWriter, req *http.Request) {
		rs.calls.Add(1)
		var body map[string]string
		_ = json.NewDecoder(req.Body).Decode(&body)

		rs.mu.Lock()
		rs.bodies = append(rs.bodies, body)
		status, response, delay := rs.status, rs.response, rs.delay
		rs.mu.Unlock()

		time.Sleep(delay)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(response))
	})

	rs.server = httptest.NewServer(r)
	t.Cleanup(rs.server.Close)
	return rs
}

func (rs *refreshServer) set(status int, response string) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.status, rs.response = status, response
}

type fixture struct {
	server   *refreshServer
	store    *session.Store
	manager  *Manager
	resolver *Resolver
}

func newFixture(t *testing.T, login model.LoginResult) *fixture {
	t.Helper()
	ctx := context.Background()

	rs := newRefreshServer(t)
	creds := storage.NewCredentialStore(ctx, storage.Tiers{})
	kv := storage.NewKeyValueStore(ctx, nil, nil)
	d := dispatch.New(&config.Config{APIBaseURL: rs.server.URL, RequestTimeoutSeconds: 5}, creds, kv)

	store := session.NewStore(creds, kv, staticAuth{result: login})
	d.Attach(store, store)

	if login.UserType == model.UserTypePublic {
		require.NoError(t, store.LoginPublic(ctx, model.Credentials{}))
	} else {
		require.NoError(t, store.LoginPlayer(ctx, model.Credentials{}))
	}

	return &fixture{server: rs, store: store, manager: NewManager(store, d), resolver: NewResolver(store)}
}

func playerLogin(access string) model.LoginResult {
	return model.LoginResult{
		UserType:        model.UserTypePlayer,
		BearerToken:     "app-token",
		PortalTokens:    &model.PortalTokens{Access: access, Refresh: "refresh-1"},
		PortalAcademyID: "academy-1",
		PortalPlayerID:  "player-1",
	}
}

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "player-1",
		"exp": exp.Unix(),
	}).SignedString([]byte("test-signing-key"))
	require.NoError(t, err)
	return token
}

func TestValidate(t *testing.T) {
	m := NewManager(nil, nil)
	valid := func() *model.Session {
		return &model.Session{
			UserType:        model.UserTypePlayer,
			BearerToken:     "app",
			PortalTokens:    &model.PortalTokens{Access: "opaque"},
			PortalAcademyID: "academy-1",
		}
	}

	tests := []struct {
		name     string
		session  func() *model.Session
		reason   string
		expected bool
	}{
		{"nil session", func() *model.Session { return nil }, ReasonMissingSession, false},
		{"public user", func() *model.Session { s := valid(); s.UserType = model.UserTypePublic; return s }, ReasonNotPlayer, false},
		{"public user without academy reports not_player first", func() *model.Session {
			s := valid()
			s.UserType = model.UserTypePublic
			s.PortalAcademyID = ""
			return s
		}, ReasonNotPlayer, false},
		{"missing academy", func() *model.Session { s := valid(); s.PortalAcademyID = ""; return s }, ReasonMissingAcademy, false},
		{"missing access token", func() *model.Session { s := valid(); s.PortalTokens = nil; return s }, ReasonMissingAccessToken, false},
		{"expired jwt", func() *model.Session {
			s := valid()
			s.PortalTokens.Access = signedToken(t, time.Now().Add(-time.Minute))
			return s
		}, ReasonAccessTokenExpired, false},
		{"jwt inside expiry leeway", func() *model.Session {
			s := valid()
			s.PortalTokens.Access = signedToken(t, time.Now().Add(config.PortalTokenExpiryLeeway/2))
			return s
		}, ReasonAccessTokenExpired, false},
		{"live jwt", func() *model.Session {
			s := valid()
			s.PortalTokens.Access = signedToken(t, time.Now().Add(time.Hour))
			return s
		}, "", true},
		{"opaque token", valid, "", true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			v := m.Validate(tc.session())
			assert.Equal(t, tc.expected, v.OK)
			assert.Equal(t, tc.reason, v.Reason)
		})
	}
}

func TestRefreshIfNeeded(t *testing.T) {
	ctx := context.Background()

	t.Run("valid session is returned without a network call", func(t *testing.T) {
		f := newFixture(t, playerLogin("live-access"))

		sess, err := f.manager.RefreshIfNeeded(ctx, false)
		require.NoError(t, err)
		assert.Equal(t, "live-access", sess.PortalAccessToken())
		assert.Zero(t, f.server.calls.Load())
	})

	t.Run("unrecoverable reasons surface unchanged", func(t *testing.T) {
		public := playerLogin("x")
		public.UserType = model.UserTypePublic
		noAcademy := playerLogin("x")
		noAcademy.PortalAcademyID = ""

		tests := []struct {
			name   string
			login  model.LoginResult
			reason string
		}{
			{"not a player", public, ReasonNotPlayer},
			{"no academy", noAcademy, ReasonMissingAcademy},
		}
		for _, tc := range tests {
			t.Run(tc.name, func(t *testing.T) {
				f := newFixture(t, tc.login)

				for _, force := range []bool{false, true} {
					_, err := f.manager.RefreshIfNeeded(ctx, force)
					appErr, ok := apperrors.AsAppError(err)
					require.True(t, ok)
					assert.Equal(t, apperrors.ErrCodePortalSessionInvalid, appErr.Code)
					assert.Equal(t, tc.reason, appErr.Reason)
				}
				assert.Zero(t, f.server.calls.Load())
			})
		}
	})

	t.Run("missing session", func(t *testing.T) {
		f := newFixture(t, playerLogin("x"))
		require.NoError(t, f.store.Logout(ctx))

		_, err := f.manager.RefreshIfNeeded(ctx, false)
		appErr, ok := apperrors.AsAppError(err)
		require.True(t, ok)
		assert.Equal(t, ReasonMissingSession, appErr.Reason)
	})

	t.Run("missing access token is refreshed and persisted", func(t *testing.T) {
		login := playerLogin("")
		login.PortalTokens = &model.PortalTokens{Refresh: "refresh-1"}
		f := newFixture(t, login)

		sess, err := f.manager.RefreshIfNeeded(ctx, false)
		require.NoError(t, err)
		assert.Equal(t, "fresh-access", sess.PortalAccessToken())
		assert.Equal(t, "refresh-1", sess.PortalRefreshToken(), "unrotated refresh token is kept")
		assert.Equal(t, "fresh-access", f.store.Current().PortalAccessToken())
		assert.Equal(t, int32(1), f.server.calls.Load())
		f.server.mu.Lock()
		defer f.server.mu.Unlock()
		assert.Equal(t, "refresh-1", f.server.bodies[0]["refreshToken"])
	})

	t.Run("rotated refresh token replaces the old one", func(t *testing.T) {
		f := newFixture(t, playerLogin(signedToken(t, time.Now().Add(-time.Hour))))
		f.server.set(http.StatusOK, `{"data":{"tokens":{"access":"a2","refresh":"refresh-2"}}}`)

		sess, err := f.manager.RefreshIfNeeded(ctx, false)
		require.NoError(t, err)
		assert.Equal(t, "a2", sess.PortalAccessToken())
		assert.Equal(t, "refresh-2", sess.PortalRefreshToken())
	})

	t.Run("force refreshes a valid session", func(t *testing.T) {
		f := newFixture(t, playerLogin("live-access"))

		sess, err := f.manager.RefreshIfNeeded(ctx, true)
		require.NoError(t, err)
		assert.Equal(t, "fresh-access", sess.PortalAccessToken())
		assert.Equal(t, int32(1), f.server.calls.Load())
	})

	t.Run("no refresh token", func(t *testing.T) {
		login := playerLogin("")
		login.PortalTokens = nil
		f := newFixture(t, login)

		_, err := f.manager.RefreshIfNeeded(ctx, false)
		assert.True(t, apperrors.Is(err, apperrors.ErrCodePortalSessionInvalid))
		assert.Zero(t, f.server.calls.Load())
	})
}

func TestRefreshIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	expired := signedToken(t, time.Now().Add(-time.Hour))

	tests := []struct {
		name     string
		status   int
		response string
		code     apperrors.ErrorCode
		reason   string
	}{
		{"server error", http.StatusInternalServerError, `{"message":"boom"}`, apperrors.ErrCodeHTTP, ""},
		{"rejected refresh token", http.StatusUnauthorized, `{"message":"refresh expired"}`, apperrors.ErrCodePortalSessionInvalid, ReasonRefreshRejected},
		{"revoked refresh token", http.StatusForbidden, `{"message":"revoked"}`, apperrors.ErrCodePortalSessionInvalid, ReasonRefreshRejected},
		{"response without a token", http.StatusOK, `{"ok":true}`, apperrors.ErrCodePortalSessionInvalid, ReasonRefreshInvalid},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, playerLogin(expired))
			f.server.set(tc.status, tc.response)
			before := f.store.Current()

			_, err := f.manager.RefreshIfNeeded(ctx, false)
			assert.True(t, apperrors.Is(err, tc.code), "got %v", err)
			assert.Equal(t, before, f.store.Current(), "session must be unmodified")
			if tc.reason != "" {
				appErr, ok := apperrors.AsAppError(err)
				require.True(t, ok)
				assert.Equal(t, tc.reason, appErr.Reason)
				assert.Equal(t, apperrors.PresentPortalRefresh, apperrors.Present(err))
			}
		})
	}
}

func TestConcurrentExpiredCallersShareOneRefresh(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, playerLogin(signedToken(t, time.Now().Add(-time.Hour))))
	f.server.mu.Lock()
	f.server.delay = 50 * time.Millisecond
	f.server.mu.Unlock()

	const callers = 2
	var wg sync.WaitGroup
	start := make(chan struct{})
	tokens := make([]string, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			sess, err := f.manager.RefreshIfNeeded(ctx, false)
			errs[i] = err
			if sess != nil {
				tokens[i] = sess.PortalAccessToken()
			}
		}(i)
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), f.server.calls.Load())
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, "fresh-access", tokens[i])
	}
}

func TestEnsureSession(t *testing.T) {
	ctx := context.Background()

	t.Run("returns the projection with the cached try-out id", func(t *testing.T) {
		f := newFixture(t, playerLogin("live"))
		require.NoError(t, f.store.CacheTryOutID(ctx, 12))

		ps, err := f.manager.EnsureSession(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(12), ps.TryOutID)
		assert.Equal(t, "academy-1", ps.AcademyID())
	})

	t.Run("surfaces the reason", func(t *testing.T) {
		login := playerLogin("live")
		login.PortalAcademyID = ""
		f := newFixture(t, login)

		_, err := f.manager.EnsureSession(ctx)
		appErr, ok := apperrors.AsAppError(err)
		require.True(t, ok)
		assert.Equal(t, ReasonMissingAcademy, appErr.Reason)
	})
}
