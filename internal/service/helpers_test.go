package service

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/arenahub/playground-client/internal/config"
	"github.com/arenahub/playground-client/internal/dispatch"
	"github.com/arenahub/playground-client/internal/model"
	"github.com/arenahub/playground-client/internal/portal"
	"github.com/arenahub/playground-client/internal/session"
	"github.com/arenahub/playground-client/internal/storage"
)

type recorded struct {
	Method string
	Path   string
	Query  string
	Header http.Header
	Body   []byte
}

// backend is a fake API server. Routes are registered per test; every request
// that reaches it is recorded.
type backend struct {
	router chi.Router
	server *httptest.Server

	mu       sync.Mutex
	requests []recorded
}

func newBackend(t *testing.T) *backend {
	t.Helper()
	b := &backend{router: chi.NewRouter()}
	b.router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, _ := io.ReadAll(r.Body)
			r.Body = io.NopCloser(bytes.NewReader(body))
			b.mu.Lock()
			b.requests = append(b.requests, recorded{
				Method: r.Method,
				Path:   r.URL.Path,
				Query:  r.URL.RawQuery,
				Header: r.Header.Clone(),
				Body:   body,
			})
			b.mu.Unlock()
			next.ServeHTTP(w, r)
		})
	})
	b.server = httptest.NewServer(b.router)
	t.Cleanup(b.server.Close)
	return b
}

func (b *backend) count(method, path string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, r := range b.requests {
		if r.Method == method && r.Path == path {
			n++
		}
	}
	return n
}

func (b *backend) total() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.requests)
}

func (b *backend) last(t *testing.T, path string) recorded {
	t.Helper()
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := len(b.requests) - 1; i >= 0; i-- {
		if b.requests[i].Path == path {
			return b.requests[i]
		}
	}
	t.Fatalf("no request to %s", path)
	return recorded{}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// app wires the real stack against the fake backend.
type app struct {
	backend  *backend
	kv       *storage.KeyValueStore
	store    *session.Store
	auth     *AuthAPI
	venues   *VenueAPI
	bookings *BookingAPI
	portal   *PortalAPI
	prefs    *PreferencesAPI
}

func newApp(t *testing.T) *app {
	t.Helper()
	ctx := context.Background()

	b := newBackend(t)
	creds := storage.NewCredentialStore(ctx, storage.Tiers{})
	kv := storage.NewKeyValueStore(ctx, nil, nil)
	d := dispatch.New(&config.Config{APIBaseURL: b.server.URL, RequestTimeoutSeconds: 5, DefaultLocale: "en"}, creds, kv)

	auth := NewAuthAPI(d)
	store := session.NewStore(creds, kv, auth)
	d.Attach(store, store)

	return &app{
		backend:  b,
		kv:       kv,
		store:    store,
		auth:     auth,
		venues:   NewVenueAPI(d),
		bookings: NewBookingAPI(d),
		portal:   NewPortalAPI(d, portal.NewManager(store, d), store),
		prefs:    NewPreferencesAPI(kv, "en"),
	}
}

// loginPlayer registers a player login route and logs in through it.
func (a *app) loginPlayer(t *testing.T) {
	t.Helper()
	a.backend.router.Post(pathPlayerLogin, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"token":    "app-token",
			"userType": "PLAYER",
			"portal": map[string]any{
				"accessToken":  "portal-access",
				"refreshToken": "portal-refresh",
				"academyId":    "academy-1",
				"playerId":     "player-1",
			},
		})
	})
	require.NoError(t, a.store.LoginPlayer(context.Background(), model.Credentials{Identifier: "player@arena.test", Password: "pw"}))
}
