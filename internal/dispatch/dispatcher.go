package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/arenahub/playground-client/internal/config"
	apperrors "github.com/arenahub/playground-client/internal/errors"
	"github.com/arenahub/playground-client/internal/model"
	"github.com/arenahub/playground-client/internal/storage"
)

const (
	HeaderAcademyID  = "X-Academy-Id"
	HeaderCustomerID = "X-Customer-Id"
	HeaderRequestID  = "X-Request-Id"
)

// Reader is the read side of the credential and key-value stores.
type Reader interface {
	Get(ctx context.Context, key string, opts ...storage.Option) (string, bool, error)
}

// SessionSource exposes the live in-memory session, if any.
type SessionSource interface {
	Current() *model.Session
}

// PortalResetter drops portal credentials after the portal rejects them.
type PortalResetter interface {
	ClearPortalCredentials(ctx context.Context) error
}

type Dispatcher struct {
	baseURL       string
	defaultLocale string
	client        *http.Client
	creds         Reader
	state         Reader

	mu       sync.RWMutex
	session  SessionSource
	resetter PortalResetter
}

func New(cfg *config.Config, creds, state Reader) *Dispatcher {
	return &Dispatcher{
		baseURL:       cfg.BaseURL(),
		defaultLocale: cfg.DefaultLocale,
		client: &http.Client{
			Timeout: cfg.RequestTimeout(),
		},
		creds: creds,
		state: state,
	}
}

// Attach connects the session store once it exists. The session store itself
// depends on the dispatcher for its login calls.
func (d *Dispatcher) Attach(session SessionSource, resetter PortalResetter) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.session = session
	d.resetter = resetter
}

type Response struct {
	Status int
	Header http.Header
	Body   []byte
	raw    bool
}

// Decode unmarshals a JSON response body into dest.
func (r *Response) Decode(dest any) error {
	if r.raw {
		return fmt.Errorf("decode raw response: JSON parsing was disabled")
	}
	if len(strings.TrimSpace(string(r.Body))) == 0 {
		return nil
	}
	if err := json.Unmarshal(r.Body, dest); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Do dispatches and decodes the response into out when out is non-nil.
func (d *Dispatcher) Do(ctx context.Context, method, path string, body, out any, opts ...Option) error {
	resp, err := d.Dispatch(ctx, method, path, body, opts...)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return resp.Decode(out)
}

// Dispatch resolves credentials for the path's scope, performs the call and
// classifies any failure. Pre-flight failures never reach the network.
func (d *Dispatcher) Dispatch(ctx context.Context, method, path string, body any, opts ...Option) (*Response, error) {
	o := applyOptions(opts)
	scope := Classify(path)

	headers, err := d.resolveHeaders(ctx, scope, o)
	if err != nil {
		log.Debug().
			Str("method", method).
			Str("path", normalizePath(path)).
			Str("scope", string(scope)).
			Err(err).
			Msg("request blocked before dispatch")
		return nil, err
	}

	enc, err := encodeBody(body)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, method, d.url(path), enc.reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	for key, values := range headers {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	switch {
	case enc.forced:
		req.Header.Set("Content-Type", enc.contentType)
	case enc.contentType != "" && req.Header.Get("Content-Type") == "":
		req.Header.Set("Content-Type", enc.contentType)
	}

	requestID := uuid.NewString()
	req.Header.Set(HeaderRequestID, requestID)

	start := time.Now()
	resp, err := d.client.Do(req)
	elapsed := time.Since(start)

	if err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			log.Debug().
				Str("path", normalizePath(path)).
				Str("requestId", requestID).
				Msg("request cancelled by caller")
			return nil, ctx.Err()
		}
		log.Warn().
			Err(err).
			Str("method", method).
			Str("path", normalizePath(path)).
			Str("scope", string(scope)).
			Dur("elapsed", elapsed).
			Msg("request transport failure")
		return nil, apperrors.Network(err).WithScope(scope)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, d.fail(ctx, scope, method, path, requestID, resp, elapsed)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return nil, ctx.Err()
		}
		return nil, apperrors.Network(err).WithScope(scope)
	}

	log.Debug().
		Str("method", method).
		Str("path", normalizePath(path)).
		Str("scope", string(scope)).
		Str("requestId", requestID).
		Int("status", resp.StatusCode).
		Dur("elapsed", elapsed).
		Msg("request completed")

	return &Response{
		Status: resp.StatusCode,
		Header: resp.Header,
		Body:   data,
		raw:    o.raw,
	}, nil
}

func (d *Dispatcher) fail(ctx context.Context, scope model.RequestScope, method, path, requestID string, resp *http.Response, elapsed time.Duration) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, config.MaxErrorBodyBytes))
	payload := parsePayload(data)
	appErr := apperrors.Classify(scope, resp.StatusCode, apperrors.ExtractMessage(payload), payload)

	log.Warn().
		Str("method", method).
		Str("path", normalizePath(path)).
		Str("scope", string(scope)).
		Str("requestId", requestID).
		Int("status", resp.StatusCode).
		Str("code", string(appErr.Code)).
		Dur("elapsed", elapsed).
		Msg("request failed")

	if apperrors.ClearsPortalCredentials(appErr) {
		d.mu.RLock()
		resetter := d.resetter
		d.mu.RUnlock()
		if resetter != nil {
			if err := resetter.ClearPortalCredentials(context.WithoutCancel(ctx)); err != nil {
				log.Error().Err(err).Msg("failed to clear portal credentials after portal 401")
			}
		}
	}
	return appErr
}

func (d *Dispatcher) url(path string) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return d.baseURL + path
}

func (d *Dispatcher) resolveHeaders(ctx context.Context, scope model.RequestScope, o requestOptions) (http.Header, error) {
	h := make(http.Header)
	for key, values := range o.headers {
		h[key] = append([]string(nil), values...)
	}
	if o.raw {
		h.Set("Accept", "*/*")
	} else {
		h.Set("Accept", "application/json")
	}

	current := d.currentSession()

	switch scope {
	case model.ScopePublic:
		if o.publicBearer {
			if token := d.bearerToken(ctx, current); token != "" {
				h.Set("Authorization", "Bearer "+token)
			}
		}
		return h, nil

	case model.ScopeAuth:
		if token := d.bearerToken(ctx, current); token != "" {
			h.Set("Authorization", "Bearer "+token)
		}

	case model.ScopeApp:
		token := d.bearerToken(ctx, current)
		if token == "" {
			return nil, apperrors.AuthRequired()
		}
		h.Set("Authorization", "Bearer "+token)

	case model.ScopePortal:
		academyID := d.academyID(ctx, current, o.academyID)
		if academyID == "" {
			return nil, apperrors.PortalAcademyRequired()
		}
		token := d.portalToken(ctx, current)
		if token == "" {
			return nil, apperrors.PortalAuthRequired()
		}
		h.Set("Authorization", "Bearer "+token)
		h.Set(HeaderAcademyID, academyID)
		h.Set(HeaderCustomerID, academyID)
	}

	h.Set("Accept-Language", d.locale(ctx))
	return h, nil
}

func (d *Dispatcher) currentSession() *model.Session {
	d.mu.RLock()
	src := d.session
	d.mu.RUnlock()
	if src == nil {
		return nil
	}
	return src.Current()
}

func (d *Dispatcher) bearerToken(ctx context.Context, current *model.Session) string {
	if current != nil && current.BearerToken != "" {
		return current.BearerToken
	}
	return d.read(ctx, d.creds, storage.KeyBearerToken)
}

// portalToken prefers the portal access token and falls back to the app
// bearer token.
func (d *Dispatcher) portalToken(ctx context.Context, current *model.Session) string {
	if token := current.PortalAccessToken(); token != "" {
		return token
	}
	if raw := d.read(ctx, d.creds, storage.KeyPortalTokens); raw != "" {
		var tokens model.PortalTokens
		if err := json.Unmarshal([]byte(raw), &tokens); err == nil && tokens.Access != "" {
			return tokens.Access
		}
	}
	return d.bearerToken(ctx, current)
}

// academyID resolves the tenant: per-call override, session, persisted
// portal tenant, then the last academy the user picked.
func (d *Dispatcher) academyID(ctx context.Context, current *model.Session, override string) string {
	if override != "" {
		return override
	}
	if current != nil && current.PortalAcademyID != "" {
		return current.PortalAcademyID
	}
	if id := d.read(ctx, d.creds, storage.KeyPortalAcademyID); id != "" {
		return id
	}
	if current != nil && current.LastSelectedAcademyID != "" {
		return current.LastSelectedAcademyID
	}
	return d.read(ctx, d.state, storage.KeyLastSelectedAcademy)
}

func (d *Dispatcher) locale(ctx context.Context) string {
	if locale := d.read(ctx, d.state, storage.KeyLocale); locale != "" {
		return locale
	}
	if d.defaultLocale != "" {
		return d.defaultLocale
	}
	return "en"
}

func (d *Dispatcher) read(ctx context.Context, r Reader, key string) string {
	if r == nil {
		return ""
	}
	value, ok, err := r.Get(ctx, key)
	if err != nil || !ok {
		return ""
	}
	return value
}
