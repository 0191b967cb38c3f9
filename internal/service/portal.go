package service

import (
	"context"
	"net/url"
	"strconv"

	"github.com/rs/zerolog/log"

	apperrors "github.com/arenahub/playground-client/internal/errors"
	"github.com/arenahub/playground-client/internal/model"
	"github.com/arenahub/playground-client/internal/portal"
)

const pathOverview = "/portal-proxy/profile/overview"

// PortalSessions is the session store surface the portal wrappers need.
type PortalSessions interface {
	PortalSession() *model.PortalSession
	CacheTryOutID(ctx context.Context, id int64) error
	UpdatePortalIdentity(ctx context.Context, academyID, playerID string) error
}

type RenewalRequest struct {
	PackageID string `json:"packageId,omitempty"`
	Note      string `json:"note,omitempty"`
}

type FreezeRequest struct {
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
	Reason    string `json:"reason,omitempty"`
}

type PortalAPI struct {
	api      API
	manager  *portal.Manager
	resolver *portal.Resolver
	sessions PortalSessions
}

func NewPortalAPI(api API, manager *portal.Manager, sessions PortalSessions) *PortalAPI {
	return &PortalAPI{
		api:      api,
		manager:  manager,
		resolver: portal.NewResolver(sessions),
		sessions: sessions,
	}
}

// Overview fetches the player's profile overview and caches the try-out id it
// carries.
func (p *PortalAPI) Overview(ctx context.Context) Result[*model.PortalOverview] {
	return call(func() (*model.PortalOverview, error) {
		if _, err := p.manager.EnsureSession(ctx); err != nil {
			return nil, err
		}

		var raw map[string]any
		if err := get(ctx, p.api, pathOverview, &raw); err != nil {
			return nil, err
		}
		overview := portal.NormalizeOverview(raw)

		if overview.TryOutID > 0 {
			if err := p.sessions.CacheTryOutID(ctx, overview.TryOutID); err != nil {
				log.Warn().Err(err).Msg("failed to cache try-out id")
			}
		}
		if overview.AcademyID != "" || overview.PlayerID != "" {
			if err := p.sessions.UpdatePortalIdentity(ctx, overview.AcademyID, overview.PlayerID); err != nil {
				log.Warn().Err(err).Msg("failed to record portal identity")
			}
		}
		return &overview, nil
	})
}

// RequestRenewal asks the academy to renew the membership tied to the
// try-out. tryOutOverride may be nil to use the cached id.
func (p *PortalAPI) RequestRenewal(ctx context.Context, tryOutOverride any, req RenewalRequest) Result[map[string]any] {
	return call(func() (map[string]any, error) {
		tryOutID, err := p.prepare(ctx, tryOutOverride)
		if err != nil {
			return nil, err
		}
		body := struct {
			TryOutID int64 `json:"tryOutId"`
			RenewalRequest
		}{tryOutID, req}

		var out map[string]any
		err = post(ctx, p.api, "/portal-proxy/renewals", body, &out)
		return out, err
	})
}

func (p *PortalAPI) RequestFreeze(ctx context.Context, tryOutOverride any, req FreezeRequest) Result[map[string]any] {
	return call(func() (map[string]any, error) {
		tryOutID, err := p.prepare(ctx, tryOutOverride)
		if err != nil {
			return nil, err
		}
		body := struct {
			TryOutID int64 `json:"tryOutId"`
			FreezeRequest
		}{tryOutID, req}

		var out map[string]any
		err = post(ctx, p.api, "/portal-proxy/freezes", body, &out)
		return out, err
	})
}

func (p *PortalAPI) PerformanceFeedback(ctx context.Context, tryOutOverride any) Result[map[string]any] {
	return call(func() (map[string]any, error) {
		tryOutID, err := p.prepare(ctx, tryOutOverride)
		if err != nil {
			return nil, err
		}
		var out map[string]any
		path := "/portal-proxy/performance/" + url.PathEscape(strconv.FormatInt(tryOutID, 10)) + "/feedback"
		err = get(ctx, p.api, path, &out)
		return out, err
	})
}

// prepare runs the local checks first so a call that cannot succeed never
// touches the network: session shape, then the try-out id, then a refresh if
// the access token needs one.
func (p *PortalAPI) prepare(ctx context.Context, tryOutOverride any) (int64, error) {
	var current *model.Session
	if ps := p.sessions.PortalSession(); ps != nil {
		current = ps.Session
	}
	if v := p.manager.Validate(current); !v.OK && !v.Refreshable() {
		return 0, apperrors.PortalSessionInvalid(v.Reason)
	}

	tryOutID, _, err := p.resolver.Resolve(tryOutOverride, true)
	if err != nil {
		return 0, err
	}

	if _, err := p.manager.EnsureSession(ctx); err != nil {
		return 0, err
	}
	return tryOutID, nil
}
