package portal

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/arenahub/playground-client/internal/model"
)

// Backend compatibility shim. The portal backend has shipped several response
// shapes for the same data; every path it is known to use is declared here
// and nowhere else.

var (
	accessTokenPaths = []string{
		"accessToken", "access_token", "token",
		"data.accessToken", "data.access_token", "data.token",
		"tokens.access", "data.tokens.access",
	}
	refreshTokenPaths = []string{
		"refreshToken", "refresh_token",
		"data.refreshToken", "data.refresh_token",
		"tokens.refresh", "data.tokens.refresh",
	}
	tryOutIDPaths = []string{
		"tryOutId", "tryoutId", "try_out_id", "tryOut.id",
		"player.tryOutId", "profile.tryOutId", "membership.tryOutId",
	}
	playerIDPaths = []string{
		"playerId", "player_id", "player.id", "profile.playerId", "profile.id",
	}
	academyIDPaths = []string{
		"academyId", "academy_id", "academy.id", "customerId", "player.academyId",
	}
)

// ExtractRefreshedTokens reads a refresh response. ok is false when no access
// token could be found; Refresh is empty when the backend did not rotate it.
func ExtractRefreshedTokens(payload any) (model.PortalTokens, bool) {
	access := firstString(payload, accessTokenPaths)
	if access == "" {
		return model.PortalTokens{}, false
	}
	return model.PortalTokens{Access: access, Refresh: firstString(payload, refreshTokenPaths)}, true
}

// NormalizeOverview extracts the ids the client relies on from a profile
// overview payload, with or without a top-level "data" envelope.
func NormalizeOverview(raw map[string]any) model.PortalOverview {
	var root any = raw
	if data, ok := raw["data"].(map[string]any); ok {
		root = data
	}

	overview := model.PortalOverview{Raw: raw}
	for _, p := range tryOutIDPaths {
		if v, ok := lookup(root, p); ok && IsValidTryOutID(v) {
			overview.TryOutID, _ = AssertTryOutID(v)
			break
		}
	}
	overview.PlayerID = firstString(root, playerIDPaths)
	overview.AcademyID = firstString(root, academyIDPaths)
	return overview
}

func firstString(payload any, paths []string) string {
	for _, p := range paths {
		v, ok := lookup(payload, p)
		if !ok {
			continue
		}
		if s := stringify(v); s != "" {
			return s
		}
	}
	return ""
}

func lookup(payload any, path string) (any, bool) {
	current := payload
	for _, segment := range strings.Split(path, ".") {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[segment]
		if !ok || current == nil {
			return nil, false
		}
	}
	return current, true
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		if t == float64(int64(t)) {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		return t.String()
	default:
		return ""
	}
}
