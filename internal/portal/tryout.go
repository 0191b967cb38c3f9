package portal

import (
	"encoding/json"
	"math"
	"strconv"

	"github.com/rs/zerolog/log"

	apperrors "github.com/arenahub/playground-client/internal/errors"
	"github.com/arenahub/playground-client/internal/model"
)

// IsValidTryOutID reports whether v is a strictly positive integer or a
// numeric string that parses to one.
func IsValidTryOutID(v any) bool {
	_, ok := toTryOutID(v)
	return ok
}

// AssertTryOutID normalizes v or fails with PORTAL_TRYOUT_MISSING.
func AssertTryOutID(v any) (int64, error) {
	id, ok := toTryOutID(v)
	if !ok {
		return 0, apperrors.PortalTryOutMissing()
	}
	return id, nil
}

func toTryOutID(v any) (int64, bool) {
	var id int64
	switch t := v.(type) {
	case int:
		id = int64(t)
	case int32:
		id = int64(t)
	case int64:
		id = t
	case uint:
		if uint64(t) > math.MaxInt64 {
			return 0, false
		}
		id = int64(t)
	case uint32:
		id = int64(t)
	case uint64:
		if t > math.MaxInt64 {
			return 0, false
		}
		id = int64(t)
	case float64:
		if t != math.Trunc(t) || t >= math.MaxInt64 {
			return 0, false
		}
		id = int64(t)
	case json.Number:
		parsed, err := t.Int64()
		if err != nil {
			return 0, false
		}
		id = parsed
	case string:
		parsed, err := strconv.ParseInt(t, 10, 64)
		if err != nil {
			return 0, false
		}
		id = parsed
	default:
		return 0, false
	}
	return id, id > 0
}

// PortalSessionSource supplies the cached try-out id.
type PortalSessionSource interface {
	PortalSession() *model.PortalSession
}

type Resolver struct {
	sessions PortalSessionSource
}

func NewResolver(sessions PortalSessionSource) *Resolver {
	return &Resolver{sessions: sessions}
}

// Resolve picks the per-call override, then the id cached on the portal
// session. When require is set and neither is usable it fails before any
// network call is made.
func (r *Resolver) Resolve(override any, require bool) (int64, bool, error) {
	if override != nil {
		if id, ok := toTryOutID(override); ok {
			return id, true, nil
		}
		log.Debug().Interface("override", override).Msg("ignoring invalid try-out override")
	}

	if ps := r.sessions.PortalSession(); ps != nil && ps.TryOutID > 0 {
		return ps.TryOutID, true, nil
	}

	if require {
		return 0, false, apperrors.PortalTryOutMissing()
	}
	return 0, false, nil
}
