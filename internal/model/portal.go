package model

// PortalSession is a read-only projection of Session plus the cached try-out id.
type PortalSession struct {
	Session  *Session
	TryOutID int64
}

func (p *PortalSession) AcademyID() string {
	if p == nil || p.Session == nil {
		return ""
	}
	return p.Session.PortalAcademyID
}

// PortalSnapshot is persisted alongside the session so the cached try-out id
// survives restarts.
type PortalSnapshot struct {
	AcademyID string `json:"academyId,omitempty"`
	PlayerID  string `json:"playerId,omitempty"`
	TryOutID  int64  `json:"tryOutId,omitempty"`
}

// PortalOverview is the normalized result of a profile overview fetch.
type PortalOverview struct {
	TryOutID  int64          `json:"tryOutId,omitempty"`
	PlayerID  string         `json:"playerId,omitempty"`
	AcademyID string         `json:"academyId,omitempty"`
	Raw       map[string]any `json:"-"`
}
