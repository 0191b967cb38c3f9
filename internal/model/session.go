package model

type PortalTokens struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh,omitempty"`
}

// Session is the canonical in-memory identity. Only the session store mutates it.
type Session struct {
	UserType              UserType      `json:"userType"`
	BearerToken           string        `json:"-"`
	PortalTokens          *PortalTokens `json:"-"`
	PortalAcademyID       string        `json:"portalAcademyId,omitempty"`
	PortalPlayerID        string        `json:"portalPlayerId,omitempty"`
	LastSelectedAcademyID string        `json:"lastSelectedAcademyId,omitempty"`
}

func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	clone := *s
	if s.PortalTokens != nil {
		tokens := *s.PortalTokens
		clone.PortalTokens = &tokens
	}
	return &clone
}

func (s *Session) IsPlayer() bool {
	return s != nil && s.UserType == UserTypePlayer
}

func (s *Session) PortalAccessToken() string {
	if s == nil || s.PortalTokens == nil {
		return ""
	}
	return s.PortalTokens.Access
}

func (s *Session) PortalRefreshToken() string {
	if s == nil || s.PortalTokens == nil {
		return ""
	}
	return s.PortalTokens.Refresh
}

// SessionMeta is the non-secret part of a session that lives in the key-value store.
type SessionMeta struct {
	UserType              UserType `json:"userType"`
	PortalAcademyID       string   `json:"portalAcademyId,omitempty"`
	PortalPlayerID        string   `json:"portalPlayerId,omitempty"`
	LastSelectedAcademyID string   `json:"lastSelectedAcademyId,omitempty"`
}

func (s *Session) Meta() SessionMeta {
	return SessionMeta{
		UserType:              s.UserType,
		PortalAcademyID:       s.PortalAcademyID,
		PortalPlayerID:        s.PortalPlayerID,
		LastSelectedAcademyID: s.LastSelectedAcademyID,
	}
}

type Credentials struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

// LoginResult is what the auth endpoints hand back after a successful login.
type LoginResult struct {
	UserType        UserType
	BearerToken     string
	PortalTokens    *PortalTokens
	PortalAcademyID string
	PortalPlayerID  string
}
