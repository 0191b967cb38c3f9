package model

type UserType string

const (
	UserTypePublic UserType = "PUBLIC"
	UserTypePlayer UserType = "PLAYER"
)

// RequestScope decides which credentials a request carries.
type RequestScope string

const (
	ScopePublic RequestScope = "PUBLIC"
	ScopeAuth   RequestScope = "AUTH"
	ScopeApp    RequestScope = "APP"
	ScopePortal RequestScope = "PORTAL"
)

type Tier string

const (
	TierSecure   Tier = "SECURE"
	TierDurable  Tier = "DURABLE"
	TierVolatile Tier = "VOLATILE"
)

type SessionStatus string

const (
	SessionStatusUnauthenticated SessionStatus = "unauthenticated"
	SessionStatusPending         SessionStatus = "pending"
	SessionStatusAuthenticated   SessionStatus = "authenticated"
)

type DraftState string

const (
	DraftStateCollecting   DraftState = "collecting"
	DraftStateAwaitingAuth DraftState = "awaiting_auth"
	DraftStateResuming     DraftState = "resuming"
	DraftStateComplete     DraftState = "complete"
	DraftStateAbandoned    DraftState = "abandoned"
)

// AuthMethod records how the user got through the forced authentication detour.
type AuthMethod string

const (
	AuthMethodLogin         AuthMethod = "login"
	AuthMethodRegister      AuthMethod = "register"
	AuthMethodQuickRegister AuthMethod = "quick_register"
)
