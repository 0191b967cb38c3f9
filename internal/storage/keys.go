package storage

// Credential keys (secret, tiered)
const (
	KeyBearerToken     = "auth.token"
	KeyPortalTokens    = "portal.tokens"
	KeyPortalAcademyID = "portal.academy_id"
)

// Key-value keys (non-secret)
const (
	KeySessionMeta         = "session.meta"
	KeyPortalSession       = "portal.session"
	KeyLastSelectedAcademy = "portal.last_selected_academy"
	KeyBookingDraft        = "booking.draft"
	KeyLocale              = "app.locale"
	KeyTheme               = "app.theme"
	KeyWelcomeSeen         = "app.welcome_seen"
	KeyDiscoveryFilters    = "discovery.filters"
)

// Namespaces keep credentials and plain state apart when they share a backend.
const (
	NamespaceCredentials = "cred"
	NamespaceState       = "kv"
)

// LegacyCredentialKeys maps plaintext keys written by older app versions to
// their current credential key.
var LegacyCredentialKeys = map[string]string{
	"token":           KeyBearerToken,
	"portalTokens":    KeyPortalTokens,
	"portalAcademyId": KeyPortalAcademyID,
}
