package audit

import (
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type EventType string

const (
	EventLoginSuccess           EventType = "login_success"
	EventLoginFailure           EventType = "login_failure"
	EventLogout                 EventType = "logout"
	EventSessionRestored        EventType = "session_restored"
	EventPortalCredentialsClear EventType = "portal_credentials_cleared"
	EventPortalRefreshSuccess   EventType = "portal_refresh_success"
	EventPortalRefreshFailure   EventType = "portal_refresh_failure"
	EventCredentialMigration    EventType = "credential_migration"
	EventCredentialTierSelected EventType = "credential_tier_selected"
	EventBookingDraftAbandoned  EventType = "booking_draft_abandoned"
	EventBookingSubmitted       EventType = "booking_submitted"
)

type Event struct {
	Type      EventType
	UserType  string
	AcademyID string
	Reason    string
	Details   map[string]interface{}
}

// Logger is swapped in tests to capture events.
var Logger = func() *zerolog.Logger { return &log.Logger }

func Log(event Event) {
	logger := Logger().With().
		Str("audit", "session").
		Str("event_type", string(event.Type)).
		Time("timestamp", time.Now()).
		Logger()

	if event.UserType != "" {
		logger = logger.With().Str("user_type", event.UserType).Logger()
	}
	if event.AcademyID != "" {
		logger = logger.With().Str("academy_id", event.AcademyID).Logger()
	}
	if event.Reason != "" {
		logger = logger.With().Str("reason", event.Reason).Logger()
	}

	logEvent := logger.Info()
	for k, v := range event.Details {
		logEvent = addField(logEvent, k, v)
	}
	logEvent.Msg("session audit event")
}

func addField(e *zerolog.Event, key string, value interface{}) *zerolog.Event {
	switch v := value.(type) {
	case string:
		return e.Str(key, v)
	case int:
		return e.Int(key, v)
	case int64:
		return e.Int64(key, v)
	case bool:
		return e.Bool(key, v)
	default:
		return e.Interface(key, v)
	}
}
