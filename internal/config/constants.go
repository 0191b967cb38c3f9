package config

import "time"

// SQL durable tier pool settings (postgres only; sqlite runs on one connection)
const (
	DBMaxOpenConns    = 4
	DBMaxIdleConns    = 2
	DBConnMaxLifetime = 5 * time.Minute
)

// Storage probe and startup timeouts
const (
	StorageProbeTimeout = 3 * time.Second
	StartupTimeout      = 10 * time.Second
)

// Maximum error body read from a failed response
const MaxErrorBodyBytes = 1 << 20

// Portal access tokens within this window of expiry are treated as expired
const PortalTokenExpiryLeeway = 30 * time.Second

// Booking drafts older than this are discarded instead of resumed
const BookingDraftMaxAge = 24 * time.Hour
