package config

import "time"

// Database connection pool settings
const (
	DBMaxOpenConns    = 25
	DBMaxIdleConns    = 5
	DBConnMaxLifetime = 5 * time.Minute
)

// HTTP server timeouts
const (
	ServerRequestTimeout  = 60 * time.Second
	ServerReadTimeout     = 15 * time.Second
	ServerIdleTimeout     = 120 * time.Second
	ServerShutdownTimeout = 30 * time.Second
)

// Database ping timeout for health checks
const DBPingTimeout = 5 * time.Second

// Background job intervals
const CleanupJobInterval = 5 * time.Minute

// Delivered queued commands are kept briefly for inspection, then purged.
// Message history has its own RETENTION_DAYS window.
const DeliveredCommandRetention = 24 * time.Hour

// Bearer token lifetime
const TokenTTL = 24 * time.Hour

// Login and pairing-confirmation throttle: at most AuthAttemptLimit
// attempts per key in a rolling AuthAttemptWindow.
const (
	AuthAttemptLimit  = 5
	AuthAttemptWindow = 60 * time.Second
)

// Pairing code lifetime
const PairingCodeTTL = 5 * time.Minute
