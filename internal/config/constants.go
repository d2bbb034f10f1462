package config

import "time"

// Connection retry policy (process start-up and keep-alive reconnects)
const (
	ConnectAttempts     = 3
	ConnectRetryPause   = 5 * time.Second
	NetworkPollInterval = 2 * time.Second
)

// HTTP server timeouts
const (
	ServerRequestTimeout  = 60 * time.Second
	ServerReadTimeout     = 15 * time.Second
	ServerIdleTimeout     = 120 * time.Second
	ServerShutdownTimeout = 30 * time.Second
)

// Database connection pool settings
const (
	DBMaxOpenConns    = 25
	DBMaxIdleConns    = 5
	DBConnMaxLifetime = 5 * time.Minute
)

// Database ping timeout for health checks
const DBPingTimeout = 5 * time.Second

// Background job intervals
const CleanupJobInterval = 5 * time.Minute

// Unparsed inbound messages are kept this long for audit before pruning
const UnparsedRetention = 30 * 24 * time.Hour

// Rate limiting on the auth endpoints
const AuthRateLimitPerMin = 10

// Request bodies are small JSON documents (a phone number and at most
// one SMS worth of text); anything larger is rejected outright.
const MaxRequestBodyBytes = 64 << 10

// Size of the buffered queue between the device callback and the consumer
const InboundQueueSize = 64
