package utils

import (
	"time"
)

// Token and session time constants
const (
	// AccessTokenTTL is the time-to-live for access tokens (24 hours)
	AccessTokenTTL = 24 * time.Hour

	// RefreshTokenTTL is the time-to-live for refresh tokens (7 days)
	RefreshTokenTTL = 7 * 24 * time.Hour
)

// ContextKey is the type for request-scoped context values
type ContextKey string

// Request-scoped context keys for observability
const (
	RequestIDKey  ContextKey = "request_id"
	UserAgentKey  ContextKey = "user_agent"
	IPAddressKey  ContextKey = "ip_address"
	EndpointKey   ContextKey = "endpoint"
	TimeoutKey    ContextKey = "timeout"
	CancelFuncKey ContextKey = "cancel_func"
)

// CORS and security constants
const (
	// CORSMaxAge is the maximum age for CORS preflight requests (24 hours)
	CORSMaxAge = 86400
)

// Import and dispatch constants
const (
	// MaxImportErrors caps the number of per-line errors returned by an import run
	MaxImportErrors = 10

	// DryRunPreviewSize is the number of valid rows returned by an import dry run
	DryRunPreviewSize = 5

	// DispatchTokenTTL is how long a consumed job id stays claimed for idempotency
	DispatchTokenTTL = 24 * time.Hour
)
