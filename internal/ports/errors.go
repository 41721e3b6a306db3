package ports

import "errors"

// Standard application-level errors.
// Adapters should wrap underlying infrastructure errors with these standard errors.
var (
	// General Errors
	ErrUnknown          = errors.New("unknown error occurred")
	ErrInvalidConfig    = errors.New("invalid or missing configuration")
	ErrNotFound         = errors.New("resource not found")
	ErrTimeout          = errors.New("operation timed out")
	ErrInsufficientData = errors.New("insufficient data points")

	// Exchange Specific Errors
	ErrExchangeUnavailable  = errors.New("exchange API is unavailable")
	ErrRateLimited          = errors.New("API rate limit exceeded")
	ErrAuthenticationFailed = errors.New("exchange authentication failed (check API keys)")
	ErrInsufficientFunds    = errors.New("insufficient funds for operation")
	ErrOrderPlacementFailed = errors.New("failed to place order")

	// Database Specific Errors
	ErrDuplicateEntry = errors.New("database record already exists")
	ErrDBConnection   = errors.New("database connection error")
	ErrQueryFailed    = errors.New("database query failed")
	ErrUpdateFailed   = errors.New("database update failed")
	ErrPersistFailed  = errors.New("failed to persist portfolio state")

	// Bot lifecycle
	ErrBotAlreadyRunning = errors.New("bot is already running")
	ErrBotNotRunning     = errors.New("bot is not running")
)
