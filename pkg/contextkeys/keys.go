// Package contextkeys provides centralized context key definitions
//
// All context keys used across the application are defined here so that
// producers and consumers agree on one typed key.
//
// USAGE PATTERN:
//
//	import "github.com/platinummonkey/haven/pkg/contextkeys"
//	ctx = contextkeys.WithAccount(ctx, account)
//	account, _ := ctx.Value(contextkeys.AuthKey).(*auth.Account)
package contextkeys

import "context"

// Key is the type for context keys to prevent collisions
type Key string

const (
	// AuthKey contains the authenticated, sanitized *auth.Account
	// Set by: middleware.Authenticator (pkg/middleware/auth.go)
	// Required by: authorization gates, protected handlers
	// Absent for anonymous requests
	AuthKey Key = "auth_account"

	// RequestIDKey contains request ID string (UUID)
	// Set by: httputil.RequestIDMiddleware
	// Used by: Logger, error responses
	RequestIDKey Key = "request_id"

	// AccountIDKey contains the authenticated account ID string
	// Set by: middleware.Authenticator
	// Used by: Logger
	AccountIDKey Key = "account_id"

	// LoggerKey contains *observability.Logger
	// Set by: httputil.LoggingMiddleware
	LoggerKey Key = "logger"
)

// WithAccount adds the authenticated account to the context
func WithAccount(ctx context.Context, account interface{}) context.Context {
	return context.WithValue(ctx, AuthKey, account)
}

// WithRequestID adds request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// WithAccountID adds account ID to the context
func WithAccountID(ctx context.Context, accountID string) context.Context {
	return context.WithValue(ctx, AccountIDKey, accountID)
}

// WithLogger adds logger to the context
func WithLogger(ctx context.Context, logger interface{}) context.Context {
	return context.WithValue(ctx, LoggerKey, logger)
}

// GetRequestID retrieves request ID from context
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}

// GetAccountID retrieves account ID from context
func GetAccountID(ctx context.Context) string {
	if accountID, ok := ctx.Value(AccountIDKey).(string); ok {
		return accountID
	}
	return ""
}
