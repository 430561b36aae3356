package accounts

import (
	"context"
	"errors"
	"time"

	"github.com/platinummonkey/haven/pkg/auth"
)

// Store errors
var (
	ErrNotFound    = errors.New("account not found")
	ErrEmailExists = errors.New("email already registered")
	ErrIDExists    = errors.New("account id already in use")
)

// Store persists accounts
type Store interface {
	// Create inserts a new account. ID, CreatedAt and UpdatedAt are filled in when empty.
	Create(ctx context.Context, acc *auth.Account) error

	// FindByID returns the account without its password hash
	FindByID(ctx context.Context, id string) (*auth.Account, error)

	// FindByEmail returns the account without its password hash
	FindByEmail(ctx context.Context, email string) (*auth.Account, error)

	// FindByEmailWithCredentials returns the account with password hash and security state
	FindByEmailWithCredentials(ctx context.Context, email string) (*auth.Account, error)

	// UpdateActivity records the last request made by an account
	UpdateActivity(ctx context.Context, id string, activity auth.Activity) error

	// RecordLoginFailure counts a failed login and locks the account for lockFor
	// once maxAttempts is reached. An expired lock restarts the count.
	RecordLoginFailure(ctx context.Context, id string, maxAttempts int, lockFor time.Duration, now time.Time) (*auth.SecurityState, error)

	// ResetLoginFailures clears the failure count and any lock
	ResetLoginFailures(ctx context.Context, id string) error

	// SetActive activates or deactivates an account
	SetActive(ctx context.Context, id string, active bool) error
}

// nextSecurityState applies one login failure to the current state
func nextSecurityState(cur auth.SecurityState, maxAttempts int, lockFor time.Duration, now time.Time) auth.SecurityState {
	if cur.LockUntil != nil && !cur.LockUntil.After(now) {
		return auth.SecurityState{LoginAttempts: 1}
	}

	next := auth.SecurityState{LoginAttempts: cur.LoginAttempts + 1, LockUntil: cur.LockUntil}
	if next.LockUntil == nil && maxAttempts > 0 && next.LoginAttempts >= maxAttempts {
		until := now.Add(lockFor).UTC()
		next.LockUntil = &until
	}
	return next
}
