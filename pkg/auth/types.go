package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Role represents an account's authorisation tier
type Role string

const (
	RoleGuest Role = "guest" // Anonymous-equivalent account
	RoleUser  Role = "user"  // Buyer or renter
	RoleAgent Role = "agent" // Can manage listings
	RoleAdmin Role = "admin" // Full access
)

// ValidRoles lists every role an account may hold
var ValidRoles = []Role{RoleGuest, RoleUser, RoleAgent, RoleAdmin}

// IsValid reports whether r is one of ValidRoles
func (r Role) IsValid() bool {
	for _, v := range ValidRoles {
		if r == v {
			return true
		}
	}
	return false
}

// ParseRole converts a string into a Role
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if !r.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownRole, s)
	}
	return r, nil
}

// SecurityState tracks failed logins for lockout decisions.
// It is only populated by credential lookups.
type SecurityState struct {
	LoginAttempts int        `json:"loginAttempts"`
	LockUntil     *time.Time `json:"lockUntil,omitempty"`
}

// Activity records where and when an account was last seen
type Activity struct {
	IP        string    `json:"ip,omitempty"`
	UserAgent string    `json:"userAgent,omitempty"`
	At        time.Time `json:"at"`
}

// Account represents a registered user, agent or admin
type Account struct {
	ID              string        `json:"id"`
	Email           string        `json:"email"`
	PasswordHash    string        `json:"-"` // never serialised
	Name            string        `json:"name,omitempty"`
	Role            Role          `json:"role"`
	IsActive        bool          `json:"isActive"`
	IsEmailVerified bool          `json:"isEmailVerified"`
	Security        SecurityState `json:"-"`
	LastActivity    Activity      `json:"lastActivity"`
	CreatedAt       time.Time     `json:"createdAt"`
	UpdatedAt       time.Time     `json:"updatedAt"`
}

// Sanitized returns a copy of the account without its password hash
func (a *Account) Sanitized() *Account {
	if a == nil {
		return nil
	}
	cp := *a
	cp.PasswordHash = ""
	if a.Security.LockUntil != nil {
		lu := *a.Security.LockUntil
		cp.Security.LockUntil = &lu
	}
	return &cp
}

// IsLocked reports whether the account is locked out at now
func (a *Account) IsLocked(now time.Time) bool {
	return a.Security.LockUntil != nil && a.Security.LockUntil.After(now)
}

// HasRole reports whether the account holds any of the given roles
func (a *Account) HasRole(roles ...Role) bool {
	for _, r := range roles {
		if a.Role == r {
			return true
		}
	}
	return false
}

// NormalizeEmail trims and lower-cases an email address for storage and lookup
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Sentinel errors for credential and token operations.
var (
	ErrHashing        = errors.New("password hashing failed")
	ErrComparison     = errors.New("password comparison failed")
	ErrPasswordLength = errors.New("password length must be at least 4")
	ErrInvalidToken   = errors.New("invalid or expired token")
	ErrMissingSecret  = errors.New("JWT secret not configured")
	ErrUnknownRole    = errors.New("unknown role")
)
