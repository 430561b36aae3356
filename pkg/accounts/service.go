package accounts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/platinummonkey/haven/pkg/auth"
	"github.com/platinummonkey/haven/pkg/observability"
)

// Service errors
var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrAccountLocked      = errors.New("account is temporarily locked")
	ErrAccountInactive    = errors.New("account is deactivated")
	ErrWeakPassword       = errors.New("password does not meet strength requirements")
	ErrInvalidEmail       = errors.New("a valid email address is required")
	ErrRoleNotAllowed     = errors.New("role cannot be self-assigned")
)

// Lockout defaults
const (
	DefaultMaxLoginAttempts = 5
	DefaultLockDuration     = 2 * time.Hour
)

// WeakPasswordError lists the strength rules a password failed
type WeakPasswordError struct {
	Errors []string
}

func (e *WeakPasswordError) Error() string {
	return fmt.Sprintf("%s: %s", ErrWeakPassword, strings.Join(e.Errors, "; "))
}

func (e *WeakPasswordError) Unwrap() error {
	return ErrWeakPassword
}

// LockedError reports when a locked account becomes usable again
type LockedError struct {
	Until time.Time
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("%s until %s", ErrAccountLocked, e.Until.Format(time.RFC3339))
}

func (e *LockedError) Unwrap() error {
	return ErrAccountLocked
}

// TokenGenerator issues bearer tokens
type TokenGenerator interface {
	GenerateToken(accountID string, role auth.Role, email string) (string, error)
	ExpiresIn() time.Duration
}

// LockoutPolicy controls account lockout after repeated login failures
type LockoutPolicy struct {
	MaxAttempts  int
	LockDuration time.Duration
}

// RegisterInput is the data needed to create an account
type RegisterInput struct {
	Email    string
	Password string
	Name     string
	Role     auth.Role
}

// LoginResult is returned by a successful login or registration
type LoginResult struct {
	Account   *auth.Account
	Token     string
	ExpiresIn time.Duration
}

// Service implements registration and login on top of a Store
type Service struct {
	store   Store
	tokens  TokenGenerator
	lockout LockoutPolicy
	logger  *observability.Logger
	now     func() time.Time
}

// NewService creates a Service. Zero policy fields use the defaults.
func NewService(store Store, tokens TokenGenerator, lockout LockoutPolicy, logger *observability.Logger) *Service {
	if lockout.MaxAttempts <= 0 {
		lockout.MaxAttempts = DefaultMaxLoginAttempts
	}
	if lockout.LockDuration <= 0 {
		lockout.LockDuration = DefaultLockDuration
	}
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, nil)
	}
	return &Service{
		store:   store,
		tokens:  tokens,
		lockout: lockout,
		logger:  logger,
		now:     time.Now,
	}
}

// Register creates an active account and issues its first token
func (s *Service) Register(ctx context.Context, in RegisterInput) (*LoginResult, error) {
	email := auth.NormalizeEmail(in.Email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, ErrInvalidEmail
	}

	role := in.Role
	if role == "" {
		role = auth.RoleUser
	}
	if role != auth.RoleUser && role != auth.RoleAgent {
		return nil, fmt.Errorf("%w: %s", ErrRoleNotAllowed, role)
	}

	strength := auth.ValidatePasswordStrength(in.Password)
	if !strength.IsValid {
		return nil, &WeakPasswordError{Errors: strength.Errors}
	}
	if auth.IsCommonPassword(in.Password) {
		return nil, &WeakPasswordError{Errors: []string{"Password is too common"}}
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	acc := &auth.Account{
		Email:        email,
		PasswordHash: hash,
		Name:         strings.TrimSpace(in.Name),
		Role:         role,
		IsActive:     true,
	}
	if err := s.store.Create(ctx, acc); err != nil {
		return nil, err
	}

	s.logger.WithFields(map[string]interface{}{
		"account_id": acc.ID,
		"role":       string(acc.Role),
	}).Info("account registered")

	return s.issue(acc)
}

// Login checks credentials and issues a token. Failed password checks count
// towards the lockout policy.
func (s *Service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	acc, err := s.store.FindByEmailWithCredentials(ctx, email)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load account: %w", err)
	}

	now := s.now()
	if acc.IsLocked(now) {
		return nil, &LockedError{Until: *acc.Security.LockUntil}
	}
	if !acc.IsActive {
		return nil, ErrAccountInactive
	}

	ok, err := auth.ComparePassword(password, acc.PasswordHash)
	if err != nil {
		s.logger.WithError(err).WithField("account_id", acc.ID).Warn("password comparison failed")
	}
	if !ok {
		state, err := s.store.RecordLoginFailure(ctx, acc.ID, s.lockout.MaxAttempts, s.lockout.LockDuration, now)
		if err != nil {
			s.logger.WithError(err).WithField("account_id", acc.ID).Error("failed to record login failure")
		} else if state.LockUntil != nil {
			s.logger.WithFields(map[string]interface{}{
				"account_id": acc.ID,
				"attempts":   state.LoginAttempts,
			}).Warn("account locked after repeated login failures")
		}
		return nil, ErrInvalidCredentials
	}

	if acc.Security.LoginAttempts > 0 || acc.Security.LockUntil != nil {
		if err := s.store.ResetLoginFailures(ctx, acc.ID); err != nil {
			s.logger.WithError(err).WithField("account_id", acc.ID).Warn("failed to reset login failures")
		}
	}

	return s.issue(acc)
}

func (s *Service) issue(acc *auth.Account) (*LoginResult, error) {
	token, err := s.tokens.GenerateToken(acc.ID, acc.Role, acc.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}
	clean := acc.Sanitized()
	clean.Security = auth.SecurityState{}
	return &LoginResult{
		Account:   clean,
		Token:     token,
		ExpiresIn: s.tokens.ExpiresIn(),
	}, nil
}
