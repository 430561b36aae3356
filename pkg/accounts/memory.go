package accounts

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/platinummonkey/haven/pkg/auth"
)

// MemoryStore is an in-process Store
type MemoryStore struct {
	mu      sync.RWMutex
	byID    map[string]*auth.Account
	byEmail map[string]string
	now     func() time.Time
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:    make(map[string]*auth.Account),
		byEmail: make(map[string]string),
		now:     time.Now,
	}
}

// Create inserts an account
func (s *MemoryStore) Create(_ context.Context, acc *auth.Account) error {
	email := auth.NormalizeEmail(acc.Email)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byEmail[email]; ok {
		return ErrEmailExists
	}
	if acc.ID == "" {
		acc.ID = uuid.New().String()
	}
	if _, ok := s.byID[acc.ID]; ok {
		return ErrIDExists
	}

	now := s.now().UTC()
	if acc.CreatedAt.IsZero() {
		acc.CreatedAt = now
	}
	acc.UpdatedAt = now
	acc.Email = email
	if acc.Role == "" {
		acc.Role = auth.RoleUser
	}

	stored := copyAccount(acc)
	s.byID[acc.ID] = stored
	s.byEmail[email] = acc.ID
	return nil
}

// FindByID returns an account by ID
func (s *MemoryStore) FindByID(_ context.Context, id string) (*auth.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	acc, ok := s.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return withoutCredentials(acc), nil
}

// FindByEmail returns an account by email
func (s *MemoryStore) FindByEmail(_ context.Context, email string) (*auth.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	acc, ok := s.lookupEmail(email)
	if !ok {
		return nil, ErrNotFound
	}
	return withoutCredentials(acc), nil
}

// FindByEmailWithCredentials returns an account by email including its hash
func (s *MemoryStore) FindByEmailWithCredentials(_ context.Context, email string) (*auth.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	acc, ok := s.lookupEmail(email)
	if !ok {
		return nil, ErrNotFound
	}
	return copyAccount(acc), nil
}

// UpdateActivity records the last activity of an account
func (s *MemoryStore) UpdateActivity(_ context.Context, id string, activity auth.Activity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.byID[id]
	if !ok {
		return ErrNotFound
	}
	activity.At = activity.At.UTC()
	acc.LastActivity = activity
	return nil
}

// RecordLoginFailure counts a failed login
func (s *MemoryStore) RecordLoginFailure(_ context.Context, id string, maxAttempts int, lockFor time.Duration, now time.Time) (*auth.SecurityState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	acc.Security = nextSecurityState(acc.Security, maxAttempts, lockFor, now)
	acc.UpdatedAt = now.UTC()

	state := acc.Security
	if state.LockUntil != nil {
		lu := *state.LockUntil
		state.LockUntil = &lu
	}
	return &state, nil
}

// ResetLoginFailures clears the failure count and lock
func (s *MemoryStore) ResetLoginFailures(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.byID[id]
	if !ok {
		return ErrNotFound
	}
	acc.Security = auth.SecurityState{}
	return nil
}

// SetActive toggles an account's active flag
func (s *MemoryStore) SetActive(_ context.Context, id string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.byID[id]
	if !ok {
		return ErrNotFound
	}
	acc.IsActive = active
	acc.UpdatedAt = s.now().UTC()
	return nil
}

func (s *MemoryStore) lookupEmail(email string) (*auth.Account, bool) {
	id, ok := s.byEmail[auth.NormalizeEmail(email)]
	if !ok {
		return nil, false
	}
	acc, ok := s.byID[id]
	return acc, ok
}

func copyAccount(acc *auth.Account) *auth.Account {
	cp := *acc
	if acc.Security.LockUntil != nil {
		lu := *acc.Security.LockUntil
		cp.Security.LockUntil = &lu
	}
	return &cp
}

func withoutCredentials(acc *auth.Account) *auth.Account {
	cp := copyAccount(acc)
	cp.PasswordHash = ""
	cp.Security = auth.SecurityState{}
	return cp
}

// Ping always succeeds
func (s *MemoryStore) Ping(context.Context) error { return nil }

// Close is a no-op
func (s *MemoryStore) Close() error { return nil }
