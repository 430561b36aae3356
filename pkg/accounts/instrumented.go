package accounts

import (
	"context"
	"errors"
	"time"

	"github.com/platinummonkey/haven/pkg/auth"
	"github.com/platinummonkey/haven/pkg/observability"
)

// InstrumentedStore records the count and latency of every Store call in
// haven_storage_operations_total and haven_storage_operation_duration_seconds
type InstrumentedStore struct {
	Backend
	metrics *observability.Metrics
}

// NewInstrumentedStore wraps b. A nil metrics returns b unchanged.
func NewInstrumentedStore(b Backend, metrics *observability.Metrics) Backend {
	if metrics == nil {
		return b
	}
	return &InstrumentedStore{Backend: b, metrics: metrics}
}

// observe records one operation. ErrNotFound is an answer, not a failure.
func (s *InstrumentedStore) observe(operation string, start time.Time, err error) {
	if errors.Is(err, ErrNotFound) {
		err = nil
	}
	s.metrics.ObserveStorage(operation, start, err)
}

// Create implements Store
func (s *InstrumentedStore) Create(ctx context.Context, acc *auth.Account) error {
	start := time.Now()
	err := s.Backend.Create(ctx, acc)
	s.observe("create", start, err)
	return err
}

// FindByID implements Store
func (s *InstrumentedStore) FindByID(ctx context.Context, id string) (*auth.Account, error) {
	start := time.Now()
	acc, err := s.Backend.FindByID(ctx, id)
	s.observe("find_by_id", start, err)
	return acc, err
}

// FindByEmail implements Store
func (s *InstrumentedStore) FindByEmail(ctx context.Context, email string) (*auth.Account, error) {
	start := time.Now()
	acc, err := s.Backend.FindByEmail(ctx, email)
	s.observe("find_by_email", start, err)
	return acc, err
}

// FindByEmailWithCredentials implements Store
func (s *InstrumentedStore) FindByEmailWithCredentials(ctx context.Context, email string) (*auth.Account, error) {
	start := time.Now()
	acc, err := s.Backend.FindByEmailWithCredentials(ctx, email)
	s.observe("find_by_email_with_credentials", start, err)
	return acc, err
}

// UpdateActivity implements Store
func (s *InstrumentedStore) UpdateActivity(ctx context.Context, id string, activity auth.Activity) error {
	start := time.Now()
	err := s.Backend.UpdateActivity(ctx, id, activity)
	s.observe("update_activity", start, err)
	return err
}

// RecordLoginFailure implements Store
func (s *InstrumentedStore) RecordLoginFailure(ctx context.Context, id string, maxAttempts int, lockFor time.Duration, now time.Time) (*auth.SecurityState, error) {
	start := time.Now()
	state, err := s.Backend.RecordLoginFailure(ctx, id, maxAttempts, lockFor, now)
	s.observe("record_login_failure", start, err)
	return state, err
}

// ResetLoginFailures implements Store
func (s *InstrumentedStore) ResetLoginFailures(ctx context.Context, id string) error {
	start := time.Now()
	err := s.Backend.ResetLoginFailures(ctx, id)
	s.observe("reset_login_failures", start, err)
	return err
}

// SetActive implements Store
func (s *InstrumentedStore) SetActive(ctx context.Context, id string, active bool) error {
	start := time.Now()
	err := s.Backend.SetActive(ctx, id, active)
	s.observe("set_active", start, err)
	return err
}
