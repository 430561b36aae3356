package middleware

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/platinummonkey/haven/pkg/auth"
	"github.com/platinummonkey/haven/pkg/httputil"
	"github.com/platinummonkey/haven/pkg/observability"
)

// LockoutLookup finds an account together with its lockout state
type LockoutLookup interface {
	FindByEmailWithCredentials(ctx context.Context, email string) (*auth.Account, error)
}

// LoginLockout rejects login attempts for accounts that are currently locked
type LoginLockout struct {
	store   LockoutLookup
	metrics *observability.Metrics
	now     func() time.Time
}

// NewLoginLockout creates a lockout gate. metrics may be nil.
func NewLoginLockout(store LockoutLookup, metrics *observability.Metrics) *LoginLockout {
	return &LoginLockout{store: store, metrics: metrics, now: time.Now}
}

// LoginRateLimit returns the lockout gate for store as a middleware
func LoginRateLimit(store LockoutLookup) func(http.Handler) http.Handler {
	return NewLoginLockout(store, nil).Handler
}

// Handler reads the "email" body field and rejects with 423 while the account is
// locked. Requests without an email and lookup failures pass through.
func (l *LoginLockout) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		email := auth.NormalizeEmail(httputil.BodyField(r, "email"))
		if email == "" {
			next.ServeHTTP(w, r)
			return
		}

		account, err := l.store.FindByEmailWithCredentials(r.Context(), email)
		if err != nil {
			l.metrics.RecordGateDecision("login_lockout", observability.OutcomeSkipped)
			next.ServeHTTP(w, r)
			return
		}

		now := l.now()
		if !account.IsLocked(now) {
			l.metrics.RecordGateDecision("login_lockout", observability.OutcomeAllowed)
			next.ServeHTTP(w, r)
			return
		}

		minutes := LockMinutesRemaining(*account.Security.LockUntil, now)
		l.metrics.RecordGateDecision("login_lockout", observability.OutcomeDenied)
		l.metrics.RecordLockout()
		observability.FromContext(r.Context()).WithFields(map[string]interface{}{
			"account_id":        account.ID,
			"minutes_remaining": minutes,
		}).Info("login rejected for locked account")

		msg := fmt.Sprintf("Account is temporarily locked due to too many failed login attempts. Try again in %d minutes.", minutes)
		httputil.WriteRejection(w, http.StatusLocked, CodeAccountLocked, msg, map[string]interface{}{
			"lockTimeRemaining": minutes,
		})
	})
}

// LockMinutesRemaining rounds the time left on a lock up to whole minutes
func LockMinutesRemaining(lockUntil, now time.Time) int {
	return int(math.Ceil(float64(lockUntil.Sub(now)) / float64(time.Minute)))
}
