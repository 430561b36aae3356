package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/haven/pkg/accounts"
	"github.com/platinummonkey/haven/pkg/auth"
	"github.com/platinummonkey/haven/pkg/observability"
)

func TestLoginLockout(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name          string
		lockUntil     *time.Time
		body          interface{}
		wantStatus    int
		wantRemaining float64
	}{
		{
			name:          "locked for five minutes",
			lockUntil:     ptrTime(now.Add(300000 * time.Millisecond)),
			body:          map[string]string{"email": "buyer@haven.example"},
			wantStatus:    http.StatusLocked,
			wantRemaining: 5,
		},
		{
			name:          "partial minute rounds up",
			lockUntil:     ptrTime(now.Add(61 * time.Second)),
			body:          map[string]string{"email": "buyer@haven.example"},
			wantStatus:    http.StatusLocked,
			wantRemaining: 2,
		},
		{
			name:          "email is normalised",
			lockUntil:     ptrTime(now.Add(time.Hour)),
			body:          map[string]string{"email": "  Buyer@Haven.Example "},
			wantStatus:    http.StatusLocked,
			wantRemaining: 60,
		},
		{
			name:       "lock expired",
			lockUntil:  ptrTime(now.Add(-time.Minute)),
			body:       map[string]string{"email": "buyer@haven.example"},
			wantStatus: http.StatusOK,
		},
		{
			name:       "never locked",
			body:       map[string]string{"email": "buyer@haven.example"},
			wantStatus: http.StatusOK,
		},
		{
			name:       "unknown email",
			lockUntil:  ptrTime(now.Add(time.Hour)),
			body:       map[string]string{"email": "nobody@haven.example"},
			wantStatus: http.StatusOK,
		},
		{
			name:       "no email",
			lockUntil:  ptrTime(now.Add(time.Hour)),
			body:       map[string]string{"password": "x"},
			wantStatus: http.StatusOK,
		},
		{
			name:       "no body",
			lockUntil:  ptrTime(now.Add(time.Hour)),
			wantStatus: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := accounts.NewMemoryStore()
			require.NoError(t, store.Create(context.Background(), &auth.Account{
				ID:       "acc-1",
				Email:    "buyer@haven.example",
				Role:     auth.RoleUser,
				IsActive: true,
				Security: auth.SecurityState{LoginAttempts: 5, LockUntil: tt.lockUntil},
			}))

			gate := NewLoginLockout(store, nil)
			gate.now = func() time.Time { return now }

			req := jsonRequest(t, http.MethodPost, "/api/auth/login", tt.body)
			w, next := serveGate(t, gate.Handler, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantStatus == http.StatusOK {
				assert.True(t, next.called)
				return
			}
			assert.False(t, next.called)
			body := decodeRejection(t, w)
			assert.Equal(t, CodeAccountLocked, body["code"])
			assert.Equal(t, false, body["success"])
			assert.Equal(t, tt.wantRemaining, body["lockTimeRemaining"])
		})
	}
}

func TestLoginLockout_LookupErrorFailsOpen(t *testing.T) {
	gate := NewLoginLockout(&stubStore{findErr: errors.New("connection reset")}, nil)

	req := jsonRequest(t, http.MethodPost, "/api/auth/login", map[string]string{"email": "buyer@haven.example"})
	w, next := serveGate(t, gate.Handler, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, next.called)
}

func TestLoginLockout_BodyReachesHandler(t *testing.T) {
	store := accounts.NewMemoryStore()
	gate := LoginRateLimit(store)

	req := jsonRequest(t, http.MethodPost, "/api/auth/login", map[string]string{"email": "a@haven.example", "password": "pw"})
	var got struct{ Email, Password string }
	gate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, decodeJSON(r, &got))
	})).ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, "a@haven.example", got.Email)
	assert.Equal(t, "pw", got.Password)
}

func TestLoginLockout_Metrics(t *testing.T) {
	until := time.Now().Add(10 * time.Minute)
	store := &stubStore{account: &auth.Account{
		ID:       "acc-1",
		IsActive: true,
		Security: auth.SecurityState{LockUntil: &until},
	}}
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	gate := NewLoginLockout(store, metrics)

	req := jsonRequest(t, http.MethodPost, "/api/auth/login", map[string]string{"email": "a@haven.example"})
	w, _ := serveGate(t, gate.Handler, req)

	require.Equal(t, http.StatusLocked, w.Code)
	assert.Equal(t, 10.0, decodeRejection(t, w)["lockTimeRemaining"])
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.AccountLockoutsTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.AuthGateDecisionsTotal.WithLabelValues("login_lockout", observability.OutcomeDenied)))
}

func TestLockMinutesRemaining(t *testing.T) {
	now := time.Unix(1700000000, 0)
	assert.Equal(t, 5, LockMinutesRemaining(now.Add(5*time.Minute), now))
	assert.Equal(t, 1, LockMinutesRemaining(now.Add(time.Millisecond), now))
	assert.Equal(t, 120, LockMinutesRemaining(now.Add(2*time.Hour), now))
}

func ptrTime(t time.Time) *time.Time {
	return &t
}
