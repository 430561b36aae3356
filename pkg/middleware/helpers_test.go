package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/haven/pkg/accounts"
	"github.com/platinummonkey/haven/pkg/auth"
	"github.com/platinummonkey/haven/pkg/observability"
)

const testSecret = "middleware-test-secret"

func newTestIssuer(t testing.TB) *auth.TokenIssuer {
	t.Helper()
	issuer, err := auth.NewTokenIssuer(auth.TokenConfig{Secret: testSecret, ExpiresIn: time.Hour})
	require.NoError(t, err)
	return issuer
}

func newTestLogger() *observability.Logger {
	return observability.NewLogger(observability.ErrorLevel, io.Discard)
}

// seedAccount stores an active account and returns it with a token for it
func seedAccount(t testing.TB, store *accounts.MemoryStore, issuer *auth.TokenIssuer, id string, role auth.Role) (*auth.Account, string) {
	t.Helper()
	acc := &auth.Account{
		ID:           id,
		Email:        id + "@haven.example",
		PasswordHash: "$2a$12$not-a-real-hash",
		Name:         id,
		Role:         role,
		IsActive:     true,
	}
	require.NoError(t, store.Create(context.Background(), acc))

	token, err := issuer.GenerateToken(acc.ID, acc.Role, acc.Email)
	require.NoError(t, err)
	return acc, token
}

// withIdentity returns r carrying account as the authenticated identity
func withIdentity(r *http.Request, account *auth.Account) *http.Request {
	if account == nil {
		return r
	}
	return r.WithContext(withAccount(r.Context(), account))
}

// withVars sets gorilla/mux route variables on r
func withVars(r *http.Request, vars map[string]string) *http.Request {
	if vars == nil {
		return r
	}
	return mux.SetURLVars(r, vars)
}

func jsonRequest(t *testing.T, method, target string, body interface{}) *http.Request {
	t.Helper()
	if body == nil {
		return httptest.NewRequest(method, target, nil)
	}
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(method, target, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decodeRejection(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

// okHandler records whether it was reached and the identity it saw
type okHandler struct {
	called  bool
	account *auth.Account
}

func (h *okHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.called = true
	h.account = GetAccount(r)
	w.WriteHeader(http.StatusOK)
}

// stubStore is an AccountLoader and LockoutLookup with scripted results
type stubStore struct {
	account     *auth.Account
	findErr     error
	activityErr error
	activities  []auth.Activity
}

func (s *stubStore) FindByID(context.Context, string) (*auth.Account, error) {
	if s.findErr != nil {
		return nil, s.findErr
	}
	cp := *s.account
	return &cp, nil
}

func (s *stubStore) UpdateActivity(_ context.Context, _ string, a auth.Activity) error {
	s.activities = append(s.activities, a)
	return s.activityErr
}

func (s *stubStore) FindByEmailWithCredentials(context.Context, string) (*auth.Account, error) {
	return s.FindByID(context.Background(), "")
}

func decodeJSON(r *http.Request, dest interface{}) error {
	return json.NewDecoder(r.Body).Decode(dest)
}
