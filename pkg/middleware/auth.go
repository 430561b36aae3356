package middleware

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/platinummonkey/haven/pkg/accounts"
	"github.com/platinummonkey/haven/pkg/auth"
	"github.com/platinummonkey/haven/pkg/contextkeys"
	"github.com/platinummonkey/haven/pkg/httputil"
	"github.com/platinummonkey/haven/pkg/observability"
)

// Rejection codes returned in the "code" field of gate responses
const (
	CodeNoToken                 = "NO_TOKEN"
	CodeInvalidToken            = "INVALID_TOKEN"
	CodeUserNotFound            = "USER_NOT_FOUND"
	CodeAccountDeactivated      = "ACCOUNT_DEACTIVATED"
	CodeAuthRequired            = "AUTH_REQUIRED"
	CodeInsufficientPermissions = "INSUFFICIENT_PERMISSIONS"
	CodeAdminAccessRequired     = "ADMIN_ACCESS_REQUIRED"
	CodeAgentAccessRequired     = "AGENT_ACCESS_REQUIRED"
	CodeResourceAccessDenied    = "RESOURCE_ACCESS_DENIED"
	CodeAccountLocked           = "ACCOUNT_LOCKED"
	CodeAPIKeyRequired          = "API_KEY_REQUIRED"
	CodeInvalidAPIKey           = "INVALID_API_KEY"
	CodeTooManyAttempts         = "TOO_MANY_ATTEMPTS"
)

const tracerName = "github.com/platinummonkey/haven/pkg/middleware"

// TokenVerifier verifies bearer tokens
type TokenVerifier interface {
	VerifyToken(token string) (*auth.Claims, error)
}

// AccountLoader loads accounts and records their activity
type AccountLoader interface {
	FindByID(ctx context.Context, id string) (*auth.Account, error)
	UpdateActivity(ctx context.Context, id string, activity auth.Activity) error
}

// rejection is a terminal gate decision
type rejection struct {
	status  int
	code    string
	message string
}

func (rj *rejection) write(w http.ResponseWriter) {
	httputil.WriteRejection(w, rj.status, rj.code, rj.message, nil)
}

// Authenticator resolves the account behind a request's bearer token
type Authenticator struct {
	verifier TokenVerifier
	store    AccountLoader
	logger   *observability.Logger
	metrics  *observability.Metrics
	tracer   trace.Tracer
	now      func() time.Time
}

// NewAuthenticator creates an authentication gate. logger and metrics may be nil.
func NewAuthenticator(verifier TokenVerifier, store AccountLoader, logger *observability.Logger, metrics *observability.Metrics) *Authenticator {
	return &Authenticator{
		verifier: verifier,
		store:    store,
		logger:   logger,
		metrics:  metrics,
		tracer:   observability.Tracer(tracerName),
		now:      time.Now,
	}
}

// Authenticate rejects requests that do not carry a valid token for an active account
func (a *Authenticator) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, span := a.tracer.Start(r.Context(), "auth.Authenticate")
		defer span.End()
		r = r.WithContext(ctx)

		account, rej := a.resolve(r)
		if rej != nil {
			span.SetAttributes(attribute.String("auth.rejection", rej.code))
			span.SetStatus(codes.Error, rej.code)
			a.metrics.RecordGateDecision("authenticate", observability.OutcomeDenied)
			rej.write(w)
			return
		}

		span.SetAttributes(
			attribute.String("auth.account_id", account.ID),
			attribute.String("auth.role", string(account.Role)),
		)
		a.metrics.RecordGateDecision("authenticate", observability.OutcomeAllowed)
		next.ServeHTTP(w, r.WithContext(withAccount(r.Context(), account)))
	})
}

// Optional attaches the account when the request authenticates and otherwise
// serves the request anonymously
func (a *Authenticator) Optional(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, span := a.tracer.Start(r.Context(), "auth.Authenticate")
		defer span.End()
		span.SetAttributes(attribute.Bool("auth.optional", true))
		r = r.WithContext(ctx)

		account, rej := a.resolve(r)
		if rej != nil {
			span.SetAttributes(attribute.String("auth.rejection", rej.code))
			a.metrics.RecordGateDecision("optional", observability.OutcomeSkipped)
			next.ServeHTTP(w, r)
			return
		}

		a.metrics.RecordGateDecision("optional", observability.OutcomeAllowed)
		next.ServeHTTP(w, r.WithContext(withAccount(r.Context(), account)))
	})
}

// resolve walks a request from token extraction to an active, sanitized account
func (a *Authenticator) resolve(r *http.Request) (*auth.Account, *rejection) {
	ctx := r.Context()

	token := requestToken(r)
	if token == "" {
		return nil, &rejection{http.StatusUnauthorized, CodeNoToken, "Access denied. No token provided."}
	}

	claims, err := a.verifier.VerifyToken(token)
	if err != nil {
		return nil, &rejection{http.StatusUnauthorized, CodeInvalidToken, "Invalid token."}
	}

	account, err := a.store.FindByID(ctx, claims.ID)
	if errors.Is(err, accounts.ErrNotFound) {
		return nil, &rejection{http.StatusUnauthorized, CodeUserNotFound, "Token is valid but user no longer exists."}
	}
	if err != nil {
		a.log(ctx).WithError(err).WithField("account_id", claims.ID).Error("account lookup failed during authentication")
		return nil, &rejection{http.StatusUnauthorized, CodeInvalidToken, "Invalid token."}
	}

	if !account.IsActive {
		return nil, &rejection{http.StatusUnauthorized, CodeAccountDeactivated, "Account has been deactivated."}
	}

	activity := auth.Activity{
		IP:        httputil.ClientIP(r),
		UserAgent: r.UserAgent(),
		At:        a.now().UTC(),
	}
	if err := a.store.UpdateActivity(ctx, account.ID, activity); err != nil {
		a.log(ctx).WithError(err).WithField("account_id", account.ID).Warn("failed to record account activity")
	} else {
		account.LastActivity = activity
	}

	return account.Sanitized(), nil
}

func (a *Authenticator) log(ctx context.Context) *observability.Logger {
	if a.logger != nil {
		return a.logger
	}
	return observability.FromContext(ctx)
}

// requestToken reads the bearer token from the Authorization header, then the token cookie
func requestToken(r *http.Request) string {
	if token := auth.ExtractToken(r.Header.Get("Authorization")); token != "" {
		return token
	}
	if cookie, err := r.Cookie(auth.TokenCookieName); err == nil {
		return cookie.Value
	}
	return ""
}

func withAccount(ctx context.Context, account *auth.Account) context.Context {
	ctx = contextkeys.WithAccount(ctx, account)
	return contextkeys.WithAccountID(ctx, account.ID)
}

// AccountFromContext returns the authenticated account, if any
func AccountFromContext(ctx context.Context) (*auth.Account, bool) {
	account, ok := ctx.Value(contextkeys.AuthKey).(*auth.Account)
	return account, ok && account != nil
}

// GetAccount returns the authenticated account of r, or nil
func GetAccount(r *http.Request) *auth.Account {
	account, _ := AccountFromContext(r.Context())
	return account
}
