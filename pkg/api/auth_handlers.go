package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/platinummonkey/haven/pkg/accounts"
	"github.com/platinummonkey/haven/pkg/auth"
	"github.com/platinummonkey/haven/pkg/httputil"
	"github.com/platinummonkey/haven/pkg/middleware"
	"github.com/platinummonkey/haven/pkg/observability"
)

// Login results recorded in haven_login_attempts_total
const (
	loginSuccess            = "success"
	loginInvalidCredentials = "invalid_credentials"
	loginLocked             = "locked"
	loginInactive           = "inactive"
	loginError              = "error"
)

// CodeInvalidCredentials is returned when the email or password is wrong
const CodeInvalidCredentials = "INVALID_CREDENTIALS"

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Role     string `json:"role"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// authResponse is the data returned after registration or login
type authResponse struct {
	Token     string        `json:"token"`
	ExpiresIn int64         `json:"expiresIn"`
	User      *auth.Account `json:"user"`
}

// register handles POST /api/auth/register
func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	var role auth.Role
	if strings.TrimSpace(req.Role) != "" {
		parsed, err := auth.ParseRole(req.Role)
		if err != nil {
			httputil.WriteBadRequest(w, err.Error())
			return
		}
		role = parsed
	}

	result, err := s.opts.Service.Register(r.Context(), accounts.RegisterInput{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
		Role:     role,
	})
	if err != nil {
		var weak *accounts.WeakPasswordError
		switch {
		case errors.As(err, &weak):
			httputil.WriteValidationError(w, "Password does not meet requirements", weak.Errors)
		case errors.Is(err, accounts.ErrInvalidEmail):
			httputil.WriteValidationError(w, "Invalid registration data", []string{err.Error()})
		case errors.Is(err, accounts.ErrRoleNotAllowed):
			httputil.WriteRejection(w, http.StatusForbidden, middleware.CodeInsufficientPermissions, err.Error(), nil)
		case errors.Is(err, accounts.ErrEmailExists):
			httputil.WriteConflict(w, "An account with this email already exists")
		default:
			observability.FromContext(r.Context()).WithError(err).Error("registration failed")
			httputil.WriteInternalError(w, errors.New("registration failed"))
		}
		return
	}

	s.opts.Metrics.RecordTokenIssued()
	s.setTokenCookie(w, result.Token)
	httputil.WriteCreated(w, "Registration successful", s.authResponse(result))
}

// login handles POST /api/auth/login
func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		httputil.WriteValidationError(w, "Email and password are required", nil)
		return
	}

	result, err := s.opts.Service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		var locked *accounts.LockedError
		switch {
		case errors.As(err, &locked):
			s.opts.Metrics.RecordLogin(loginLocked)
			s.opts.Metrics.RecordLockout()
			minutes := middleware.LockMinutesRemaining(locked.Until, s.now())
			httputil.WriteRejection(w, http.StatusLocked, middleware.CodeAccountLocked,
				"Account is temporarily locked due to too many failed login attempts.",
				map[string]interface{}{"lockTimeRemaining": minutes})
		case errors.Is(err, accounts.ErrAccountInactive):
			s.opts.Metrics.RecordLogin(loginInactive)
			httputil.WriteRejection(w, http.StatusUnauthorized, middleware.CodeAccountDeactivated, "Account has been deactivated.", nil)
		case errors.Is(err, accounts.ErrInvalidCredentials):
			s.opts.Metrics.RecordLogin(loginInvalidCredentials)
			httputil.WriteRejection(w, http.StatusUnauthorized, CodeInvalidCredentials, "Invalid email or password.", nil)
		default:
			s.opts.Metrics.RecordLogin(loginError)
			observability.FromContext(r.Context()).WithError(err).Error("login failed")
			httputil.WriteInternalError(w, errors.New("login failed"))
		}
		return
	}

	s.opts.Metrics.RecordLogin(loginSuccess)
	s.opts.Metrics.RecordTokenIssued()
	s.setTokenCookie(w, result.Token)
	httputil.WriteSuccess(w, "Login successful", s.authResponse(result))
}

// logout handles POST /api/auth/logout
func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, s.opts.Issuer.CookieOptions().ExpiredCookie(auth.TokenCookieName))
	httputil.WriteSuccess(w, "Logged out", nil)
}

// me handles GET /api/auth/me
func (s *Server) me(w http.ResponseWriter, r *http.Request) {
	httputil.WriteSuccess(w, "", map[string]interface{}{"user": middleware.GetAccount(r)})
}

func (s *Server) setTokenCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, s.opts.Issuer.CookieOptions().Cookie(auth.TokenCookieName, token))
}

func (s *Server) authResponse(result *accounts.LoginResult) authResponse {
	return authResponse{
		Token:     result.Token,
		ExpiresIn: int64(result.ExpiresIn.Seconds()),
		User:      result.Account,
	}
}
