// Package middleware provides the HTTP gates that authenticate and authorize requests.
//
// # Overview
//
// An inbound request first passes the authentication gate, which resolves the
// account behind its bearer token, then zero or more authorization gates that
// either pass it on or answer with a rejection:
//
//	{"success": false, "message": "...", "code": "INVALID_TOKEN", ...}
//
// # Authentication
//
//	authn := middleware.NewAuthenticator(issuer, store, logger, metrics)
//	router.Handle("/api/auth/me", authn.Authenticate(me))
//	router.Handle("/api/properties", authn.Optional(list))
//
// Authenticate reads the Authorization header, falling back to the "token"
// cookie, and rejects with NO_TOKEN, INVALID_TOKEN, USER_NOT_FOUND or
// ACCOUNT_DEACTIVATED. Optional never rejects.
//
// # Authorization
//
//	middleware.Authorize(auth.RoleAgent, auth.RoleAdmin)
//	middleware.AdminOnly
//	middleware.AgentOnly
//	middleware.UserOnly
//	middleware.OwnerOrAdmin("userId")
//	middleware.OwnerOrPrivileged("ownerId")
//
// All of them answer anonymous requests with 401 AUTH_REQUIRED.
//
// # Login protection
//
// LoginThrottle limits attempts per client IP using a RateLimiter (in memory)
// or a DistributedRateLimiter (Redis) and answers 429 TOO_MANY_ATTEMPTS.
// LoginLockout answers 423 ACCOUNT_LOCKED while the account named in the
// request body is locked. Both let requests through when their backend fails.
//
// # Related Packages
//
//   - pkg/auth: Token verification and account types
//   - pkg/accounts: Account store
//   - pkg/httputil: Rejection responses
package middleware
