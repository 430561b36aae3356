package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/platinummonkey/haven/pkg/auth"
	"github.com/platinummonkey/haven/pkg/httputil"
)

// requireAccount runs check against the authenticated account, rejecting
// anonymous requests with AUTH_REQUIRED
func requireAccount(check func(w http.ResponseWriter, r *http.Request, account *auth.Account) bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			account := GetAccount(r)
			if account == nil {
				httputil.WriteRejection(w, http.StatusUnauthorized, CodeAuthRequired, "Authentication required.", nil)
				return
			}
			if !check(w, r, account) {
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Authorize passes accounts holding one of roles
func Authorize(roles ...auth.Role) func(http.Handler) http.Handler {
	return requireAccount(func(w http.ResponseWriter, r *http.Request, account *auth.Account) bool {
		if account.HasRole(roles...) {
			return true
		}
		names := make([]string, len(roles))
		for i, role := range roles {
			names[i] = string(role)
		}
		msg := fmt.Sprintf("Access denied. Required roles: %s. Your role: %s", strings.Join(names, ", "), account.Role)
		httputil.WriteRejection(w, http.StatusForbidden, CodeInsufficientPermissions, msg, map[string]interface{}{
			"requiredRoles": names,
			"userRole":      account.Role,
		})
		return false
	})
}

// RoleAuth is Authorize taking the roles as a slice
func RoleAuth(roles []auth.Role) func(http.Handler) http.Handler {
	return Authorize(roles...)
}

// AdminOnly passes admins
func AdminOnly(next http.Handler) http.Handler {
	return requireAccount(func(w http.ResponseWriter, r *http.Request, account *auth.Account) bool {
		if account.Role == auth.RoleAdmin {
			return true
		}
		httputil.WriteRejection(w, http.StatusForbidden, CodeAdminAccessRequired, "Admin access required.", nil)
		return false
	})(next)
}

// AgentOnly passes agents and admins
func AgentOnly(next http.Handler) http.Handler {
	return requireAccount(func(w http.ResponseWriter, r *http.Request, account *auth.Account) bool {
		if account.HasRole(auth.RoleAgent, auth.RoleAdmin) {
			return true
		}
		httputil.WriteRejection(w, http.StatusForbidden, CodeAgentAccessRequired, "Agent access required.", nil)
		return false
	})(next)
}

// UserOnly passes any authenticated account
func UserOnly(next http.Handler) http.Handler {
	return requireAccount(func(http.ResponseWriter, *http.Request, *auth.Account) bool {
		return true
	})(next)
}

// OwnerOrAdmin passes admins and the owner of the target resource. The target id
// is the route variable "id", then the route variable field, then the JSON body field.
func OwnerOrAdmin(field string) func(http.Handler) http.Handler {
	return requireAccount(func(w http.ResponseWriter, r *http.Request, account *auth.Account) bool {
		if account.Role == auth.RoleAdmin {
			return true
		}
		if target := resourceID(r, field); target != "" && target == account.ID {
			return true
		}
		denyResource(w)
		return false
	})
}

// OwnerOrPrivileged passes admins and agents, the owner named by field in the
// route or body, and requests whose route "id" is the caller
func OwnerOrPrivileged(field string) func(http.Handler) http.Handler {
	return requireAccount(func(w http.ResponseWriter, r *http.Request, account *auth.Account) bool {
		if account.HasRole(auth.RoleAdmin, auth.RoleAgent) {
			return true
		}
		if owner := ownerID(r, field); owner != "" && owner == account.ID {
			return true
		}
		if id := httputil.PathVar(r, "id"); id != "" && id == account.ID {
			return true
		}
		denyResource(w)
		return false
	})
}

func resourceID(r *http.Request, field string) string {
	if id := httputil.PathVar(r, "id"); id != "" {
		return id
	}
	return ownerID(r, field)
}

func ownerID(r *http.Request, field string) string {
	if field == "" {
		return ""
	}
	if id := httputil.PathVar(r, field); id != "" {
		return id
	}
	return httputil.BodyField(r, field)
}

func denyResource(w http.ResponseWriter) {
	httputil.WriteRejection(w, http.StatusForbidden, CodeResourceAccessDenied, "Access denied. You can only access your own resources.", nil)
}
