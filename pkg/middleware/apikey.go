package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/platinummonkey/haven/pkg/httputil"
)

// APIKeyHeader carries the pre-shared integration key
const APIKeyHeader = "X-API-Key"

// APIKeyConfig configures the API key gate
type APIKeyConfig struct {
	// Key is the pre-shared key enforced in production
	Key        string
	Production bool
}

// APIKey requires the X-API-Key header. Outside production any non-empty key
// passes; in production it must equal cfg.Key.
func APIKey(cfg APIKeyConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(APIKeyHeader)
			if key == "" {
				httputil.WriteRejection(w, http.StatusUnauthorized, CodeAPIKeyRequired, "API key required.", nil)
				return
			}
			if cfg.Production && (cfg.Key == "" || subtle.ConstantTimeCompare([]byte(key), []byte(cfg.Key)) != 1) {
				httputil.WriteRejection(w, http.StatusUnauthorized, CodeInvalidAPIKey, "Invalid API key.", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
