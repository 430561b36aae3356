package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAPIKey(t *testing.T) {
	tests := []struct {
		name     string
		cfg      APIKeyConfig
		key      string
		wantCode string
	}{
		{
			name:     "missing key in development",
			cfg:      APIKeyConfig{Key: "s3cret"},
			wantCode: CodeAPIKeyRequired,
		},
		{
			name: "any key in development",
			cfg:  APIKeyConfig{Key: "s3cret"},
			key:  "whatever",
		},
		{
			name:     "missing key in production",
			cfg:      APIKeyConfig{Key: "s3cret", Production: true},
			wantCode: CodeAPIKeyRequired,
		},
		{
			name: "matching key in production",
			cfg:  APIKeyConfig{Key: "s3cret", Production: true},
			key:  "s3cret",
		},
		{
			name:     "wrong key in production",
			cfg:      APIKeyConfig{Key: "s3cret", Production: true},
			key:      "s3cre7",
			wantCode: CodeInvalidAPIKey,
		},
		{
			name:     "prefix of key in production",
			cfg:      APIKeyConfig{Key: "s3cret", Production: true},
			key:      "s3c",
			wantCode: CodeInvalidAPIKey,
		},
		{
			name:     "unconfigured key in production",
			cfg:      APIKeyConfig{Production: true},
			key:      "anything",
			wantCode: CodeInvalidAPIKey,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/integrations/ping", nil)
			if tt.key != "" {
				req.Header.Set(APIKeyHeader, tt.key)
			}
			w, next := serveGate(t, APIKey(tt.cfg), req)

			if tt.wantCode == "" {
				assert.Equal(t, http.StatusOK, w.Code)
				assert.True(t, next.called)
				return
			}
			assert.False(t, next.called)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Equal(t, tt.wantCode, decodeRejection(t, w)["code"])
		})
	}
}
