package middleware

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"

	"github.com/platinummonkey/haven/pkg/accounts"
	"github.com/platinummonkey/haven/pkg/auth"
)

// BenchmarkAuthenticate measures a bearer-token request through the authentication gate
func BenchmarkAuthenticate(b *testing.B) {
	store := accounts.NewMemoryStore()
	issuer := newTestIssuer(b)
	_, token := seedAccount(b, store, issuer, "bench-user", auth.RoleUser)

	handler := NewAuthenticator(issuer, store, newTestLogger(), nil).Authenticate(&okHandler{})

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			b.Fatalf("unexpected status %d", w.Code)
		}
	}
}

// BenchmarkRateLimiter_Allow measures the in-memory limiter across many client keys
func BenchmarkRateLimiter_Allow(b *testing.B) {
	rl := NewRateLimiter(&RateLimitConfig{
		RequestsPerWindow: 1000,
		WindowDuration:    time.Minute,
		MaxKeys:           1024,
	})
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := rl.Allow(ctx, fmt.Sprintf("login:10.0.%d.%d", i%16, i%256)); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkDistributedRateLimiter_Allow measures the Redis limiter against miniredis
func BenchmarkDistributedRateLimiter_Allow(b *testing.B) {
	mr := miniredis.RunT(b)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	rl := NewDistributedRateLimiter(client, &RateLimitConfig{
		RequestsPerWindow: b.N + 1,
		WindowDuration:    time.Minute,
	}, "", nil)
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := rl.Allow(ctx, "login:192.0.2.1"); err != nil {
			b.Fatal(err)
		}
	}
}
