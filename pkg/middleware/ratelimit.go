package middleware

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/platinummonkey/haven/pkg/httputil"
	"github.com/platinummonkey/haven/pkg/observability"
)

// RateLimitConfig defines rate limiting configuration
type RateLimitConfig struct {
	// RequestsPerWindow is the max requests allowed in the time window
	RequestsPerWindow int
	// WindowDuration is the time window for rate limiting
	WindowDuration time.Duration
	// BurstSize allows temporary bursts above the rate
	BurstSize int
	// MaxKeys bounds the number of tracked clients
	MaxKeys int
}

// DefaultLoginRateLimitConfig returns the login throttle defaults
func DefaultLoginRateLimitConfig() *RateLimitConfig {
	return &RateLimitConfig{
		RequestsPerWindow: 10,
		WindowDuration:    15 * time.Minute,
		MaxKeys:           10000,
	}
}

// Decision is the outcome of a single rate limit check
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
	Reset      time.Time
}

// Limiter decides whether the client identified by key may proceed
type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}

// RateLimiter implements rate limiting using token bucket algorithm
type RateLimiter struct {
	config  *RateLimitConfig
	buckets *lru.LRU[string, *bucket]
	mu      sync.Mutex
	now     func() time.Time
}

type bucket struct {
	tokens     int
	lastUpdate time.Time
	mu         sync.Mutex
}

// NewRateLimiter creates a new in-memory rate limiter. Idle buckets expire
// after two windows. Non-positive limits fall back to DefaultLoginRateLimitConfig.
func NewRateLimiter(config *RateLimitConfig) *RateLimiter {
	cfg := normalizeRateLimitConfig(config)

	return &RateLimiter{
		config:  cfg,
		buckets: lru.NewLRU[string, *bucket](cfg.MaxKeys, nil, cfg.WindowDuration*2),
		now:     time.Now,
	}
}

// normalizeRateLimitConfig copies config, replacing non-positive limits with the defaults
func normalizeRateLimitConfig(config *RateLimitConfig) *RateLimitConfig {
	defaults := DefaultLoginRateLimitConfig()
	if config == nil {
		return defaults
	}
	cfg := *config
	if cfg.RequestsPerWindow <= 0 {
		cfg.RequestsPerWindow = defaults.RequestsPerWindow
	}
	if cfg.WindowDuration <= 0 {
		cfg.WindowDuration = defaults.WindowDuration
	}
	if cfg.BurstSize < 0 {
		cfg.BurstSize = 0
	}
	if cfg.MaxKeys <= 0 {
		cfg.MaxKeys = defaults.MaxKeys
	}
	return &cfg
}

func (rl *RateLimiter) capacity() int {
	return rl.config.RequestsPerWindow + rl.config.BurstSize
}

// Allow takes a token from key's bucket
func (rl *RateLimiter) Allow(_ context.Context, key string) (Decision, error) {
	now := rl.now()

	rl.mu.Lock()
	b, exists := rl.buckets.Get(key)
	if !exists {
		b = &bucket{tokens: rl.capacity(), lastUpdate: now}
	}
	// re-adding refreshes the idle expiry
	rl.buckets.Add(key, b)
	rl.mu.Unlock()

	b.mu.Lock()
	defer b.mu.Unlock()

	// Refill tokens based on elapsed time
	elapsed := now.Sub(b.lastUpdate)
	tokensToAdd := int(elapsed.Seconds() * float64(rl.config.RequestsPerWindow) / rl.config.WindowDuration.Seconds())
	if tokensToAdd > 0 {
		b.tokens += tokensToAdd
		if b.tokens > rl.capacity() {
			b.tokens = rl.capacity()
		}
		b.lastUpdate = now
	}

	d := Decision{
		Limit: rl.config.RequestsPerWindow,
		Reset: now.Add(rl.config.WindowDuration),
	}
	if b.tokens > 0 {
		b.tokens--
		d.Allowed = true
		d.Remaining = b.tokens
		return d, nil
	}

	// time until the next token is refilled
	perToken := rl.config.WindowDuration / time.Duration(rl.config.RequestsPerWindow)
	d.RetryAfter = perToken - now.Sub(b.lastUpdate)
	if d.RetryAfter < time.Second {
		d.RetryAfter = time.Second
	}
	d.Reset = now.Add(d.RetryAfter)
	return d, nil
}

// trackedKeys returns the number of tracked clients
func (rl *RateLimiter) trackedKeys() int {
	return rl.buckets.Len()
}

// LoginThrottle limits login attempts per client IP
type LoginThrottle struct {
	limiter Limiter
	backend string
	metrics *observability.Metrics
}

// NewLoginThrottle wraps limiter as a per-IP throttle. backend labels metrics.
func NewLoginThrottle(limiter Limiter, backend string, metrics *observability.Metrics) *LoginThrottle {
	return &LoginThrottle{limiter: limiter, backend: backend, metrics: metrics}
}

// Handler rejects clients over budget with 429. Limiter errors let the request through.
func (t *LoginThrottle) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := "login:" + httputil.ClientIP(r)

		d, err := t.limiter.Allow(r.Context(), key)
		if err != nil {
			observability.FromContext(r.Context()).WithError(err).WithField("backend", t.backend).
				Warn("login throttle unavailable, allowing request")
			t.metrics.RecordGateDecision("login_throttle", observability.OutcomeError)
			next.ServeHTTP(w, r)
			return
		}

		setRateLimitHeaders(w, d)
		if !d.Allowed {
			t.metrics.RecordGateDecision("login_throttle", observability.OutcomeDenied)
			t.metrics.RecordThrottleRejected(t.backend)
			t.rateLimitExceeded(w, d)
			return
		}

		t.metrics.RecordGateDecision("login_throttle", observability.OutcomeAllowed)
		next.ServeHTTP(w, r)
	})
}

func (t *LoginThrottle) rateLimitExceeded(w http.ResponseWriter, d Decision) {
	retryAfter := retryAfterSeconds(d.RetryAfter)
	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	httputil.WriteRejection(w, http.StatusTooManyRequests, CodeTooManyAttempts,
		"Too many login attempts. Please try again later.",
		map[string]interface{}{"retryAfter": retryAfter})
}

func setRateLimitHeaders(w http.ResponseWriter, d Decision) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
	if !d.Reset.IsZero() {
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(d.Reset.Unix(), 10))
	}
}

// retryAfterSeconds rounds d up to whole seconds, at least one
func retryAfterSeconds(d time.Duration) int {
	secs := int((d + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return secs
}
