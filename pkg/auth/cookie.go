package auth

import (
	"net/http"
	"time"
)

const (
	// TokenCookieName is the cookie that carries the bearer token for browsers
	TokenCookieName = "token"
	// DefaultCookieExpireDays applies when CookieConfig.ExpireDays is unset
	DefaultCookieExpireDays = 7
)

// CookieConfig holds the process-wide cookie settings
type CookieConfig struct {
	ExpireDays int
	Production bool
}

// CookieOptions describes how the token cookie is written
type CookieOptions struct {
	Expires  time.Time
	HTTPOnly bool
	Secure   bool
	SameSite http.SameSite
}

// NewCookieOptions builds cookie options relative to now.
// Cookies are always HttpOnly and SameSite=Strict; Secure only in production.
func NewCookieOptions(cfg CookieConfig, now time.Time) CookieOptions {
	days := cfg.ExpireDays
	if days <= 0 {
		days = DefaultCookieExpireDays
	}
	return CookieOptions{
		Expires:  now.Add(time.Duration(days) * 24 * time.Hour),
		HTTPOnly: true,
		Secure:   cfg.Production,
		SameSite: http.SameSiteStrictMode,
	}
}

// Cookie builds an *http.Cookie with these options
func (o CookieOptions) Cookie(name, value string) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Expires:  o.Expires,
		HttpOnly: o.HTTPOnly,
		Secure:   o.Secure,
		SameSite: o.SameSite,
	}
}

// ExpiredCookie returns a cookie that clears name on the client
func (o CookieOptions) ExpiredCookie(name string) *http.Cookie {
	c := o.Cookie(name, "")
	c.Expires = time.Unix(0, 0)
	c.MaxAge = -1
	return c
}
