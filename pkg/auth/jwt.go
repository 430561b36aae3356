package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultTokenExpiry is the bearer token lifetime when none is configured
const DefaultTokenExpiry = 7 * 24 * time.Hour

// Claims is the payload of a bearer token
type Claims struct {
	jwt.RegisteredClaims
	ID    string `json:"id"`
	Role  Role   `json:"role"`
	Email string `json:"email,omitempty"`
}

// TokenConfig configures a TokenIssuer
type TokenConfig struct {
	Secret    string
	ExpiresIn time.Duration
	Issuer    string

	// Cookie settings used by CookieOptions
	CookieExpireDays int
	Production       bool

	// Now overrides the clock (tests)
	Now func() time.Time
}

// TokenIssuer signs and verifies bearer tokens with a single HMAC secret
type TokenIssuer struct {
	secret    []byte
	expiresIn time.Duration
	issuer    string
	cookie    CookieConfig
	now       func() time.Time
}

// NewTokenIssuer creates a token issuer from cfg
func NewTokenIssuer(cfg TokenConfig) (*TokenIssuer, error) {
	if cfg.Secret == "" {
		return nil, ErrMissingSecret
	}
	if cfg.ExpiresIn <= 0 {
		cfg.ExpiresIn = DefaultTokenExpiry
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &TokenIssuer{
		secret:    []byte(cfg.Secret),
		expiresIn: cfg.ExpiresIn,
		issuer:    cfg.Issuer,
		cookie: CookieConfig{
			ExpireDays: cfg.CookieExpireDays,
			Production: cfg.Production,
		},
		now: cfg.Now,
	}, nil
}

// ExpiresIn returns the configured token lifetime
func (ti *TokenIssuer) ExpiresIn() time.Duration {
	return ti.expiresIn
}

// GenerateToken issues a signed token for an account. An empty role means RoleUser
// and an empty email is left out of the claims.
func (ti *TokenIssuer) GenerateToken(accountID string, role Role, email string) (string, error) {
	if role == "" {
		role = RoleUser
	}

	now := ti.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   accountID,
			Issuer:    ti.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ti.expiresIn)),
		},
		ID:    accountID,
		Role:  role,
		Email: email,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(ti.secret)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

// VerifyToken validates the signature and expiry of a token and returns its claims.
// Every failure wraps ErrInvalidToken.
func (ti *TokenIssuer) VerifyToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(_ *jwt.Token) (any, error) {
		return ti.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(ti.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.ID == "" {
		return nil, fmt.Errorf("%w: missing account id", ErrInvalidToken)
	}
	return claims, nil
}

// CookieOptions returns the cookie settings for the token cookie
func (ti *TokenIssuer) CookieOptions() CookieOptions {
	return NewCookieOptions(ti.cookie, ti.now())
}
