package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

const (
	// SecureTokenLength is the default number of random bytes (32 bytes = 256 bits)
	SecureTokenLength = 32
	// RefreshTokenLength is the number of random bytes in a refresh token
	RefreshTokenLength = 40
)

// GenerateSecureToken returns length random bytes hex-encoded (2*length chars).
// A length of 0 selects SecureTokenLength.
func GenerateSecureToken(length int) (string, error) {
	if length <= 0 {
		length = SecureTokenLength
	}
	return randomHex(length)
}

// GenerateRefreshToken creates an opaque refresh token.
// The raw token goes to the client; only HashToken(raw) should be stored.
func GenerateRefreshToken() (string, error) {
	return randomHex(RefreshTokenLength)
}

// HashToken computes the SHA256 hash of a token for storage and lookup
func HashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}

func randomHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return hex.EncodeToString(b), nil
}
