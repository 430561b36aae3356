package auth

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"

	"golang.org/x/crypto/bcrypt"
)

// BcryptCost is the work factor for password hashes (~tens of ms per hash)
const BcryptCost = 12

const (
	// DefaultRandomPasswordLength is used when GenerateRandomPassword gets 0
	DefaultRandomPasswordLength = 12

	lowerChars  = "abcdefghijklmnopqrstuvwxyz"
	upperChars  = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	digitChars  = "0123456789"
	symbolChars = "!@#$%^&*"
	allChars    = lowerChars + upperChars + digitChars + symbolChars
)

// HashPassword hashes a plaintext password with bcrypt
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrHashing, err)
	}
	return string(hash), nil
}

// ComparePassword checks a plaintext password against a bcrypt hash.
// A mismatch returns false with a nil error; a malformed hash returns false
// with an error wrapping ErrComparison.
func ComparePassword(password, hash string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return false, nil
	}
	return false, fmt.Errorf("%w: %w", ErrComparison, err)
}

// GenerateRandomPassword creates a password of the given length containing at
// least one lowercase letter, uppercase letter, digit and symbol.
// A length of 0 selects DefaultRandomPasswordLength.
func GenerateRandomPassword(length int) (string, error) {
	if length == 0 {
		length = DefaultRandomPasswordLength
	}
	if length < 4 {
		return "", fmt.Errorf("%w: got %d", ErrPasswordLength, length)
	}

	out := make([]byte, 0, length)

	// One of each mandatory class first
	for _, set := range []string{lowerChars, upperChars, digitChars, symbolChars} {
		c, err := randomChar(set)
		if err != nil {
			return "", err
		}
		out = append(out, c)
	}

	for len(out) < length {
		c, err := randomChar(allChars)
		if err != nil {
			return "", err
		}
		out = append(out, c)
	}

	// Fisher-Yates so the mandatory characters are not always in front
	for i := len(out) - 1; i > 0; i-- {
		j, err := randomInt(i + 1)
		if err != nil {
			return "", err
		}
		out[i], out[j] = out[j], out[i]
	}

	return string(out), nil
}

func randomChar(set string) (byte, error) {
	i, err := randomInt(len(set))
	if err != nil {
		return 0, err
	}
	return set[i], nil
}

func randomInt(n int) (int, error) {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0, fmt.Errorf("failed to generate random number: %w", err)
	}
	return int(v.Int64()), nil
}
