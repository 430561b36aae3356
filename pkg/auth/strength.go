package auth

import (
	"regexp"
	"strings"
)

const (
	MinPasswordLength = 6
	MaxPasswordLength = 128

	// MaxStrengthScore caps the score reported by ValidatePasswordStrength
	MaxStrengthScore = 6
)

// Strength labels
const (
	StrengthWeak   = "weak"
	StrengthMedium = "medium"
	StrengthStrong = "strong"
)

var (
	lowerPattern   = regexp.MustCompile(`[a-z]`)
	upperPattern   = regexp.MustCompile(`[A-Z]`)
	digitPattern   = regexp.MustCompile(`\d`)
	specialPattern = regexp.MustCompile(`[!@#$%^&*(),.?":{}|<>]`)
)

// StrengthResult is the outcome of ValidatePasswordStrength
type StrengthResult struct {
	IsValid  bool     `json:"isValid"`
	Errors   []string `json:"errors"`
	Strength string   `json:"strength"`
	Score    int      `json:"score"`
}

// ValidatePasswordStrength checks a password against the password policy.
// Length, lowercase, uppercase and digit are required; a special character
// only raises the score.
func ValidatePasswordStrength(password string) StrengthResult {
	errs := []string{}

	if len(password) < MinPasswordLength {
		errs = append(errs, "Password must be at least 6 characters long")
	}
	if len(password) > MaxPasswordLength {
		errs = append(errs, "Password must be less than 128 characters")
	}

	hasLower := lowerPattern.MatchString(password)
	hasUpper := upperPattern.MatchString(password)
	hasDigit := digitPattern.MatchString(password)
	hasSpecial := specialPattern.MatchString(password)

	if !hasLower {
		errs = append(errs, "Password must contain at least one lowercase letter")
	}
	if !hasUpper {
		errs = append(errs, "Password must contain at least one uppercase letter")
	}
	if !hasDigit {
		errs = append(errs, "Password must contain at least one number")
	}

	checks := []bool{
		len(password) >= MinPasswordLength,
		hasLower,
		hasUpper,
		hasDigit,
		hasSpecial,
		len(password) >= 8,
		len(password) >= 12,
	}
	score := 0
	for _, ok := range checks {
		if ok {
			score++
		}
	}
	if score > MaxStrengthScore {
		score = MaxStrengthScore
	}

	strength := StrengthWeak
	switch {
	case score >= 5:
		strength = StrengthStrong
	case score >= 3:
		strength = StrengthMedium
	}

	return StrengthResult{
		IsValid:  len(errs) == 0,
		Errors:   errs,
		Strength: strength,
		Score:    score,
	}
}

var commonPasswords = map[string]struct{}{}

func init() {
	for _, p := range []string{
		"password", "password1", "password123", "123456", "12345678", "123456789",
		"1234567890", "12345", "1234567", "qwerty", "qwerty123", "abc123",
		"111111", "123123", "admin", "admin123", "letmein", "welcome",
		"monkey", "dragon", "master", "iloveyou", "sunshine", "princess",
		"football", "baseball", "shadow", "superman", "trustno1", "passw0rd",
	} {
		commonPasswords[p] = struct{}{}
	}
}

// IsCommonPassword reports whether the password is on the deny-list (case-insensitive)
func IsCommonPassword(password string) bool {
	_, ok := commonPasswords[strings.ToLower(password)]
	return ok
}
