package auth

import (
	"reflect"
	"testing"
)

func TestValidatePasswordStrength(t *testing.T) {
	tests := []struct {
		name         string
		password     string
		wantValid    bool
		wantScore    int
		wantStrength string
		wantErrors   []string
	}{
		{
			name:         "mixed case with digit at 8 chars",
			password:     "abcdefG1",
			wantValid:    true,
			wantScore:    5,
			wantStrength: StrengthStrong,
			wantErrors:   []string{},
		},
		{
			name:         "too short and missing classes",
			password:     "abc",
			wantValid:    false,
			wantScore:    1,
			wantStrength: StrengthWeak,
			wantErrors: []string{
				"Password must be at least 6 characters long",
				"Password must contain at least one uppercase letter",
				"Password must contain at least one number",
			},
		},
		{
			name:         "special character is optional",
			password:     "Abcdef1",
			wantValid:    true,
			wantScore:    4,
			wantStrength: StrengthMedium,
			wantErrors:   []string{},
		},
		{
			name:         "everything",
			password:     "Abcdefgh123!",
			wantValid:    true,
			wantScore:    6,
			wantStrength: StrengthStrong,
			wantErrors:   []string{},
		},
		{
			name:         "digits only",
			password:     "12345678",
			wantValid:    false,
			wantScore:    3,
			wantStrength: StrengthMedium,
			wantErrors: []string{
				"Password must contain at least one lowercase letter",
				"Password must contain at least one uppercase letter",
			},
		},
		{
			name:         "empty",
			password:     "",
			wantValid:    false,
			wantScore:    0,
			wantStrength: StrengthWeak,
			wantErrors: []string{
				"Password must be at least 6 characters long",
				"Password must contain at least one lowercase letter",
				"Password must contain at least one uppercase letter",
				"Password must contain at least one number",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ValidatePasswordStrength(tt.password)
			if got.IsValid != tt.wantValid {
				t.Errorf("IsValid = %v, want %v", got.IsValid, tt.wantValid)
			}
			if got.Score != tt.wantScore {
				t.Errorf("Score = %d, want %d", got.Score, tt.wantScore)
			}
			if got.Strength != tt.wantStrength {
				t.Errorf("Strength = %s, want %s", got.Strength, tt.wantStrength)
			}
			if !reflect.DeepEqual(got.Errors, tt.wantErrors) {
				t.Errorf("Errors = %v, want %v", got.Errors, tt.wantErrors)
			}
		})
	}
}

func TestValidatePasswordStrength_TooLong(t *testing.T) {
	pw := make([]byte, 129)
	for i := range pw {
		pw[i] = 'a'
	}
	pw[0], pw[1] = 'A', '1'

	got := ValidatePasswordStrength(string(pw))
	if got.IsValid {
		t.Error("expected password over 128 chars to be invalid")
	}
	if len(got.Errors) != 1 || got.Errors[0] != "Password must be less than 128 characters" {
		t.Errorf("unexpected errors: %v", got.Errors)
	}
}

func TestValidatePasswordStrength_Deterministic(t *testing.T) {
	for _, pw := range []string{"abcdefG1", "abc", "P@ssw0rd-long-enough"} {
		a := ValidatePasswordStrength(pw)
		b := ValidatePasswordStrength(pw)
		if !reflect.DeepEqual(a, b) {
			t.Errorf("results differ for %q: %+v vs %+v", pw, a, b)
		}
	}
}

func TestIsCommonPassword(t *testing.T) {
	tests := []struct {
		password string
		want     bool
	}{
		{"password", true},
		{"PASSWORD", true},
		{"Password123", true},
		{"qwerty", true},
		{"Sunny-Loft-42", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.password, func(t *testing.T) {
			if got := IsCommonPassword(tt.password); got != tt.want {
				t.Errorf("IsCommonPassword(%q) = %v, want %v", tt.password, got, tt.want)
			}
		})
	}
}
