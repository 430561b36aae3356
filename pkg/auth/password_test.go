package auth

import (
	"errors"
	"strings"
	"testing"
)

func TestHashPassword_RoundTrip(t *testing.T) {
	password := "Sunny-Loft-42"

	hash1, err := HashPassword(password)
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}
	hash2, err := HashPassword(password)
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}

	if hash1 == hash2 {
		t.Error("hashes of the same password should use different salts")
	}
	if hash1 == password {
		t.Error("hash must not equal plaintext")
	}

	for _, h := range []string{hash1, hash2} {
		ok, err := ComparePassword(password, h)
		if err != nil {
			t.Fatalf("ComparePassword() error = %v", err)
		}
		if !ok {
			t.Error("expected original password to match")
		}

		ok, err = ComparePassword("sunny-loft-42", h)
		if err != nil {
			t.Fatalf("ComparePassword() error = %v", err)
		}
		if ok {
			t.Error("expected different password not to match")
		}
	}
}

func TestComparePassword_MalformedHash(t *testing.T) {
	ok, err := ComparePassword("whatever", "not-a-bcrypt-hash")
	if ok {
		t.Error("expected false for malformed hash")
	}
	if !errors.Is(err, ErrComparison) {
		t.Errorf("expected ErrComparison, got %v", err)
	}
}

func TestHashPassword_TooLong(t *testing.T) {
	// bcrypt rejects inputs over 72 bytes
	_, err := HashPassword(strings.Repeat("a", 100))
	if !errors.Is(err, ErrHashing) {
		t.Errorf("expected ErrHashing, got %v", err)
	}
}

func TestGenerateRandomPassword(t *testing.T) {
	for _, length := range []int{0, 4, 8, 12, 32} {
		want := length
		if want == 0 {
			want = DefaultRandomPasswordLength
		}

		for i := 0; i < 20; i++ {
			pw, err := GenerateRandomPassword(length)
			if err != nil {
				t.Fatalf("GenerateRandomPassword(%d) error = %v", length, err)
			}
			if len(pw) != want {
				t.Fatalf("len = %d, want %d", len(pw), want)
			}
			if !strings.ContainsAny(pw, lowerChars) ||
				!strings.ContainsAny(pw, upperChars) ||
				!strings.ContainsAny(pw, digitChars) ||
				!strings.ContainsAny(pw, symbolChars) {
				t.Errorf("password %q is missing a character class", pw)
			}
		}
	}
}

func TestGenerateRandomPassword_TooShort(t *testing.T) {
	for _, length := range []int{1, 2, 3, -5} {
		if _, err := GenerateRandomPassword(length); !errors.Is(err, ErrPasswordLength) {
			t.Errorf("GenerateRandomPassword(%d) error = %v, want ErrPasswordLength", length, err)
		}
	}
}
