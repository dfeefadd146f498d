package auth

import (
	"errors"
	"strings"
	"testing"
)

func TestHashKey_RoundTrip(t *testing.T) {
	hash, err := HashKey("ios-client-key")
	if err != nil {
		t.Fatalf("HashKey() error = %v", err)
	}
	if !strings.HasPrefix(hash, phcPrefix) {
		t.Errorf("hash should start with %s, got %q", phcPrefix, hash)
	}

	ok, err := VerifyKey("ios-client-key", hash)
	if err != nil || !ok {
		t.Errorf("VerifyKey(correct) = %v, %v", ok, err)
	}
	ok, err = VerifyKey("android-client-key", hash)
	if err != nil || ok {
		t.Errorf("VerifyKey(wrong) = %v, %v", ok, err)
	}
}

func TestVerifyKey_Malformed(t *testing.T) {
	for _, encoded := range []string{"", "$argon2id$v=19", "$bcrypt$v=1$m=1,t=1,p=1$AA$AA"} {
		if _, err := VerifyKey("k", encoded); err == nil {
			t.Errorf("VerifyKey(%q) should fail", encoded)
		}
	}
}

func TestKeyRing_Check(t *testing.T) {
	hash, err := HashKey("hashed-key")
	if err != nil {
		t.Fatalf("HashKey() error = %v", err)
	}
	kr := NewKeyRing([]string{"plain-key", " ", hash})
	if kr.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", kr.Len())
	}

	tests := []struct {
		key  string
		want error
	}{
		{"plain-key", nil},
		{"hashed-key", nil},
		{"other", ErrInvalidAPIKey},
		{"", ErrInvalidAPIKey},
	}
	for _, tt := range tests {
		if err := kr.Check(tt.key); !errors.Is(err, tt.want) {
			t.Errorf("Check(%q) = %v, want %v", tt.key, err, tt.want)
		}
	}

	if err := NewKeyRing(nil).Check("plain-key"); !errors.Is(err, ErrNoAPIKeys) {
		t.Errorf("empty ring error = %v, want ErrNoAPIKeys", err)
	}
}
