// ABOUTME: Unit tests for bcrypt password hashing
// ABOUTME: Verify must be false for mismatches and malformed hashes

package auth

import (
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestBcryptHasher_HashAndVerify(t *testing.T) {
	h := NewBcryptHasher(bcrypt.MinCost)

	hash, err := h.Hash("pw1")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}
	if hash == "pw1" || !strings.HasPrefix(hash, "$2a$") {
		t.Fatalf("Hash() = %q, want a bcrypt hash", hash)
	}

	if !h.Verify("pw1", hash) {
		t.Error("Verify(correct) = false, want true")
	}
	if h.Verify("pw2", hash) {
		t.Error("Verify(wrong) = true, want false")
	}
}

func TestBcryptHasher_SaltsEachHash(t *testing.T) {
	h := NewBcryptHasher(bcrypt.MinCost)

	a, _ := h.Hash("same-password")
	b, _ := h.Hash("same-password")
	if a == b {
		t.Error("two hashes of the same password should differ")
	}
}

func TestBcryptHasher_MalformedHash(t *testing.T) {
	h := NewBcryptHasher(bcrypt.MinCost)

	for _, stored := range []string{"", "plaintext", "$2a$10$tooshort"} {
		if h.Verify("anything", stored) {
			t.Errorf("Verify(%q) = true, want false", stored)
		}
	}
}

func TestNewBcryptHasher_CostFallback(t *testing.T) {
	tests := []struct {
		in   int
		want int
	}{
		{0, bcrypt.DefaultCost},
		{bcrypt.MinCost - 1, bcrypt.DefaultCost},
		{bcrypt.MaxCost + 1, bcrypt.DefaultCost},
		{bcrypt.MinCost, bcrypt.MinCost},
		{12, 12},
	}

	for _, tt := range tests {
		if got := NewBcryptHasher(tt.in).Cost(); got != tt.want {
			t.Errorf("NewBcryptHasher(%d).Cost() = %d, want %d", tt.in, got, tt.want)
		}
	}
}
