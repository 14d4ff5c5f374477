package auth

import (
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestPasswordHasher_HashAndMatch(t *testing.T) {
	h := NewPasswordHasher(bcrypt.MinCost)

	hash, err := h.Hash("secret1")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}
	if hash == "secret1" {
		t.Fatal("hash must differ from the plain password")
	}
	if !h.Matches(hash, "secret1") {
		t.Error("expected password to match its hash")
	}
	if h.Matches(hash, "secret2") {
		t.Error("expected different password not to match")
	}
}

func TestNewPasswordHasher_InvalidCostFallsBackToDefault(t *testing.T) {
	for _, cost := range []int{0, 1, bcrypt.MaxCost + 1} {
		if h := NewPasswordHasher(cost); h.cost != bcrypt.DefaultCost {
			t.Errorf("NewPasswordHasher(%d).cost = %d, want %d", cost, h.cost, bcrypt.DefaultCost)
		}
	}
}
