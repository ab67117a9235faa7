package security

import (
	"errors"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestPasswordHasher_HashAndCheck(t *testing.T) {
	h := NewPasswordHasher(bcrypt.MinCost)

	hash, err := h.Hash("secret1")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	if hash == "secret1" {
		t.Fatalf("expected password to be hashed")
	}

	if err := h.Check(hash, "secret1"); err != nil {
		t.Fatalf("Check with correct password: %v", err)
	}
	if err := h.Check(hash, "wrong"); !errors.Is(err, ErrPasswordMismatch) {
		t.Fatalf("got %v, want ErrPasswordMismatch", err)
	}
}

func TestNewPasswordHasher_InvalidCostFallsBackToDefault(t *testing.T) {
	h := NewPasswordHasher(0)
	if h.cost != bcrypt.DefaultCost {
		t.Fatalf("got cost %d, want %d", h.cost, bcrypt.DefaultCost)
	}
}
