package auth

import (
	"errors"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestPasswordHasher_HashAndCompare(t *testing.T) {
	h := NewPasswordHasher(bcrypt.MinCost)

	hash, err := h.Hash("secret1")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}
	if hash == "secret1" || !strings.HasPrefix(hash, "$2") {
		t.Errorf("Hash() = %q, want bcrypt hash", hash)
	}
	if !h.Compare(hash, "secret1") {
		t.Error("Compare() should match the original password")
	}
	if h.Compare(hash, "secret2") {
		t.Error("Compare() should reject a different password")
	}
}

func TestPasswordHasher_EmptyPassword(t *testing.T) {
	h := NewPasswordHasher(bcrypt.MinCost)

	if _, err := h.Hash(""); !errors.Is(err, ErrEmptyPassword) {
		t.Errorf("Hash(\"\") error = %v, want ErrEmptyPassword", err)
	}
}

func TestPasswordHasher_MalformedHash(t *testing.T) {
	h := NewPasswordHasher(bcrypt.MinCost)

	if h.Compare("not-a-hash", "secret1") {
		t.Error("Compare() should reject a malformed hash")
	}
}

func TestNewPasswordHasher_OutOfRangeCostUsesDefault(t *testing.T) {
	for _, cost := range []int{0, 1, 99} {
		if h := NewPasswordHasher(cost); h.cost != bcrypt.DefaultCost {
			t.Errorf("NewPasswordHasher(%d).cost = %d, want %d", cost, h.cost, bcrypt.DefaultCost)
		}
	}
}
