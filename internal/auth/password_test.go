package auth

import (
	"errors"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestHasherRoundTrip(t *testing.T) {
	h, err := NewHasher(bcrypt.MinCost)
	if err != nil {
		t.Fatalf("NewHasher: %v", err)
	}

	hash, err := h.Hash("s3cret!")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if hash == "s3cret!" {
		t.Fatal("hash must not equal the password")
	}
	other, err := h.Hash("s3cret!")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if hash == other {
		t.Fatal("expected distinct salts")
	}

	ok, err := h.Verify("s3cret!", hash)
	if err != nil || !ok {
		t.Fatalf("expected match, got %v %v", ok, err)
	}
	ok, err = h.Verify("wrong", hash)
	if err != nil || ok {
		t.Fatalf("expected clean mismatch, got %v %v", ok, err)
	}
}

func TestHasherRejectsBadInput(t *testing.T) {
	if _, err := NewHasher(bcrypt.MaxCost + 1); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for cost, got %v", err)
	}
	h, _ := NewHasher(bcrypt.MinCost)
	if _, err := h.Hash(""); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for empty password, got %v", err)
	}
	if _, err := h.Hash(strings.Repeat("x", 80)); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for long password, got %v", err)
	}
}

func TestHasherVerifyCorruptHash(t *testing.T) {
	h, _ := NewHasher(bcrypt.MinCost)
	ok, err := h.Verify("anything", "not-a-bcrypt-hash")
	if ok {
		t.Fatal("corrupt hash must not verify")
	}
	if !errors.Is(err, ErrCorruptCredential) {
		t.Fatalf("expected ErrCorruptCredential, got %v", err)
	}
}

func TestHasherUnusable(t *testing.T) {
	h, _ := NewHasher(bcrypt.MinCost)
	hash := h.Unusable()
	if !strings.HasPrefix(hash, unusablePrefix) {
		t.Fatalf("unexpected placeholder %q", hash)
	}
	for _, pw := range []string{"", hash, "password"} {
		ok, err := h.Verify(pw, hash)
		if ok || err != nil {
			t.Fatalf("placeholder verified for %q: %v %v", pw, ok, err)
		}
	}
}
