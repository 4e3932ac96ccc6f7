package password

import (
	"errors"
	"testing"
)

func TestHashAndCheck(t *testing.T) {
	hash, err := HashWithCost("correct-horse", 4)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if err := Check("correct-horse", hash); err != nil {
		t.Fatalf("expected match, got %v", err)
	}
	if err := Check("wrong-horse", hash); !errors.Is(err, ErrMismatch) {
		t.Fatalf("expected ErrMismatch, got %v", err)
	}
}

func TestCheckMalformedHash(t *testing.T) {
	err := Check("anything", "not-a-bcrypt-hash")
	if err == nil || errors.Is(err, ErrMismatch) {
		t.Fatalf("expected a non-mismatch error, got %v", err)
	}
}
