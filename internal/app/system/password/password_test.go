package password

import (
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestNewHasher_ClampsCost(t *testing.T) {
	if got := NewHasher(0).Cost(); got != DefaultCost {
		t.Errorf("NewHasher(0).Cost() = %d, want %d", got, DefaultCost)
	}
	if got := NewHasher(99).Cost(); got != DefaultCost {
		t.Errorf("NewHasher(99).Cost() = %d, want %d", got, DefaultCost)
	}
	if got := NewHasher(bcrypt.MinCost).Cost(); got != bcrypt.MinCost {
		t.Errorf("NewHasher(MinCost).Cost() = %d, want %d", got, bcrypt.MinCost)
	}
}

func TestHashAndVerify(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)

	hash, err := h.Hash("s3cret!")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if hash == "s3cret!" {
		t.Fatal("hash must not equal plaintext")
	}
	if !strings.HasPrefix(hash, "$2") {
		t.Errorf("expected bcrypt hash, got %q", hash)
	}

	ok, err := h.Verify("s3cret!", hash)
	if err != nil || !ok {
		t.Errorf("Verify(correct) = %v, %v; want true, nil", ok, err)
	}

	ok, err = h.Verify("wrong", hash)
	if err != nil || ok {
		t.Errorf("Verify(wrong) = %v, %v; want false, nil", ok, err)
	}
}

func TestHash_Salted(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)
	a, _ := h.Hash("same")
	b, _ := h.Hash("same")
	if a == b {
		t.Error("expected distinct hashes for the same secret")
	}
}

func TestVerify_MalformedHash(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)
	ok, err := h.Verify("anything", "not-a-hash")
	if err == nil {
		t.Error("expected error for malformed hash")
	}
	if ok {
		t.Error("malformed hash must not verify")
	}
}

func TestBurn_DoesNotPanic(t *testing.T) {
	NewHasher(bcrypt.MinCost).Burn("whatever")
}
