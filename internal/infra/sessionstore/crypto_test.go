package sessionstore

import (
	"bytes"
	"testing"
)

func TestSealUnsealRoundTrip(t *testing.T) {
	key := deriveKey([]byte("server-secret"), "user-1")
	blob, err := seal(key, []byte("correct horse"))
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	plaintext, err := unseal(key, blob)
	if err != nil {
		t.Fatalf("unseal: %v", err)
	}
	if string(plaintext) != "correct horse" {
		t.Fatalf("unsealed %q", plaintext)
	}
}

func TestUnsealRejectsTamperedBlob(t *testing.T) {
	key := deriveKey([]byte("server-secret"), "user-1")
	blob, err := seal(key, []byte("correct horse"))
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	blob[len(blob)-1] ^= 0x01
	if _, err := unseal(key, blob); err == nil {
		t.Fatal("tampered blob unsealed")
	}
}

func TestUnsealRejectsForeignKey(t *testing.T) {
	blob, err := seal(deriveKey([]byte("server-secret"), "user-1"), []byte("correct horse"))
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	if _, err := unseal(deriveKey([]byte("server-secret"), "user-2"), blob); err == nil {
		t.Fatal("blob unsealed with another user's key")
	}
}

func TestDeriveKeyIsUserBound(t *testing.T) {
	a := deriveKey([]byte("server-secret"), "user-1")
	b := deriveKey([]byte("server-secret"), "user-2")
	if bytes.Equal(a, b) {
		t.Fatal("derived keys collide across users")
	}
}
