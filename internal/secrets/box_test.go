package secrets

import (
	"bytes"
	"encoding/hex"
	"testing"
)

func testKey() string {
	return hex.EncodeToString(bytes.Repeat([]byte{0x42}, 32))
}

func TestRoundTrip(t *testing.T) {
	box, err := NewBox(testKey())
	if err != nil {
		t.Fatalf("new box: %v", err)
	}

	plaintext := []byte(`{"accessToken":"secret-token"}`)
	ciphertext, err := box.Encrypt(plaintext)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if bytes.Contains(ciphertext, []byte("secret-token")) {
		t.Fatalf("ciphertext leaks plaintext")
	}

	got, err := box.Decrypt(ciphertext)
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if !bytes.Equal(got, plaintext) {
		t.Fatalf("round trip mismatch: %q", got)
	}
}

func TestDecryptRejectsTampering(t *testing.T) {
	box, err := NewBox(testKey())
	if err != nil {
		t.Fatalf("new box: %v", err)
	}
	ciphertext, err := box.Encrypt([]byte("credentials"))
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}

	ciphertext[len(ciphertext)-1] ^= 0xff
	if _, err := box.Decrypt(ciphertext); err == nil {
		t.Fatalf("expected tampered ciphertext to fail authentication")
	}
}

func TestNewBoxRejectsBadKeys(t *testing.T) {
	if _, err := NewBox(""); err == nil {
		t.Fatalf("expected empty key to be rejected")
	}
	if _, err := NewBox("not-hex"); err == nil {
		t.Fatalf("expected non-hex key to be rejected")
	}
	if _, err := NewBox(hex.EncodeToString([]byte("short"))); err == nil {
		t.Fatalf("expected short key to be rejected")
	}
}
