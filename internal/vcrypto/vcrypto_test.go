package vcrypto

import "testing"

func TestDeriveKeyDeterministic(t *testing.T) {
	salt, err := NewSalt()
	if err != nil {
		t.Fatalf("new salt: %v", err)
	}
	k1 := DeriveKey("correct horse", salt)
	k2 := DeriveKey("correct horse", salt)
	if len(k1) != KeyLen {
		t.Fatalf("expected key length %d, got %d", KeyLen, len(k1))
	}
	if string(k1) != string(k2) {
		t.Fatalf("expected identical key for identical password+salt")
	}
}

func TestDeriveKeyDiffersOnSalt(t *testing.T) {
	s1, _ := NewSalt()
	s2, _ := NewSalt()
	k1 := DeriveKey("password", s1)
	k2 := DeriveKey("password", s2)
	if string(k1) == string(k2) {
		t.Fatalf("expected different salts to produce different keys")
	}
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	salt, _ := NewSalt()
	key := DeriveKey("hunter2", salt)

	plaintext := []byte(`{"hello":"world"}`)
	blob, err := Encrypt(key, plaintext)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if len(blob) != NonceLen+len(plaintext)+TagLen {
		t.Fatalf("unexpected blob length %d", len(blob))
	}

	got, err := Decrypt(key, blob)
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if string(got) != string(plaintext) {
		t.Fatalf("round trip mismatch: got %q", got)
	}
}

func TestDecryptWrongKeyFails(t *testing.T) {
	salt, _ := NewSalt()
	key := DeriveKey("right", salt)
	wrongKey := DeriveKey("wrong", salt)

	blob, err := Encrypt(key, []byte("secret"))
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if _, err := Decrypt(wrongKey, blob); err != DecryptionError {
		t.Fatalf("expected DecryptionError, got %v", err)
	}
}

func TestDecryptTamperedCiphertextFails(t *testing.T) {
	salt, _ := NewSalt()
	key := DeriveKey("right", salt)

	blob, err := Encrypt(key, []byte("secret"))
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	tampered := append([]byte(nil), blob...)
	tampered[len(tampered)-1] ^= 0xFF

	if _, err := Decrypt(key, tampered); err != DecryptionError {
		t.Fatalf("expected DecryptionError for tampered ciphertext, got %v", err)
	}
}

func TestContentHashStable(t *testing.T) {
	h1 := ContentHash([]byte("abc"))
	h2 := ContentHash([]byte("abc"))
	if h1 != h2 {
		t.Fatalf("expected stable hash, got %q and %q", h1, h2)
	}
	if len(h1) != 64 {
		t.Fatalf("expected 64 hex chars, got %d", len(h1))
	}
}

func TestSignVerify(t *testing.T) {
	key := []byte("0123456789abcdef0123456789abcdef")
	data := []byte("payload")

	sig := Sign(key, data)
	if !Verify(key, data, sig) {
		t.Fatalf("expected signature to verify")
	}
	if Verify(key, []byte("tampered"), sig) {
		t.Fatalf("expected signature to fail against different data")
	}
	if Verify([]byte("different-key-aaaaaaaaaaaaaaaaaa"), data, sig) {
		t.Fatalf("expected signature to fail against different key")
	}
}
