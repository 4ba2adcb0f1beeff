// Package vcrypto implements the vault's cryptographic primitives: a fixed
// Argon2id key derivation, AES-256-GCM authenticated encryption, a SHA-256
// content hash, and an HMAC-SHA-256 keyed MAC. Parameters are pinned by
// format v1 and are never read back from disk.
package vcrypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"

	"golang.org/x/crypto/argon2"
)

const (
	// KDFName is the informational name recorded in the envelope header.
	KDFName = "argon2id"
	// CipherName is the informational name recorded in the envelope header.
	CipherName = "aes-256-gcm"

	argonTime    = 2
	argonMemory  = 64 * 1024 // 64 MiB
	argonThreads = 2
	KeyLen       = 32
	SaltLen      = 16
	NonceLen     = 12
	TagLen       = 16
)

// DeriveKey runs Argon2id over password and salt with the fixed v1
// parameters. salt must be SaltLen bytes.
func DeriveKey(password string, salt []byte) []byte {
	return argon2.IDKey([]byte(password), salt, argonTime, argonMemory, argonThreads, KeyLen)
}

// NewSalt returns a fresh cryptographically random salt of SaltLen bytes.
func NewSalt() ([]byte, error) {
	salt := make([]byte, SaltLen)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("vcrypto: failed to generate salt: %w", err)
	}
	return salt, nil
}

// Encrypt seals plaintext under key with a fresh random nonce and returns
// nonce||ciphertext||tag.
func Encrypt(key, plaintext []byte) ([]byte, error) {
	aead, err := newAEAD(key)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, NonceLen)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("vcrypto: failed to generate nonce: %w", err)
	}

	sealed := aead.Seal(nil, nonce, plaintext, nil)
	return append(nonce, sealed...), nil
}

// DecryptionError is returned whenever decryption fails for any reason;
// it deliberately carries no detail about wrong-key vs. tampered-ciphertext
// so callers can't build an oracle out of the error message.
var DecryptionError = fmt.Errorf("decryption failed")

// Decrypt opens a nonce||ciphertext||tag blob produced by Encrypt.
func Decrypt(key, blob []byte) ([]byte, error) {
	if len(blob) < NonceLen+TagLen {
		return nil, DecryptionError
	}

	aead, err := newAEAD(key)
	if err != nil {
		return nil, DecryptionError
	}

	nonce, ciphertext := blob[:NonceLen], blob[NonceLen:]
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, DecryptionError
	}
	return plaintext, nil
}

func newAEAD(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("vcrypto: failed to create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("vcrypto: failed to create GCM: %w", err)
	}
	return aead, nil
}

// ContentHash returns the lowercase hex SHA-256 digest of data.
func ContentHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Sign returns the lowercase hex HMAC-SHA-256 of data under key.
func Sign(key, data []byte) string {
	mac := hmac.New(sha256.New, key)
	mac.Write(data)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether sig is the correct HMAC-SHA-256 of data under key,
// using a constant-time comparison.
func Verify(key, data []byte, sig string) bool {
	want, err := hex.DecodeString(sig)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, key)
	mac.Write(data)
	got := mac.Sum(nil)
	return hmac.Equal(want, got)
}
