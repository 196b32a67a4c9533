// Package cryptox implements the cryptographic primitives of the vault:
// password-based key derivation and authenticated symmetric encryption.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"fmt"

	"github.com/dmitrijs2005/agentvault/internal/common"
	"golang.org/x/crypto/pbkdf2"
)

const (
	// KeySize is the size of the derived AES-256 key in bytes.
	KeySize = 32

	// SaltSize is the size of a freshly generated KDF salt in bytes.
	SaltSize = 32

	// NonceSize is the AES-GCM nonce size in bytes.
	NonceSize = 12

	// KDFIterations is the PBKDF2-HMAC-SHA256 iteration count. Changing it
	// invalidates every stored envelope, so treat it as part of the format.
	KDFIterations = 100_000
)

// DeriveKey derives a 256-bit symmetric key from a master password and salt
// using PBKDF2-HMAC-SHA256. Deterministic for the same (password, salt) pair;
// different salts must produce unrelated keys.
func DeriveKey(password []byte, salt []byte) []byte {
	return pbkdf2.Key(password, salt, KDFIterations, KeySize, sha256.New)
}

// MakeVerifier returns a SHA-256 digest of the derived key. The verifier is
// safe to persist: it lets an unlock attempt be checked without trial
// decryption of user data, but cannot be reversed into the key.
func MakeVerifier(masterKey []byte) []byte {
	hash := sha256.Sum256(masterKey)
	return hash[:]
}

// GenerateSalt returns a fresh random KDF salt.
func GenerateSalt() ([]byte, error) {
	return GenerateRandBytes(SaltSize)
}

// GenerateRandBytes returns size cryptographically random bytes.
func GenerateRandBytes(size int) ([]byte, error) {
	b := make([]byte, size)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("rand read failed: %w", err)
	}
	return b, nil
}

// Encrypt seals plaintext with AES-256-GCM under key. A new random 12-byte
// nonce is generated on every call; reusing a nonce under the same key breaks
// GCM, so callers must never cache the returned nonce for further encryption.
func Encrypt(plaintext, key []byte) (ciphertext, nonce []byte, err error) {
	nonce, err = GenerateRandBytes(NonceSize)
	if err != nil {
		return nil, nil, err
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, nil, err
	}

	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, nil, err
	}

	ciphertext = aesgcm.Seal(nil, nonce, plaintext, nil)
	return ciphertext, nonce, nil
}

// Decrypt opens an AES-256-GCM ciphertext. Tampered or mismatched input is
// reported as common.ErrDecryptionFailed rather than returning corrupted
// plaintext.
func Decrypt(ciphertext, nonce, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	plaintext, err := aesgcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrDecryptionFailed, err)
	}
	return plaintext, nil
}

// WipeBytes overwrites the contents of the provided byte slice with zeros.
// This is useful for removing passwords and derived keys from memory after use.
//
// If the slice is nil, the function does nothing.
func WipeBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
