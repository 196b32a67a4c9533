// Package common defines shared sentinel errors used across the AgentVault
// security core. Callers should use errors.Is to match these values.
package common

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// Repository-level errors.
	ErrNotFound = errors.New("not found")

	// Session errors.
	ErrLocked            = errors.New("vault is locked")
	ErrNotConfigured     = errors.New("master password is not configured")
	ErrAlreadyConfigured = errors.New("master password is already configured")
	ErrInvalidPassword   = errors.New("invalid master password")

	// Storage errors.
	ErrStorageUnavailable = errors.New("storage backend unavailable")

	// Crypto errors (tampered or corrupted envelope).
	ErrDecryptionFailed = errors.New("decryption failed")
)

// WeakPasswordError reports a password that fails strength validation.
// Unmet lists the specific rules the candidate did not satisfy.
type WeakPasswordError struct {
	Unmet []string
}

func (e *WeakPasswordError) Error() string {
	return fmt.Sprintf("password too weak: %s", strings.Join(e.Unmet, ", "))
}
