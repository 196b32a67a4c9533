// Package session implements the master-password session manager: the state
// machine that holds the unlocked password in memory, verifies unlock
// attempts, enforces the idle timeout, and orchestrates password changes.
// Only a "configured" flag plus KDF salt and verifier are ever persisted;
// the password itself never leaves process memory.
package session

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/agentvault/internal/common"
	"github.com/dmitrijs2005/agentvault/internal/cryptox"
	"github.com/dmitrijs2005/agentvault/internal/fieldcrypt"
	"github.com/dmitrijs2005/agentvault/internal/logging"
	"github.com/dmitrijs2005/agentvault/internal/storage"
)

const (
	// DefaultIdleTimeout locks the session after this much inactivity.
	DefaultIdleTimeout = 30 * time.Minute

	// touchThrottle limits how often activity extends the idle deadline.
	touchThrottle = time.Minute
)

// Storage keys owned by the session manager.
const (
	keyConfiguredFlag = "master_password_configured"
	keySalt           = "master_password_salt"
	keyVerifier       = "master_password_verifier"
)

// selfTestProbe is the plaintext used for the post-derivation round-trip check.
var selfTestProbe = []byte("agentvault.session.self-test")

// ReencryptFunc re-encrypts every persisted secret from the old password to
// the new one. It runs inside a single storage batch; returning an error
// discards all of its writes.
type ReencryptFunc func(ctx context.Context, tx storage.KV, oldKeys, newKeys fieldcrypt.KeyProvider) error

// Manager is the per-process session singleton. Construct one explicitly and
// inject it; tests can run any number of independent instances.
type Manager struct {
	kv          storage.KV
	log         logging.Logger
	idleTimeout time.Duration
	now         func() time.Time

	mu           sync.Mutex
	password     []byte
	unlockedAt   time.Time
	lastActivity time.Time
	keyCache     map[string][]byte
}

// Option customizes a Manager.
type Option func(*Manager)

// WithIdleTimeout overrides the default 30-minute idle timeout.
func WithIdleTimeout(d time.Duration) Option {
	return func(m *Manager) { m.idleTimeout = d }
}

// WithClock injects a time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

func NewManager(kv storage.KV, log logging.Logger, opts ...Option) *Manager {
	m := &Manager{
		kv:          kv,
		log:         log,
		idleTimeout: DefaultIdleTimeout,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// IsConfigured reports whether a master password has ever been set.
func (m *Manager) IsConfigured(ctx context.Context) (bool, error) {
	v, err := m.kv.Get(ctx, keyConfiguredFlag)
	if err != nil {
		return false, err
	}
	return string(v) == "true", nil
}

// Configure sets the master password for the first time and transitions to
// Unlocked. Fails with common.ErrAlreadyConfigured if one is already set and
// with WeakPasswordError if the candidate fails strength validation.
func (m *Manager) Configure(ctx context.Context, password []byte) error {
	configured, err := m.IsConfigured(ctx)
	if err != nil {
		return err
	}
	if configured {
		return common.ErrAlreadyConfigured
	}

	if err := ValidateStrength(password); err != nil {
		return err
	}

	salt, err := cryptox.GenerateSalt()
	if err != nil {
		return err
	}
	key := cryptox.DeriveKey(password, salt)
	if err := selfTest(key); err != nil {
		return err
	}
	verifier := cryptox.MakeVerifier(key)

	err = m.kv.Update(ctx, func(ctx context.Context, tx storage.KV) error {
		if err := tx.Set(ctx, keyConfiguredFlag, []byte("true")); err != nil {
			return err
		}
		if err := tx.Set(ctx, keySalt, salt); err != nil {
			return err
		}
		return tx.Set(ctx, keyVerifier, verifier)
	})
	if err != nil {
		return fmt.Errorf("saving master password metadata: %w", err)
	}

	m.becomeUnlocked(password, salt, key)
	m.log.Info(ctx, "master password configured")
	return nil
}

// Unlock verifies the supplied password against the stored salt and verifier
// (constant-time) plus an encrypt/decrypt round-trip self-test, then
// transitions to Unlocked. A failed attempt leaves the session locked and
// returns common.ErrInvalidPassword.
func (m *Manager) Unlock(ctx context.Context, password []byte) error {
	configured, err := m.IsConfigured(ctx)
	if err != nil {
		return err
	}
	if !configured {
		return common.ErrNotConfigured
	}

	salt, err := m.kv.Get(ctx, keySalt)
	if err != nil {
		return err
	}
	verifier, err := m.kv.Get(ctx, keyVerifier)
	if err != nil {
		return err
	}
	if salt == nil || verifier == nil {
		return common.ErrNotConfigured
	}

	key := cryptox.DeriveKey(password, salt)
	candidate := cryptox.MakeVerifier(key)
	if subtle.ConstantTimeCompare(verifier, candidate) == 0 {
		return common.ErrInvalidPassword
	}
	if err := selfTest(key); err != nil {
		return common.ErrInvalidPassword
	}

	m.becomeUnlocked(password, salt, key)
	m.log.Info(ctx, "vault unlocked")
	return nil
}

func (m *Manager) becomeUnlocked(password, salt, key []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.wipeLocked()
	m.password = append([]byte(nil), password...)
	m.unlockedAt = m.now()
	m.lastActivity = m.unlockedAt
	m.keyCache = map[string][]byte{string(salt): key}
}

// Lock clears the password and every cached derived key.
func (m *Manager) Lock() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.password == nil {
		return
	}
	m.wipeLocked()
	m.log.Info(context.Background(), "vault locked")
}

// Suspend is the foreground-loss analogue of the browser's visibilitychange
// handler: it locks immediately, regardless of the idle timer.
func (m *Manager) Suspend() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.password == nil {
		return
	}
	m.wipeLocked()
	m.log.Info(context.Background(), "vault locked on suspend")
}

// wipeLocked clears all key material. Caller holds m.mu.
func (m *Manager) wipeLocked() {
	cryptox.WipeBytes(m.password)
	m.password = nil
	m.unlockedAt = time.Time{}
	m.lastActivity = time.Time{}
	for _, key := range m.keyCache {
		cryptox.WipeBytes(key)
	}
	m.keyCache = nil
}

// expireLocked locks the session if the idle deadline passed. Caller holds
// m.mu. Reports whether a transition happened.
func (m *Manager) expireLocked() bool {
	if m.password == nil {
		return false
	}
	if m.now().Sub(m.lastActivity) < m.idleTimeout {
		return false
	}
	m.wipeLocked()
	return true
}

// IsUnlocked reports whether a usable session is active, expiring it first
// if the idle timeout has elapsed.
func (m *Manager) IsUnlocked() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.expireLocked() {
		m.log.Info(context.Background(), "vault locked after idle timeout")
	}
	return m.password != nil
}

// Unlocked implements fieldcrypt.KeyProvider.
func (m *Manager) Unlocked() bool { return m.IsUnlocked() }

// Touch records user activity, extending the idle deadline. Calls within one
// minute of the last recorded activity are ignored.
func (m *Manager) Touch() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.expireLocked() || m.password == nil {
		return
	}
	now := m.now()
	if now.Sub(m.lastActivity) < touchThrottle {
		return
	}
	m.lastActivity = now
}

// CheckIdle expires the session if idle and reports whether it locked on
// this call. Intended for a periodic watcher.
func (m *Manager) CheckIdle() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.expireLocked()
}

// DeriveKey implements fieldcrypt.KeyProvider. Keys are derived from the
// in-memory password and cached per salt until the session locks, so the
// slow KDF runs once per distinct salt per session.
func (m *Manager) DeriveKey(salt []byte) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.expireLocked() || m.password == nil {
		return nil, common.ErrLocked
	}

	if key, ok := m.keyCache[string(salt)]; ok {
		return key, nil
	}
	key := cryptox.DeriveKey(m.password, salt)
	m.keyCache[string(salt)] = key
	return key, nil
}

// ChangePassword re-keys the vault. It verifies old against the in-memory
// password, validates new, then runs reencrypt together with the salt and
// verifier writes inside one storage batch: either everything moves to the
// new password or the operation fails with nothing changed.
func (m *Manager) ChangePassword(ctx context.Context, oldPassword, newPassword []byte, reencrypt ReencryptFunc) error {
	m.mu.Lock()
	if m.expireLocked() || m.password == nil {
		m.mu.Unlock()
		return common.ErrLocked
	}
	if subtle.ConstantTimeCompare(m.password, oldPassword) == 0 {
		m.mu.Unlock()
		return common.ErrInvalidPassword
	}
	m.mu.Unlock()

	if err := ValidateStrength(newPassword); err != nil {
		return err
	}

	newSalt, err := cryptox.GenerateSalt()
	if err != nil {
		return err
	}
	newKey := cryptox.DeriveKey(newPassword, newSalt)
	newVerifier := cryptox.MakeVerifier(newKey)

	oldKeys := fieldcrypt.NewStaticKeys(oldPassword)
	newKeys := fieldcrypt.NewStaticKeys(newPassword)
	defer oldKeys.Wipe()
	defer newKeys.Wipe()

	err = m.kv.Update(ctx, func(ctx context.Context, tx storage.KV) error {
		if reencrypt != nil {
			if err := reencrypt(ctx, tx, oldKeys, newKeys); err != nil {
				return fmt.Errorf("re-encrypting stored secrets: %w", err)
			}
		}
		if err := tx.Set(ctx, keySalt, newSalt); err != nil {
			return err
		}
		return tx.Set(ctx, keyVerifier, newVerifier)
	})
	if err != nil {
		return err
	}

	m.becomeUnlocked(newPassword, newSalt, newKey)
	m.log.Info(ctx, "master password changed")
	return nil
}

// selfTest performs an encrypt/decrypt round trip with the derived key.
func selfTest(key []byte) error {
	ciphertext, nonce, err := cryptox.Encrypt(selfTestProbe, key)
	if err != nil {
		return err
	}
	plaintext, err := cryptox.Decrypt(ciphertext, nonce, key)
	if err != nil {
		return err
	}
	if !bytesEqual(plaintext, selfTestProbe) {
		return errors.New("self-test round trip mismatch")
	}
	return nil
}

func bytesEqual(a, b []byte) bool {
	return subtle.ConstantTimeCompare(a, b) == 1
}
