// Package fieldcrypt implements field-level encryption: it walks a JSON-like
// document, replaces sensitive string leaves with encrypted envelopes, and
// performs the inverse on read. Which leaves are sensitive is decided by a
// compiled allowlist of path patterns, never inferred from the data.
package fieldcrypt

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/dmitrijs2005/agentvault/internal/common"
	"github.com/dmitrijs2005/agentvault/internal/cryptox"
	"github.com/dmitrijs2005/agentvault/internal/logging"
)

// KeyProvider supplies derived encryption keys. The session manager is the
// usual implementation; StaticKeys serves migration and password changes.
type KeyProvider interface {
	// Unlocked reports whether keys can currently be derived.
	Unlocked() bool

	// DeriveKey derives (or returns a session-cached) key for the given salt.
	// Returns common.ErrLocked when no usable password is held.
	DeriveKey(salt []byte) ([]byte, error)
}

// Engine encrypts and decrypts the sensitive fields of JSON-like documents
// (map[string]any / []any / scalars, as produced by encoding/json).
type Engine struct {
	keys     KeyProvider
	matchers []matcher
	log      logging.Logger
}

// NewEngine builds an engine over the central SensitivePaths allowlist.
func NewEngine(keys KeyProvider, log logging.Logger) *Engine {
	return &Engine{keys: keys, matchers: compilePatterns(SensitivePaths), log: log}
}

// Unlocked reports whether the engine can currently encrypt or decrypt.
func (e *Engine) Unlocked() bool {
	return e.keys.Unlocked()
}

// EncryptFields returns a copy of doc in which every non-empty string leaf
// whose path matches the allowlist is replaced by an encrypted envelope.
// Values that are already envelopes are left untouched, which makes the
// operation idempotent for partially-encrypted input. Fails with
// common.ErrLocked if a matching leaf is found while no session is unlocked;
// there is no silent plaintext fallback.
func (e *Engine) EncryptFields(ctx context.Context, doc map[string]any) (map[string]any, error) {
	out, err := e.encryptValue(ctx, doc, nil)
	if err != nil {
		return nil, err
	}
	return out.(map[string]any), nil
}

func (e *Engine) encryptValue(ctx context.Context, v any, path []string) (any, error) {
	switch value := v.(type) {
	case map[string]any:
		if IsEnvelope(value) {
			return value, nil
		}
		out := make(map[string]any, len(value))
		for k, item := range value {
			enc, err := e.encryptValue(ctx, item, append(path, k))
			if err != nil {
				return nil, err
			}
			out[k] = enc
		}
		return out, nil

	case []any:
		out := make([]any, len(value))
		for i, item := range value {
			enc, err := e.encryptValue(ctx, item, append(path, strconv.Itoa(i)))
			if err != nil {
				return nil, err
			}
			out[i] = enc
		}
		return out, nil

	case string:
		if value == "" || !anyMatches(e.matchers, path) {
			return value, nil
		}
		env, err := e.encryptString(value)
		if err != nil {
			return nil, fmt.Errorf("encrypting %s: %w", strings.Join(path, "."), err)
		}
		return env.ToMap(), nil

	default:
		return v, nil
	}
}

func (e *Engine) encryptString(s string) (*Envelope, error) {
	if !e.keys.Unlocked() {
		return nil, common.ErrLocked
	}

	salt, err := cryptox.GenerateSalt()
	if err != nil {
		return nil, err
	}
	key, err := e.keys.DeriveKey(salt)
	if err != nil {
		return nil, err
	}

	ciphertext, nonce, err := cryptox.Encrypt([]byte(s), key)
	if err != nil {
		return nil, err
	}
	return &Envelope{Ciphertext: ciphertext, Nonce: nonce, Salt: salt}, nil
}

// DecryptFields returns a copy of doc in which every envelope is replaced by
// its plaintext string. A field that fails to decrypt (tampered, corrupted,
// or keyed differently) becomes an empty string and is logged; one bad field
// never blocks the rest of the document. Fails with common.ErrLocked when an
// envelope is found while no session is unlocked.
func (e *Engine) DecryptFields(ctx context.Context, doc map[string]any) (map[string]any, error) {
	out, err := e.decryptValue(ctx, doc, nil)
	if err != nil {
		return nil, err
	}
	return out.(map[string]any), nil
}

func (e *Engine) decryptValue(ctx context.Context, v any, path []string) (any, error) {
	switch value := v.(type) {
	case map[string]any:
		if IsEnvelope(value) {
			if !e.keys.Unlocked() {
				return nil, common.ErrLocked
			}
			return e.decryptEnvelope(ctx, value, path), nil
		}
		out := make(map[string]any, len(value))
		for k, item := range value {
			dec, err := e.decryptValue(ctx, item, append(path, k))
			if err != nil {
				return nil, err
			}
			out[k] = dec
		}
		return out, nil

	case []any:
		out := make([]any, len(value))
		for i, item := range value {
			dec, err := e.decryptValue(ctx, item, append(path, strconv.Itoa(i)))
			if err != nil {
				return nil, err
			}
			out[i] = dec
		}
		return out, nil

	default:
		return v, nil
	}
}

// decryptEnvelope recovers a single field. Failures degrade to "" so a
// corrupted field cannot block loading the surrounding object.
func (e *Engine) decryptEnvelope(ctx context.Context, m map[string]any, path []string) string {
	env, err := EnvelopeFromMap(m)
	if err != nil {
		e.log.Warn(ctx, "malformed encrypted field", "path", strings.Join(path, "."))
		return ""
	}

	key, err := e.keys.DeriveKey(env.Salt)
	if err != nil {
		e.log.Warn(ctx, "key derivation failed for field", "path", strings.Join(path, "."), "error", err)
		return ""
	}

	plaintext, err := cryptox.Decrypt(env.Ciphertext, env.Nonce, key)
	if err != nil {
		e.log.Warn(ctx, "failed to decrypt field", "path", strings.Join(path, "."), "error", err)
		return ""
	}
	return string(plaintext)
}

// StaticKeys is a KeyProvider bound to a fixed password, independent of any
// session. Migration and change-password use it to address the old and new
// passwords explicitly. Derived keys are cached per salt; call Wipe when done.
type StaticKeys struct {
	mu       sync.Mutex
	password []byte
	cache    map[string][]byte
}

func NewStaticKeys(password []byte) *StaticKeys {
	return &StaticKeys{
		password: append([]byte(nil), password...),
		cache:    make(map[string][]byte),
	}
}

func (s *StaticKeys) Unlocked() bool { return true }

func (s *StaticKeys) DeriveKey(salt []byte) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if key, ok := s.cache[string(salt)]; ok {
		return key, nil
	}
	key := cryptox.DeriveKey(s.password, salt)
	s.cache[string(salt)] = key
	return key, nil
}

// Wipe zeroes the password and every cached key.
func (s *StaticKeys) Wipe() {
	s.mu.Lock()
	defer s.mu.Unlock()

	cryptox.WipeBytes(s.password)
	for _, key := range s.cache {
		cryptox.WipeBytes(key)
	}
	s.cache = make(map[string][]byte)
}
