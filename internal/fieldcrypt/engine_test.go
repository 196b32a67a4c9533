package fieldcrypt

import (
	"context"
	"encoding/base64"
	"testing"

	"github.com/dmitrijs2005/agentvault/internal/common"
	"github.com/dmitrijs2005/agentvault/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// lockedKeys is a KeyProvider that never yields keys.
type lockedKeys struct{}

func (lockedKeys) Unlocked() bool                   { return false }
func (lockedKeys) DeriveKey([]byte) ([]byte, error) { return nil, common.ErrLocked }

func newTestEngine(t *testing.T) (*Engine, *StaticKeys) {
	t.Helper()
	keys := NewStaticKeys([]byte("Master-Pass-1!"))
	t.Cleanup(keys.Wipe)
	return NewEngine(keys, logging.NewNopLogger()), keys
}

func TestEncryptFields_Selectivity(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()

	doc := map[string]any{
		"agentApiProxy": map[string]any{
			"apiKey":   "X",
			"endpoint": "Y",
		},
	}

	out, err := eng.EncryptFields(ctx, doc)
	require.NoError(t, err)

	proxy := out["agentApiProxy"].(map[string]any)
	assert.Equal(t, "Y", proxy["endpoint"])

	env, ok := proxy["apiKey"].(map[string]any)
	require.True(t, ok, "apiKey must be replaced by an envelope")
	assert.True(t, IsEnvelope(env))
	assert.NotContains(t, env["ciphertext"], "X")
}

func TestEncryptFields_ArrayAndWildcard(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()

	doc := map[string]any{
		"environmentVariables": []any{
			map[string]any{"key": "TOKEN", "value": "sekret"},
			map[string]any{"key": "REGION", "value": "eu-1"},
		},
	}

	out, err := eng.EncryptFields(ctx, doc)
	require.NoError(t, err)

	vars := out["environmentVariables"].([]any)
	for i, v := range vars {
		item := v.(map[string]any)
		assert.Equal(t, doc["environmentVariables"].([]any)[i].(map[string]any)["key"], item["key"])
		_, ok := item["value"].(map[string]any)
		assert.True(t, ok, "value at index %d must be an envelope", i)
	}
}

func TestEncryptFields_EmptyStringSkipped(t *testing.T) {
	eng, _ := newTestEngine(t)

	doc := map[string]any{
		"agentApiProxy": map[string]any{"apiKey": "", "endpoint": "Y"},
	}
	out, err := eng.EncryptFields(context.Background(), doc)
	require.NoError(t, err)

	proxy := out["agentApiProxy"].(map[string]any)
	assert.Equal(t, "", proxy["apiKey"])
}

func TestEncryptFields_LockedFailsLoudly(t *testing.T) {
	eng := NewEngine(lockedKeys{}, logging.NewNopLogger())

	doc := map[string]any{
		"agentApiProxy": map[string]any{"apiKey": "secret"},
	}
	_, err := eng.EncryptFields(context.Background(), doc)
	require.ErrorIs(t, err, common.ErrLocked)
}

func TestEncryptFields_IdempotentOnEnvelopes(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()

	doc := map[string]any{
		"agentApiProxy": map[string]any{"apiKey": "secret", "endpoint": "Y"},
	}
	once, err := eng.EncryptFields(ctx, doc)
	require.NoError(t, err)

	twice, err := eng.EncryptFields(ctx, once)
	require.NoError(t, err)

	assert.Equal(t,
		once["agentApiProxy"].(map[string]any)["apiKey"],
		twice["agentApiProxy"].(map[string]any)["apiKey"],
		"an existing envelope must pass through unchanged")
}

func TestDecryptFields_RoundTrip(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()

	doc := map[string]any{
		"agentApiProxy": map[string]any{"apiKey": "secret123", "endpoint": "https://x"},
		"oauth":         map[string]any{"accessToken": "at", "refreshToken": "rt"},
	}

	enc, err := eng.EncryptFields(ctx, doc)
	require.NoError(t, err)

	dec, err := eng.DecryptFields(ctx, enc)
	require.NoError(t, err)

	assert.Equal(t, "secret123", dec["agentApiProxy"].(map[string]any)["apiKey"])
	assert.Equal(t, "https://x", dec["agentApiProxy"].(map[string]any)["endpoint"])
	assert.Equal(t, "at", dec["oauth"].(map[string]any)["accessToken"])
	assert.Equal(t, "rt", dec["oauth"].(map[string]any)["refreshToken"])
}

func TestDecryptFields_CorruptedFieldIsolated(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()

	doc := map[string]any{
		"agentApiProxy": map[string]any{"apiKey": "good", "endpoint": "https://x"},
		"oauth":         map[string]any{"accessToken": "also-good"},
	}
	enc, err := eng.EncryptFields(ctx, doc)
	require.NoError(t, err)

	// corrupt one envelope's ciphertext
	env := enc["oauth"].(map[string]any)["accessToken"].(map[string]any)
	raw, err := base64.StdEncoding.DecodeString(env["ciphertext"].(string))
	require.NoError(t, err)
	raw[0] ^= 0xFF
	env["ciphertext"] = base64.StdEncoding.EncodeToString(raw)

	dec, err := eng.DecryptFields(ctx, enc)
	require.NoError(t, err, "one bad field must not abort the object")

	assert.Equal(t, "", dec["oauth"].(map[string]any)["accessToken"])
	assert.Equal(t, "good", dec["agentApiProxy"].(map[string]any)["apiKey"])
}

func TestDecryptFields_LockedFails(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()

	doc := map[string]any{"agentApiProxy": map[string]any{"apiKey": "secret"}}
	enc, err := eng.EncryptFields(ctx, doc)
	require.NoError(t, err)

	locked := NewEngine(lockedKeys{}, logging.NewNopLogger())
	_, err = locked.DecryptFields(ctx, enc)
	require.ErrorIs(t, err, common.ErrLocked)
}

func TestMatcher_Wildcards(t *testing.T) {
	matchers := compilePatterns([]string{"environmentVariables.*.value", "agentApiProxy.apiKey"})

	assert.True(t, anyMatches(matchers, []string{"environmentVariables", "2", "value"}))
	assert.True(t, anyMatches(matchers, []string{"agentApiProxy", "apiKey"}))
	assert.False(t, anyMatches(matchers, []string{"agentApiProxy", "endpoint"}))
	assert.False(t, anyMatches(matchers, []string{"environmentVariables", "2", "key"}))
	assert.False(t, anyMatches(matchers, []string{"environmentVariables", "2", "value", "deep"}))
}
