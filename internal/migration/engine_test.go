package migration

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/dmitrijs2005/agentvault/internal/fieldcrypt"
	"github.com/dmitrijs2005/agentvault/internal/logging"
	"github.com/dmitrijs2005/agentvault/internal/profiles"
	"github.com/dmitrijs2005/agentvault/internal/session"
	"github.com/dmitrijs2005/agentvault/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const masterPassword = "Str0ng-Pass!"

type fixture struct {
	kv      storage.KV
	session *session.Manager
	store   *profiles.Store
	engine  *Engine
}

func setup(t *testing.T) *fixture {
	t.Helper()
	kv := storage.NewMemoryKV()
	log := logging.NewNopLogger()

	m := session.NewManager(kv, log)
	require.NoError(t, m.Configure(context.Background(), []byte(masterPassword)))

	fc := fieldcrypt.NewEngine(m, log)
	store := profiles.NewStore(kv, fc, log)
	return &fixture{
		kv:      kv,
		session: m,
		store:   store,
		engine:  NewEngine(kv, store, log),
	}
}

func seedLegacyProfile(t *testing.T, kv storage.KV, id string, doc map[string]any) {
	t.Helper()
	raw, err := json.Marshal(doc)
	require.NoError(t, err)
	require.NoError(t, kv.Set(context.Background(), LegacyProfilePrefix+id, raw))
}

func TestNeedsMigration(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	needed, err := f.engine.NeedsMigration(ctx)
	require.NoError(t, err)
	assert.False(t, needed)

	seedLegacyProfile(t, f.kv, "p1", map[string]any{"id": "p1", "name": "Work"})

	needed, err = f.engine.NeedsMigration(ctx)
	require.NoError(t, err)
	assert.True(t, needed)
}

func TestMigrate_EncryptsAndRemovesLegacy(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	seedLegacyProfile(t, f.kv, "p1", map[string]any{
		"id":   "p1",
		"name": "Work",
		"agentApiProxy": map[string]any{
			"endpoint": "https://proxy",
			"apiKey":   "plain-secret",
		},
	})

	report, err := f.engine.Migrate(ctx, []byte(masterPassword))
	require.NoError(t, err)
	assert.Equal(t, 1, report.MigratedCount)
	assert.Empty(t, report.Errors)

	// legacy record is gone
	raw, err := f.kv.Get(ctx, LegacyProfilePrefix+"p1")
	require.NoError(t, err)
	assert.Nil(t, raw)

	// migrated record is encrypted at rest
	raw, err = f.kv.Get(ctx, profiles.RecordPrefix+"p1")
	require.NoError(t, err)
	require.NotNil(t, raw)
	assert.NotContains(t, string(raw), "plain-secret")
	assert.Contains(t, string(raw), fieldcrypt.EnvelopeMarker)

	// and readable through the store under the same password
	got, err := f.store.Get(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "plain-secret", got.AgentAPIProxy.APIKey)
	assert.Equal(t, "https://proxy", got.AgentAPIProxy.Endpoint)

	// the summary index was rebuilt
	summaries, err := f.store.List(ctx)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, "Work", summaries[0].Name)
}

func TestMigrate_Settings(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	doc := map[string]any{
		"environmentVariables": []any{
			map[string]any{"key": "TOKEN", "value": "hunter2"},
		},
	}
	raw, err := json.Marshal(doc)
	require.NoError(t, err)
	require.NoError(t, f.kv.Set(ctx, LegacySettingsPrefix+"global", raw))

	report, err := f.engine.Migrate(ctx, []byte(masterPassword))
	require.NoError(t, err)
	assert.Equal(t, 1, report.MigratedCount)

	moved, err := f.kv.Get(ctx, "settings:global")
	require.NoError(t, err)
	require.NotNil(t, moved)
	assert.NotContains(t, string(moved), "hunter2")

	old, err := f.kv.Get(ctx, LegacySettingsPrefix+"global")
	require.NoError(t, err)
	assert.Nil(t, old)
}

func TestMigrate_Idempotent(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	seedLegacyProfile(t, f.kv, "p1", map[string]any{"id": "p1", "name": "Work"})

	first, err := f.engine.Migrate(ctx, []byte(masterPassword))
	require.NoError(t, err)
	assert.Equal(t, 1, first.MigratedCount)

	second, err := f.engine.Migrate(ctx, []byte(masterPassword))
	require.NoError(t, err)
	assert.Equal(t, 0, second.MigratedCount)
	assert.Empty(t, second.Errors)
}

func TestMigrate_BadRecordCollectedAndKept(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	require.NoError(t, f.kv.Set(ctx, LegacyProfilePrefix+"bad", []byte("{not json")))
	seedLegacyProfile(t, f.kv, "good", map[string]any{"id": "good", "name": "G"})

	report, err := f.engine.Migrate(ctx, []byte(masterPassword))
	require.NoError(t, err)
	assert.Equal(t, 1, report.MigratedCount)
	require.Len(t, report.Errors, 1)
	assert.Contains(t, report.Errors[0], LegacyProfilePrefix+"bad")

	// the failed record stays for a retry after the operator fixes it
	raw, err := f.kv.Get(ctx, LegacyProfilePrefix+"bad")
	require.NoError(t, err)
	assert.NotNil(t, raw)
}

func TestMigrate_AlreadyEncryptedEnvelopePassesThrough(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	// build a genuine envelope under the same password, then embed it into a
	// half-migrated legacy record
	created, err := f.store.Create(ctx, profiles.CreateParams{Name: "tmp"})
	require.NoError(t, err)
	_, err = f.store.Delete(ctx, created.ID)
	require.NoError(t, err)

	keys := fieldcrypt.NewStaticKeys([]byte(masterPassword))
	defer keys.Wipe()
	fc := fieldcrypt.NewEngine(keys, logging.NewNopLogger())
	enc, err := fc.EncryptFields(ctx, map[string]any{
		"id": "p1", "name": "W",
		"agentApiProxy": map[string]any{"apiKey": "tok"},
	})
	require.NoError(t, err)
	raw, err := json.Marshal(enc)
	require.NoError(t, err)
	require.NoError(t, f.kv.Set(ctx, LegacyProfilePrefix+"p1", raw))

	report, err := f.engine.Migrate(ctx, []byte(masterPassword))
	require.NoError(t, err)
	assert.Equal(t, 1, report.MigratedCount)

	got, err := f.store.Get(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "tok", got.AgentAPIProxy.APIKey)
}
