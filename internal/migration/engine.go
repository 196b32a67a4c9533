// Package migration upgrades legacy plaintext profile and settings records
// to the current encrypted layout. It runs once at startup, is idempotent,
// and never deletes a legacy record before its encrypted replacement has
// been durably written.
package migration

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/dmitrijs2005/agentvault/internal/fieldcrypt"
	"github.com/dmitrijs2005/agentvault/internal/logging"
	"github.com/dmitrijs2005/agentvault/internal/profiles"
	"github.com/dmitrijs2005/agentvault/internal/storage"
	"github.com/google/uuid"
)

// Legacy key prefixes left behind by pre-encryption versions.
const (
	LegacyProfilePrefix  = "legacy:profile:"
	LegacySettingsPrefix = "legacy:settings:"
)

// Report summarizes one migration run.
type Report struct {
	MigratedCount int
	Errors        []string
}

// Engine scans for legacy records and rewrites them encrypted. A profile
// store is needed to rebuild the summary index after profile records move.
type Engine struct {
	kv       storage.KV
	profiles *profiles.Store
	log      logging.Logger
}

func NewEngine(kv storage.KV, profileStore *profiles.Store, log logging.Logger) *Engine {
	return &Engine{kv: kv, profiles: profileStore, log: log}
}

// NeedsMigration reports whether any legacy record remains.
func (e *Engine) NeedsMigration(ctx context.Context) (bool, error) {
	for _, prefix := range []string{LegacyProfilePrefix, LegacySettingsPrefix} {
		keys, err := e.kv.ListKeys(ctx, prefix)
		if err != nil {
			return false, err
		}
		if len(keys) > 0 {
			return true, nil
		}
	}
	return false, nil
}

// Migrate encrypts every legacy record under the supplied master password.
// Per-item failures are collected into the report and leave that item's
// legacy record in place for a retry; they never abort the remaining items.
// A second run finds nothing left and reports MigratedCount 0.
func (e *Engine) Migrate(ctx context.Context, password []byte) (*Report, error) {
	keys := fieldcrypt.NewStaticKeys(password)
	defer keys.Wipe()
	engine := fieldcrypt.NewEngine(keys, e.log)

	report := &Report{}

	profileKeys, err := e.kv.ListKeys(ctx, LegacyProfilePrefix)
	if err != nil {
		return nil, err
	}
	sort.Strings(profileKeys)
	for _, key := range profileKeys {
		if err := e.migrateProfile(ctx, engine, key); err != nil {
			e.log.Warn(ctx, "legacy profile migration failed", "key", key, "error", err)
			report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", key, err))
			continue
		}
		report.MigratedCount++
	}

	settingsKeys, err := e.kv.ListKeys(ctx, LegacySettingsPrefix)
	if err != nil {
		return nil, err
	}
	sort.Strings(settingsKeys)
	for _, key := range settingsKeys {
		if err := e.migrateSettings(ctx, engine, key); err != nil {
			e.log.Warn(ctx, "legacy settings migration failed", "key", key, "error", err)
			report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", key, err))
			continue
		}
		report.MigratedCount++
	}

	if report.MigratedCount > 0 {
		err = e.kv.Update(ctx, func(ctx context.Context, tx storage.KV) error {
			return e.profiles.RebuildIndex(ctx, tx)
		})
		if err != nil {
			return nil, err
		}
	}

	e.log.Info(ctx, "migration finished",
		"migrated", report.MigratedCount, "errors", len(report.Errors))
	return report, nil
}

// migrateProfile moves one legacy profile: parse, encrypt sensitive fields,
// write the encrypted record, then delete the legacy key. The encrypt step
// is idempotent for records that were already partially encrypted.
func (e *Engine) migrateProfile(ctx context.Context, engine *fieldcrypt.Engine, key string) error {
	raw, err := e.kv.Get(ctx, key)
	if err != nil {
		return err
	}
	if raw == nil {
		return nil
	}

	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("parsing legacy record: %w", err)
	}

	id, _ := doc["id"].(string)
	if id == "" {
		// very old records carried no id
		id = uuid.NewString()
		doc["id"] = id
	}

	encrypted, err := engine.EncryptFields(ctx, doc)
	if err != nil {
		return err
	}
	encoded, err := json.Marshal(encrypted)
	if err != nil {
		return err
	}

	return e.kv.Update(ctx, func(ctx context.Context, tx storage.KV) error {
		if err := tx.Set(ctx, profiles.RecordPrefix+id, encoded); err != nil {
			return err
		}
		// delete strictly after the encrypted write
		return tx.Delete(ctx, key)
	})
}

// migrateSettings moves one legacy settings document, keeping its scope
// (global or per-repository).
func (e *Engine) migrateSettings(ctx context.Context, engine *fieldcrypt.Engine, key string) error {
	raw, err := e.kv.Get(ctx, key)
	if err != nil {
		return err
	}
	if raw == nil {
		return nil
	}

	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("parsing legacy record: %w", err)
	}

	encrypted, err := engine.EncryptFields(ctx, doc)
	if err != nil {
		return err
	}
	encoded, err := json.Marshal(encrypted)
	if err != nil {
		return err
	}

	target := "settings:" + strings.TrimPrefix(key, LegacySettingsPrefix)
	return e.kv.Update(ctx, func(ctx context.Context, tx storage.KV) error {
		if err := tx.Set(ctx, target, encoded); err != nil {
			return err
		}
		return tx.Delete(ctx, key)
	})
}
