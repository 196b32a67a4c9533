// Package settings implements the encrypted settings store: one global
// settings document plus optional per-repository overrides, merged on read
// with repository values taking precedence.
package settings

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dmitrijs2005/agentvault/internal/fieldcrypt"
	"github.com/dmitrijs2005/agentvault/internal/logging"
	"github.com/dmitrijs2005/agentvault/internal/models"
	"github.com/dmitrijs2005/agentvault/internal/storage"
)

// Storage keys owned by the settings store.
const (
	GlobalKey        = "settings:global"
	RepositoryPrefix = "settings:repo:"
)

type Store struct {
	kv     storage.KV
	engine *fieldcrypt.Engine
	log    logging.Logger
}

func NewStore(kv storage.KV, engine *fieldcrypt.Engine, log logging.Logger) *Store {
	return &Store{kv: kv, engine: engine, log: log}
}

// SetGlobal encrypts and persists the global settings document.
func (s *Store) SetGlobal(ctx context.Context, settings models.Settings) error {
	return s.write(ctx, GlobalKey, settings)
}

// GetGlobal loads the global settings; a missing document is empty settings.
func (s *Store) GetGlobal(ctx context.Context) (models.Settings, error) {
	return s.read(ctx, GlobalKey)
}

// SetRepository encrypts and persists settings scoped to one repository.
func (s *Store) SetRepository(ctx context.Context, repository string, settings models.Settings) error {
	return s.write(ctx, RepositoryPrefix+repository, settings)
}

// GetRepository loads one repository's settings without merging.
func (s *Store) GetRepository(ctx context.Context, repository string) (models.Settings, error) {
	return s.read(ctx, RepositoryPrefix+repository)
}

// Merged overlays the repository's settings over the global ones. Repository
// values win on key collision; global-only keys remain present.
func (s *Store) Merged(ctx context.Context, repository string) (models.Settings, error) {
	global, err := s.GetGlobal(ctx)
	if err != nil {
		return models.Settings{}, err
	}
	repo, err := s.GetRepository(ctx, repository)
	if err != nil {
		return models.Settings{}, err
	}
	return models.MergeSettings(global, repo), nil
}

// ReencryptAll rewrites every settings document from oldKeys to newKeys,
// inside the caller's storage batch.
func (s *Store) ReencryptAll(ctx context.Context, tx storage.KV, oldKeys, newKeys fieldcrypt.KeyProvider) error {
	oldEngine := fieldcrypt.NewEngine(oldKeys, s.log)
	newEngine := fieldcrypt.NewEngine(newKeys, s.log)

	keys, err := tx.ListKeys(ctx, "settings:")
	if err != nil {
		return err
	}
	for _, key := range keys {
		raw, err := tx.Get(ctx, key)
		if err != nil {
			return err
		}
		if raw == nil {
			continue
		}
		var doc map[string]any
		if err := json.Unmarshal(raw, &doc); err != nil {
			return fmt.Errorf("parsing %s: %w", key, err)
		}
		decrypted, err := oldEngine.DecryptFields(ctx, doc)
		if err != nil {
			return fmt.Errorf("decrypting %s: %w", key, err)
		}
		encrypted, err := newEngine.EncryptFields(ctx, decrypted)
		if err != nil {
			return fmt.Errorf("re-encrypting %s: %w", key, err)
		}
		encoded, err := json.Marshal(encrypted)
		if err != nil {
			return err
		}
		if err := tx.Set(ctx, key, encoded); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) write(ctx context.Context, key string, settings models.Settings) error {
	var doc map[string]any
	b, err := json.Marshal(settings)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(b, &doc); err != nil {
		return err
	}

	encrypted, err := s.engine.EncryptFields(ctx, doc)
	if err != nil {
		return err
	}
	encoded, err := json.Marshal(encrypted)
	if err != nil {
		return err
	}
	return s.kv.Set(ctx, key, encoded)
}

func (s *Store) read(ctx context.Context, key string) (models.Settings, error) {
	raw, err := s.kv.Get(ctx, key)
	if err != nil {
		return models.Settings{}, err
	}
	if raw == nil {
		return models.Settings{}, nil
	}

	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return models.Settings{}, fmt.Errorf("parsing %s: %w", key, err)
	}
	decrypted, err := s.engine.DecryptFields(ctx, doc)
	if err != nil {
		return models.Settings{}, err
	}

	var settings models.Settings
	b, err := json.Marshal(decrypted)
	if err != nil {
		return models.Settings{}, err
	}
	if err := json.Unmarshal(b, &settings); err != nil {
		return models.Settings{}, err
	}
	return settings, nil
}
