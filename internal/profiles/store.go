// Package profiles implements the secure profile store: CRUD over encrypted
// profile records, a plaintext summary index for pickers, the default-profile
// pointer, and repository-history bookkeeping. Every read and write of a full
// profile goes through the field-level encryption engine.
package profiles

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/dmitrijs2005/agentvault/internal/common"
	"github.com/dmitrijs2005/agentvault/internal/fieldcrypt"
	"github.com/dmitrijs2005/agentvault/internal/logging"
	"github.com/dmitrijs2005/agentvault/internal/models"
	"github.com/dmitrijs2005/agentvault/internal/storage"
	"github.com/google/uuid"
)

// Storage keys owned by the profile store.
const (
	RecordPrefix = "profile:"
	indexKey     = "profiles:index"
	defaultKey   = "profiles:default"
)

// DefaultProfileName names the profile synthesized when none exist.
const DefaultProfileName = "Default"

// Store is the profile store. Construct with NewStore and share freely;
// methods are safe for sequential use per the storage model (concurrent
// writers to the same profile are last-write-wins).
type Store struct {
	kv     storage.KV
	engine *fieldcrypt.Engine
	log    logging.Logger
	now    func() time.Time
	newID  func() string
}

// Option customizes a Store.
type Option func(*Store)

// WithClock injects a time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithIDGenerator injects an id source, for tests.
func WithIDGenerator(newID func() string) Option {
	return func(s *Store) { s.newID = newID }
}

func NewStore(kv storage.KV, engine *fieldcrypt.Engine, log logging.Logger, opts ...Option) *Store {
	s := &Store{
		kv:     kv,
		engine: engine,
		log:    log,
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateParams carries the caller-supplied fields of a new profile.
type CreateParams struct {
	Name                 string
	Description          string
	Icon                 string
	SystemPrompt         string
	FixedOrganizations   []string
	AgentAPIProxy        models.ProxySettings
	OAuth                *models.OAuthTokens
	EnvironmentVariables []models.EnvVar
	IsDefault            bool
}

// UpdateParams is a partial profile patch; nil fields are left unchanged.
type UpdateParams struct {
	Name                 *string
	Description          *string
	Icon                 *string
	SystemPrompt         *string
	FixedOrganizations   *[]string
	AgentAPIProxy        *models.ProxySettings
	OAuth                *models.OAuthTokens
	EnvironmentVariables *[]models.EnvVar
}

// Create assigns an id and timestamps, encrypts sensitive fields, persists
// the record, and rebuilds the summary index. The first profile in the store
// becomes the default regardless of params.
func (s *Store) Create(ctx context.Context, params CreateParams) (*models.Profile, error) {
	now := s.now().UTC()
	profile := &models.Profile{
		ID:                   s.newID(),
		Name:                 params.Name,
		Description:          params.Description,
		Icon:                 params.Icon,
		SystemPrompt:         params.SystemPrompt,
		FixedOrganizations:   params.FixedOrganizations,
		AgentAPIProxy:        params.AgentAPIProxy,
		OAuth:                params.OAuth,
		EnvironmentVariables: params.EnvironmentVariables,
		IsDefault:            params.IsDefault,
		CreatedAt:            now,
		UpdatedAt:            now,
	}

	existing, err := s.kv.ListKeys(ctx, RecordPrefix)
	if err != nil {
		return nil, err
	}
	if len(existing) == 0 {
		profile.IsDefault = true
	}

	doc, err := toDoc(profile)
	if err != nil {
		return nil, err
	}
	encrypted, err := s.engine.EncryptFields(ctx, doc)
	if err != nil {
		return nil, err
	}

	err = s.kv.Update(ctx, func(ctx context.Context, tx storage.KV) error {
		if profile.IsDefault {
			if err := s.clearDefaultFlags(ctx, tx, profile.ID); err != nil {
				return err
			}
			if err := tx.Set(ctx, defaultKey, []byte(profile.ID)); err != nil {
				return err
			}
		}
		if err := writeDoc(ctx, tx, RecordPrefix+profile.ID, encrypted); err != nil {
			return err
		}
		return s.rebuildIndex(ctx, tx)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info(ctx, "profile created", "id", profile.ID, "name", profile.Name)
	return profile, nil
}

// Get loads and transparently decrypts one profile. Fails with
// common.ErrLocked when no session is unlocked; there is no plaintext
// fallback. A missing id is common.ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (*models.Profile, error) {
	if !s.engine.Unlocked() {
		return nil, common.ErrLocked
	}

	doc, err := s.readDoc(ctx, s.kv, RecordPrefix+id)
	if err != nil {
		return nil, err
	}

	decrypted, err := s.engine.DecryptFields(ctx, doc)
	if err != nil {
		return nil, err
	}
	return fromDoc(decrypted)
}

// Update applies a partial patch, bumps UpdatedAt, re-encrypts, and persists.
func (s *Store) Update(ctx context.Context, id string, params UpdateParams) (*models.Profile, error) {
	profile, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if params.Name != nil {
		profile.Name = *params.Name
	}
	if params.Description != nil {
		profile.Description = *params.Description
	}
	if params.Icon != nil {
		profile.Icon = *params.Icon
	}
	if params.SystemPrompt != nil {
		profile.SystemPrompt = *params.SystemPrompt
	}
	if params.FixedOrganizations != nil {
		profile.FixedOrganizations = *params.FixedOrganizations
	}
	if params.AgentAPIProxy != nil {
		profile.AgentAPIProxy = *params.AgentAPIProxy
	}
	if params.OAuth != nil {
		profile.OAuth = params.OAuth
	}
	if params.EnvironmentVariables != nil {
		profile.EnvironmentVariables = *params.EnvironmentVariables
	}
	profile.UpdatedAt = s.now().UTC()

	doc, err := toDoc(profile)
	if err != nil {
		return nil, err
	}
	encrypted, err := s.engine.EncryptFields(ctx, doc)
	if err != nil {
		return nil, err
	}

	err = s.kv.Update(ctx, func(ctx context.Context, tx storage.KV) error {
		if err := writeDoc(ctx, tx, RecordPrefix+id, encrypted); err != nil {
			return err
		}
		return s.rebuildIndex(ctx, tx)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info(ctx, "profile updated", "id", id)
	return profile, nil
}

// Delete removes a profile and reports whether it existed. When the default
// profile dies, the first remaining profile is promoted; when none remain,
// the default pointer is cleared.
func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	raw, err := s.kv.Get(ctx, RecordPrefix+id)
	if err != nil {
		return false, err
	}
	if raw == nil {
		return false, nil
	}

	wasDefault, err := s.isDefault(ctx, id, raw)
	if err != nil {
		return false, err
	}

	err = s.kv.Update(ctx, func(ctx context.Context, tx storage.KV) error {
		if err := tx.Delete(ctx, RecordPrefix+id); err != nil {
			return err
		}

		if wasDefault {
			if err := s.promoteAnyDefault(ctx, tx); err != nil {
				return err
			}
		}
		return s.rebuildIndex(ctx, tx)
	})
	if err != nil {
		return false, err
	}

	s.log.Info(ctx, "profile deleted", "id", id)
	return true, nil
}

// List returns the plaintext summary index. No unlock is required, so a
// profile picker can render while the vault is locked. A missing index is
// rebuilt from the records.
func (s *Store) List(ctx context.Context) ([]models.Summary, error) {
	raw, err := s.kv.Get(ctx, indexKey)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		err = s.kv.Update(ctx, func(ctx context.Context, tx storage.KV) error {
			return s.rebuildIndex(ctx, tx)
		})
		if err != nil {
			return nil, err
		}
		if raw, err = s.kv.Get(ctx, indexKey); err != nil {
			return nil, err
		}
	}

	var summaries []models.Summary
	if err := json.Unmarshal(raw, &summaries); err != nil {
		return nil, fmt.Errorf("parsing profile index: %w", err)
	}
	return summaries, nil
}

// SetDefault makes id the sole default profile: the pointer is updated and
// every other profile's flag is cleared within one storage batch.
func (s *Store) SetDefault(ctx context.Context, id string) error {
	raw, err := s.kv.Get(ctx, RecordPrefix+id)
	if err != nil {
		return err
	}
	if raw == nil {
		return common.ErrNotFound
	}

	return s.kv.Update(ctx, func(ctx context.Context, tx storage.KV) error {
		if err := s.clearDefaultFlags(ctx, tx, id); err != nil {
			return err
		}
		if err := s.setDefaultFlag(ctx, tx, id, true); err != nil {
			return err
		}
		if err := tx.Set(ctx, defaultKey, []byte(id)); err != nil {
			return err
		}
		return s.rebuildIndex(ctx, tx)
	})
}

// GetDefault resolves the profile to use when none is explicitly selected.
// Resolution order: the caller's navigation id, the recorded default
// pointer, the first profile flagged default, the first profile at all, and
// finally a freshly synthesized default profile.
func (s *Store) GetDefault(ctx context.Context, navID string) (*models.Profile, error) {
	if navID != "" {
		if ok, err := s.exists(ctx, navID); err != nil {
			return nil, err
		} else if ok {
			return s.Get(ctx, navID)
		}
	}

	if pointer, err := s.kv.Get(ctx, defaultKey); err != nil {
		return nil, err
	} else if pointer != nil {
		if ok, err := s.exists(ctx, string(pointer)); err != nil {
			return nil, err
		} else if ok {
			return s.Get(ctx, string(pointer))
		}
	}

	summaries, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, summary := range summaries {
		if summary.IsDefault {
			return s.Get(ctx, summary.ID)
		}
	}
	if len(summaries) > 0 {
		return s.Get(ctx, summaries[0].ID)
	}

	profile, err := s.Create(ctx, CreateParams{Name: DefaultProfileName, IsDefault: true})
	if err != nil {
		return nil, err
	}
	s.log.Info(ctx, "synthesized default profile", "id", profile.ID)
	return profile, nil
}

// AddRepository records a repository use on the profile's history (MRU,
// deduplicated, capped). It edits the stored document in place without
// touching encrypted fields, so it works while the vault is locked.
func (s *Store) AddRepository(ctx context.Context, id, repository string) error {
	doc, err := s.readDoc(ctx, s.kv, RecordPrefix+id)
	if err != nil {
		return err
	}

	var history []models.RepositoryRef
	if raw, ok := doc["repositoryHistory"]; ok {
		if err := reencode(raw, &history); err != nil {
			return fmt.Errorf("parsing repository history: %w", err)
		}
	}

	history = models.AppendRepository(history, repository, s.now().UTC())

	var encoded any
	if err := reencode(history, &encoded); err != nil {
		return err
	}
	doc["repositoryHistory"] = encoded
	doc["updatedAt"] = s.now().UTC().Format(time.RFC3339Nano)

	return s.kv.Update(ctx, func(ctx context.Context, tx storage.KV) error {
		if err := writeDoc(ctx, tx, RecordPrefix+id, doc); err != nil {
			return err
		}
		return s.rebuildIndex(ctx, tx)
	})
}

// ReencryptAll rewrites every profile record from oldKeys to newKeys. It is
// meant to run inside the change-password storage batch, so a failure
// discards all rewrites.
func (s *Store) ReencryptAll(ctx context.Context, tx storage.KV, oldKeys, newKeys fieldcrypt.KeyProvider) error {
	oldEngine := fieldcrypt.NewEngine(oldKeys, s.log)
	newEngine := fieldcrypt.NewEngine(newKeys, s.log)

	keys, err := tx.ListKeys(ctx, RecordPrefix)
	if err != nil {
		return err
	}
	for _, key := range keys {
		doc, err := s.readDoc(ctx, tx, key)
		if err != nil {
			return err
		}
		decrypted, err := oldEngine.DecryptFields(ctx, doc)
		if err != nil {
			return fmt.Errorf("decrypting %s: %w", key, err)
		}
		encrypted, err := newEngine.EncryptFields(ctx, decrypted)
		if err != nil {
			return fmt.Errorf("re-encrypting %s: %w", key, err)
		}
		if err := writeDoc(ctx, tx, key, encrypted); err != nil {
			return err
		}
	}
	return nil
}

// ---- internals ----

func (s *Store) exists(ctx context.Context, id string) (bool, error) {
	raw, err := s.kv.Get(ctx, RecordPrefix+id)
	if err != nil {
		return false, err
	}
	return raw != nil, nil
}

func (s *Store) isDefault(ctx context.Context, id string, raw []byte) (bool, error) {
	pointer, err := s.kv.Get(ctx, defaultKey)
	if err != nil {
		return false, err
	}
	if string(pointer) == id {
		return true, nil
	}

	var doc struct {
		IsDefault bool `json:"isDefault"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return false, fmt.Errorf("parsing profile record: %w", err)
	}
	return doc.IsDefault, nil
}

// clearDefaultFlags flips isDefault off on every profile except keep.
func (s *Store) clearDefaultFlags(ctx context.Context, tx storage.KV, keep string) error {
	keys, err := tx.ListKeys(ctx, RecordPrefix)
	if err != nil {
		return err
	}
	for _, key := range keys {
		id := key[len(RecordPrefix):]
		if id == keep {
			continue
		}
		if err := s.setDefaultFlag(ctx, tx, id, false); err != nil {
			return err
		}
	}
	return nil
}

// setDefaultFlag edits the stored document directly; encrypted leaves pass
// through untouched, so no unlock is needed.
func (s *Store) setDefaultFlag(ctx context.Context, tx storage.KV, id string, value bool) error {
	doc, err := s.readDoc(ctx, tx, RecordPrefix+id)
	if err != nil {
		return err
	}
	if doc["isDefault"] == value {
		return nil
	}
	doc["isDefault"] = value
	return writeDoc(ctx, tx, RecordPrefix+id, doc)
}

func (s *Store) promoteAnyDefault(ctx context.Context, tx storage.KV) error {
	keys, err := tx.ListKeys(ctx, RecordPrefix)
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return tx.Delete(ctx, defaultKey)
	}
	sort.Strings(keys)

	id := keys[0][len(RecordPrefix):]
	if err := s.setDefaultFlag(ctx, tx, id, true); err != nil {
		return err
	}
	if err := tx.Set(ctx, defaultKey, []byte(id)); err != nil {
		return err
	}
	s.log.Info(ctx, "promoted profile to default", "id", id)
	return nil
}

// storedSummary is the plaintext subset of a record; envelope-valued fields
// are simply not mentioned, so parsing never needs a key.
type storedSummary struct {
	ID                string                 `json:"id"`
	Name              string                 `json:"name"`
	Icon              string                 `json:"icon"`
	IsDefault         bool                   `json:"isDefault"`
	RepositoryHistory []models.RepositoryRef `json:"repositoryHistory"`
}

// RebuildIndex regenerates the summary cache from the stored records.
// Migration calls it after moving records in bulk.
func (s *Store) RebuildIndex(ctx context.Context, tx storage.KV) error {
	return s.rebuildIndex(ctx, tx)
}

// rebuildIndex regenerates the summary cache from the stored records.
func (s *Store) rebuildIndex(ctx context.Context, tx storage.KV) error {
	keys, err := tx.ListKeys(ctx, RecordPrefix)
	if err != nil {
		return err
	}
	sort.Strings(keys)

	summaries := make([]models.Summary, 0, len(keys))
	for _, key := range keys {
		raw, err := tx.Get(ctx, key)
		if err != nil {
			return err
		}
		if raw == nil {
			continue
		}

		var stored storedSummary
		if err := json.Unmarshal(raw, &stored); err != nil {
			s.log.Warn(ctx, "skipping unparseable profile record", "key", key, "error", err)
			continue
		}

		p := models.Profile{
			ID:                stored.ID,
			Name:              stored.Name,
			Icon:              stored.Icon,
			IsDefault:         stored.IsDefault,
			RepositoryHistory: stored.RepositoryHistory,
		}
		summaries = append(summaries, p.Summary())
	}

	encoded, err := json.Marshal(summaries)
	if err != nil {
		return err
	}
	return tx.Set(ctx, indexKey, encoded)
}

func (s *Store) readDoc(ctx context.Context, kv storage.KV, key string) (map[string]any, error) {
	raw, err := kv.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, common.ErrNotFound
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parsing record %s: %w", key, err)
	}
	return doc, nil
}

func writeDoc(ctx context.Context, kv storage.KV, key string, doc map[string]any) error {
	encoded, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	return kv.Set(ctx, key, encoded)
}

func toDoc(p *models.Profile) (map[string]any, error) {
	var doc map[string]any
	if err := reencode(p, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func fromDoc(doc map[string]any) (*models.Profile, error) {
	var p models.Profile
	if err := reencode(doc, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// reencode converts between representations via JSON.
func reencode(from any, to any) error {
	b, err := json.Marshal(from)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, to)
}
