// Package models defines the domain entities managed by the vault:
// profiles, settings, and their summary projections.
package models

import "time"

// MaxRepositoryHistory caps the per-profile repository history length.
const MaxRepositoryHistory = 10

// ProxySettings points a profile at an AgentAPI proxy endpoint.
// APIKey is a sensitive field and is stored encrypted.
type ProxySettings struct {
	Endpoint string `json:"endpoint"`
	APIKey   string `json:"apiKey,omitempty"`
}

// OAuthTokens holds provider tokens. Both fields are sensitive.
type OAuthTokens struct {
	AccessToken  string `json:"accessToken,omitempty"`
	RefreshToken string `json:"refreshToken,omitempty"`
}

// EnvVar is a single environment variable. Value is a sensitive field.
type EnvVar struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// RepositoryRef is one entry of a profile's repository history.
type RepositoryRef struct {
	Repository string    `json:"repository"`
	LastUsedAt time.Time `json:"lastUsedAt"`
}

// Profile is the main entity of the store. Sensitive leaves (proxy API key,
// OAuth tokens, env-var values) are replaced by encrypted envelopes before
// the profile ever reaches durable storage.
type Profile struct {
	ID                   string          `json:"id"`
	Name                 string          `json:"name"`
	Description          string          `json:"description,omitempty"`
	Icon                 string          `json:"icon,omitempty"`
	SystemPrompt         string          `json:"systemPrompt,omitempty"`
	FixedOrganizations   []string        `json:"fixedOrganizations,omitempty"`
	AgentAPIProxy        ProxySettings   `json:"agentApiProxy"`
	OAuth                *OAuthTokens    `json:"oauth,omitempty"`
	RepositoryHistory    []RepositoryRef `json:"repositoryHistory,omitempty"`
	EnvironmentVariables []EnvVar        `json:"environmentVariables,omitempty"`
	IsDefault            bool            `json:"isDefault"`
	CreatedAt            time.Time       `json:"createdAt"`
	UpdatedAt            time.Time       `json:"updatedAt"`
}

// Summary is the non-sensitive projection of a profile, cheap enough for a
// picker to render without unlocking the vault.
type Summary struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	Icon            string     `json:"icon,omitempty"`
	IsDefault       bool       `json:"isDefault"`
	LastUsed        *time.Time `json:"lastUsed,omitempty"`
	RepositoryCount int        `json:"repositoryCount"`
}

// Summary builds the plaintext projection of p.
func (p *Profile) Summary() Summary {
	s := Summary{
		ID:              p.ID,
		Name:            p.Name,
		Icon:            p.Icon,
		IsDefault:       p.IsDefault,
		RepositoryCount: len(p.RepositoryHistory),
	}
	if len(p.RepositoryHistory) > 0 {
		t := p.RepositoryHistory[0].LastUsedAt
		s.LastUsed = &t
	}
	return s
}

// AppendRepository records a repository use in MRU order: an existing entry
// is moved to the front with a fresh timestamp, a new one is prepended, and
// the result is truncated to MaxRepositoryHistory.
func AppendRepository(history []RepositoryRef, repository string, now time.Time) []RepositoryRef {
	out := make([]RepositoryRef, 0, len(history)+1)
	out = append(out, RepositoryRef{Repository: repository, LastUsedAt: now})
	for _, ref := range history {
		if ref.Repository == repository {
			continue
		}
		out = append(out, ref)
	}
	if len(out) > MaxRepositoryHistory {
		out = out[:MaxRepositoryHistory]
	}
	return out
}
