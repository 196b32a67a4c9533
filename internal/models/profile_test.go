package models

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendRepository_CapAndOrder(t *testing.T) {
	now := time.Now().UTC()
	var history []RepositoryRef

	for i := 0; i < 11; i++ {
		history = AppendRepository(history, fmt.Sprintf("org/repo-%d", i), now.Add(time.Duration(i)*time.Second))
	}

	require.Len(t, history, MaxRepositoryHistory)
	assert.Equal(t, "org/repo-10", history[0].Repository)
	assert.Equal(t, "org/repo-1", history[9].Repository)
}

func TestAppendRepository_ReAddMovesToFront(t *testing.T) {
	now := time.Now().UTC()
	var history []RepositoryRef

	history = AppendRepository(history, "org/a", now)
	history = AppendRepository(history, "org/b", now.Add(time.Second))
	history = AppendRepository(history, "org/a", now.Add(2*time.Second))

	require.Len(t, history, 2)
	assert.Equal(t, "org/a", history[0].Repository)
	assert.Equal(t, now.Add(2*time.Second), history[0].LastUsedAt)
	assert.Equal(t, "org/b", history[1].Repository)
}

func TestProfileSummary(t *testing.T) {
	used := time.Now().UTC()
	p := &Profile{
		ID:        "id-1",
		Name:      "Work",
		Icon:      "🏢",
		IsDefault: true,
		RepositoryHistory: []RepositoryRef{
			{Repository: "org/a", LastUsedAt: used},
			{Repository: "org/b", LastUsedAt: used.Add(-time.Hour)},
		},
	}

	s := p.Summary()
	assert.Equal(t, "id-1", s.ID)
	assert.True(t, s.IsDefault)
	assert.Equal(t, 2, s.RepositoryCount)
	require.NotNil(t, s.LastUsed)
	assert.Equal(t, used, *s.LastUsed)
}

func TestMergeSettings_RepoPrecedence(t *testing.T) {
	global := Settings{
		EnvironmentVariables: []EnvVar{
			{Key: "A", Value: "global-a"},
			{Key: "B", Value: "global-b"},
		},
		MCPServers: map[string]MCPServer{
			"search": {Command: "search-global"},
		},
	}
	repo := Settings{
		EnvironmentVariables: []EnvVar{
			{Key: "B", Value: "repo-b"},
			{Key: "C", Value: "repo-c"},
		},
		MCPServers: map[string]MCPServer{
			"search": {Command: "search-repo"},
		},
	}

	merged := MergeSettings(global, repo)

	require.Len(t, merged.EnvironmentVariables, 3)
	assert.Equal(t, EnvVar{Key: "A", Value: "global-a"}, merged.EnvironmentVariables[0])
	assert.Equal(t, EnvVar{Key: "B", Value: "repo-b"}, merged.EnvironmentVariables[1])
	assert.Equal(t, EnvVar{Key: "C", Value: "repo-c"}, merged.EnvironmentVariables[2])
	assert.Equal(t, "search-repo", merged.MCPServers["search"].Command)
}
