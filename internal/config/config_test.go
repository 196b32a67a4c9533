package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	var c Config
	c.LoadDefaults()

	assert.NotEmpty(t, c.StoragePath)
	assert.Contains(t, c.StoragePath, ".agentvault")
	assert.Equal(t, "sqlite", c.StorageBackend)
	assert.Equal(t, 30*time.Minute, c.IdleTimeout)
	assert.Equal(t, 30*time.Second, c.ProxyCheckInterval)
}

func TestLoadConfig_UsesDefaultsBeforeParsing(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })
	os.Args = []string{"testbin"}

	cfg := LoadConfig()

	require.NotNil(t, cfg, "LoadConfig must not return nil")
	assert.Equal(t, "sqlite", cfg.StorageBackend)
	assert.Equal(t, 30*time.Minute, cfg.IdleTimeout)
}

func TestParseFlags_Overrides(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })
	os.Args = []string{"testbin", "-b", "bolt", "-t", "5", "-i", "10"}

	cfg := &Config{}
	cfg.LoadDefaults()
	parseFlags(cfg)

	assert.Equal(t, "bolt", cfg.StorageBackend)
	assert.Equal(t, 5*time.Minute, cfg.IdleTimeout)
	assert.Equal(t, 10*time.Second, cfg.ProxyCheckInterval)
}
