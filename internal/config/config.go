package config

import (
	"os"
	"path/filepath"
	"time"
)

// Config holds runtime settings for the AgentVault CLI.
//
// Fields:
//   - StoragePath: path of the vault database file.
//   - StorageBackend: which key-value backend to open, "sqlite" or "bolt".
//   - IdleTimeout: how long the vault stays unlocked without activity.
//   - ProxyCheckInterval: how often the client probes proxy reachability.
type Config struct {
	StoragePath        string
	StorageBackend     string
	IdleTimeout        time.Duration
	ProxyCheckInterval time.Duration
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	c.StoragePath = filepath.Join(home, ".agentvault", "vault.db")
	c.StorageBackend = "sqlite"
	c.IdleTimeout = 30 * time.Minute
	c.ProxyCheckInterval = 30 * time.Second
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags (if present). Later sources take
// precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
