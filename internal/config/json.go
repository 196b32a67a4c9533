package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/agentvault/internal/flagx"
	"github.com/dmitrijs2005/agentvault/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. It relies on
// timex.Duration so JSON can specify intervals either as strings like "30m"
// or as integer nanoseconds.
type JsonConfig struct {
	StoragePath        string         `json:"storage_path"`
	StorageBackend     string         `json:"storage_backend"`
	IdleTimeout        timex.Duration `json:"idle_timeout"`
	ProxyCheckInterval timex.Duration `json:"proxy_check_interval"`
}

// parseJson overlays Config with values loaded from a JSON file selected via
// the -c/-config flags. Empty JSON fields leave the current value alone.
// Intended usage is: defaults -> parseJson -> parseFlags, where later stages
// override earlier ones.
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	var jc JsonConfig

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	if jc.StoragePath != "" {
		cfg.StoragePath = jc.StoragePath
	}
	if jc.StorageBackend != "" {
		cfg.StorageBackend = jc.StorageBackend
	}
	if jc.IdleTimeout != 0 {
		cfg.IdleTimeout = jc.IdleTimeout.Std()
	}
	if jc.ProxyCheckInterval != 0 {
		cfg.ProxyCheckInterval = jc.ProxyCheckInterval.Std()
	}
}
