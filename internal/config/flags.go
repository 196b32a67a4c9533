package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/agentvault/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-s string   path of the vault database file
//	-b string   storage backend, "sqlite" or "bolt"
//	-t int      idle auto-lock timeout in minutes
//	-i int      proxy reachability check interval in seconds
//
// Note: The function filters os.Args to only include the flags it knows about,
// using flagx.FilterArgs, to avoid interference with other components.
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-s", "-b", "-t", "-i"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.StoragePath, "s", cfg.StoragePath, "path of the vault database file")
	fs.StringVar(&cfg.StorageBackend, "b", cfg.StorageBackend, "storage backend (sqlite or bolt)")
	idleTimeout := fs.Int("t", int(cfg.IdleTimeout.Minutes()), "idle auto-lock timeout (in minutes)")
	proxyCheckInterval := fs.Int("i", int(cfg.ProxyCheckInterval.Seconds()), "proxy check interval (in seconds)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	cfg.IdleTimeout = time.Duration(*idleTimeout) * time.Minute
	cfg.ProxyCheckInterval = time.Duration(*proxyCheckInterval) * time.Second
}
