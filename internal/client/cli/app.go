package cli

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/dmitrijs2005/agentvault/internal/config"
	"github.com/dmitrijs2005/agentvault/internal/fieldcrypt"
	"github.com/dmitrijs2005/agentvault/internal/logging"
	"github.com/dmitrijs2005/agentvault/internal/migration"
	"github.com/dmitrijs2005/agentvault/internal/profiles"
	"github.com/dmitrijs2005/agentvault/internal/proxy"
	"github.com/dmitrijs2005/agentvault/internal/session"
	"github.com/dmitrijs2005/agentvault/internal/settings"
	"github.com/dmitrijs2005/agentvault/internal/storage"
)

// Mode reflects the reachability of the active profile's AgentAPI proxy.
type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
	ModeUnknown Mode = ""
)

type App struct {
	config   *config.Config
	kv       storage.KV
	session  *session.Manager
	engine   *fieldcrypt.Engine
	profiles *profiles.Store
	settings *settings.Store
	migrator *migration.Engine
	log      logging.Logger
	reader   *bufio.Reader
	Mode     Mode
}

func NewApp(c *config.Config) (*App, error) {
	ctx := context.Background()
	log := logging.NewSlogLogger(slog.Default())

	kv, err := openStorage(ctx, c)
	if err != nil {
		log.Error(ctx, "opening vault storage", "path", c.StoragePath, "error", err)
		return nil, err
	}

	m := session.NewManager(kv, log, session.WithIdleTimeout(c.IdleTimeout))
	engine := fieldcrypt.NewEngine(m, log)
	profileStore := profiles.NewStore(kv, engine, log)
	settingsStore := settings.NewStore(kv, engine, log)
	migrator := migration.NewEngine(kv, profileStore, log)

	return &App{
		config:   c,
		kv:       kv,
		session:  m,
		engine:   engine,
		profiles: profileStore,
		settings: settingsStore,
		migrator: migrator,
		log:      log,
		reader:   bufio.NewReader(os.Stdin),
	}, nil
}

func openStorage(ctx context.Context, c *config.Config) (storage.KV, error) {
	if err := os.MkdirAll(filepath.Dir(c.StoragePath), 0o700); err != nil {
		return nil, fmt.Errorf("creating vault directory: %w", err)
	}
	switch c.StorageBackend {
	case "bolt":
		return storage.OpenBolt(c.StoragePath)
	case "", "sqlite":
		return storage.OpenSQLite(ctx, c.StoragePath)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", c.StorageBackend)
	}
}

func (a *App) Run(ctx context.Context) {
	defer a.kv.Close()
	a.Root(ctx)
}

func (a *App) isUnlocked() bool {
	return a.session.IsUnlocked()
}

// touch extends the idle deadline on every command.
func (a *App) touch() {
	a.session.Touch()
}

// reencryptAll rewrites every encrypted record from the old keys to the new
// ones inside the password-change transaction.
func (a *App) reencryptAll(ctx context.Context, tx storage.KV, oldKeys, newKeys fieldcrypt.KeyProvider) error {
	if err := a.profiles.ReencryptAll(ctx, tx, oldKeys, newKeys); err != nil {
		return err
	}
	return a.settings.ReencryptAll(ctx, tx, oldKeys, newKeys)
}

func (a *App) setMode(mode Mode) {
	if a.Mode != mode {
		a.Mode = mode
		a.log.Info(context.Background(), "proxy reachability changed", "mode", string(mode))
	}
}

// StartAutoLockWatcher locks the vault once the idle timeout elapses without
// a command being run.
func (a *App) StartAutoLockWatcher(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if a.session.CheckIdle() {
				printlnFn("Vault locked after inactivity.")
			}
		case <-ctx.Done():
			return
		}
	}
}

// StartProxyStatusWatcher periodically pings the default profile's proxy and
// flips Mode between online and offline. A missing or locked default profile
// leaves Mode untouched.
func (a *App) StartProxyStatusWatcher(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			client, err := a.defaultProxyClient(ctx)
			if err != nil || client == nil {
				continue
			}

			pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			err = client.Ping(pingCtx)
			cancel()

			if err != nil {
				a.setMode(ModeOffline)
			} else {
				a.setMode(ModeOnline)
			}

		case <-ctx.Done():
			return
		}
	}
}

// defaultProxyClient builds a proxy client from the default profile's
// connection settings. Returns (nil, nil) when no profile has an endpoint
// configured.
func (a *App) defaultProxyClient(ctx context.Context) (*proxy.Client, error) {
	if !a.isUnlocked() {
		return nil, nil
	}
	p, err := a.profiles.GetDefault(ctx, "")
	if err != nil {
		return nil, err
	}
	if p.AgentAPIProxy.Endpoint == "" {
		return nil, nil
	}
	return proxy.NewClient(p.AgentAPIProxy.Endpoint, p.AgentAPIProxy.APIKey)
}
