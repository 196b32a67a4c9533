package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"time"
)

func (a *App) getStatus() string {
	s := "locked"
	if a.isUnlocked() {
		s = "unlocked"
	}
	if a.Mode != ModeUnknown {
		s = s + " " + string(a.Mode)
	}
	return fmt.Sprintf("(%s)", s)
}

func (a *App) Root(ctx context.Context) {
	printlnFn("AgentVault CLI (type 'help' for commands)")

	configured, err := a.session.IsConfigured(ctx)
	if err != nil {
		a.log.Error(ctx, "checking vault state", "error", err)
		return
	}
	if !configured {
		printlnFn("No master password set. Run 'init' to create one.")
	} else if needed, err := a.migrator.NeedsMigration(ctx); err == nil && needed {
		printlnFn("Plaintext records found. Run 'migrate' after unlocking to encrypt them.")
	}

	go a.StartAutoLockWatcher(ctx, time.Minute)
	go a.StartProxyStatusWatcher(ctx, a.config.ProxyCheckInterval)

	scanner := bufio.NewScanner(os.Stdin)
	runREPL(ctx, a, a.getStatus, scanner)
}
