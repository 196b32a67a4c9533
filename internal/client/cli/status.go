package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/agentvault/internal/proxy"
)

// Status checks the default profile's proxy connection: reachability, token
// expiry, and the sessions running behind it.
func (a *App) Status(ctx context.Context) error {
	if !a.isUnlocked() {
		printlnFn("Vault is locked. Run 'unlock' first.")
		return nil
	}

	p, err := a.profiles.GetDefault(ctx, "")
	if err != nil {
		a.log.Error(ctx, "loading default profile", "error", err)
		return err
	}
	if p.AgentAPIProxy.Endpoint == "" {
		printlnFn("The default profile has no proxy endpoint configured.")
		return nil
	}

	client, err := proxy.NewClient(p.AgentAPIProxy.Endpoint, p.AgentAPIProxy.APIKey)
	if err != nil {
		printlnFn("Bad proxy settings:", err)
		return err
	}

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	err = client.Ping(pingCtx)
	cancel()
	if err != nil {
		a.setMode(ModeOffline)
		printlnFn("Proxy unreachable:", err)
		return err
	}
	a.setMode(ModeOnline)
	printlnFn("Proxy reachable at", p.AgentAPIProxy.Endpoint)

	if exp, err := proxy.TokenExpiry(p.AgentAPIProxy.APIKey); err == nil {
		if remaining := time.Until(exp); remaining < 0 {
			printlnFn("Warning: the API token expired at", exp.Format(time.RFC3339))
		} else {
			printlnFn(fmt.Sprintf("API token valid for %s.", remaining.Round(time.Minute)))
		}
	}

	sessions, err := client.ListSessions(ctx)
	if err != nil {
		printlnFn("Could not list sessions:", err)
		return err
	}
	if len(sessions) == 0 {
		printlnFn("No active sessions.")
		return nil
	}
	for _, s := range sessions {
		printlnFn(fmt.Sprintf("Session %s: %s", s.ID, s.Status))
	}
	return nil
}
