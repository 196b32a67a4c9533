package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/dmitrijs2005/agentvault/internal/common"
)

// Show prints one profile with its sensitive fields decrypted.
func (a *App) Show(ctx context.Context) error {
	id, err := getSimpleText(a.reader, "Enter profile id to show", os.Stdout)
	if err != nil {
		return err
	}

	p, err := a.profiles.Get(ctx, id)
	if err != nil {
		switch {
		case errors.Is(err, common.ErrLocked):
			printlnFn("Vault is locked. Run 'unlock' first.")
		case errors.Is(err, common.ErrNotFound):
			printlnFn("No profile with id", id)
		default:
			a.log.Error(ctx, "loading profile", "id", id, "error", err)
		}
		return err
	}

	printlnFn("Name:", p.Name)
	if p.Description != "" {
		printlnFn("Description:", p.Description)
	}
	if p.SystemPrompt != "" {
		printlnFn("System prompt:", p.SystemPrompt)
	}
	printlnFn("Default:", p.IsDefault)
	if p.AgentAPIProxy.Endpoint != "" {
		printlnFn("Proxy endpoint:", p.AgentAPIProxy.Endpoint)
		printlnFn("Proxy API key:", p.AgentAPIProxy.APIKey)
	}
	if p.OAuth != nil {
		printlnFn("OAuth access token:", p.OAuth.AccessToken)
		printlnFn("OAuth refresh token:", p.OAuth.RefreshToken)
	}
	for _, v := range p.EnvironmentVariables {
		printlnFn(fmt.Sprintf("Env %s=%s", v.Key, v.Value))
	}
	for _, ref := range p.RepositoryHistory {
		printlnFn(fmt.Sprintf("Repository %s (last used %s)",
			ref.Repository, ref.LastUsedAt.Format("2006-01-02 15:04")))
	}
	return nil
}
