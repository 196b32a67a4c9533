package cli

import (
	"context"
	"errors"
	"os"

	"github.com/dmitrijs2005/agentvault/internal/common"
	"github.com/dmitrijs2005/agentvault/internal/models"
	"github.com/dmitrijs2005/agentvault/internal/profiles"
)

// Create prompts for the basic profile fields and stores a new profile.
// Optional fields left empty are simply omitted.
func (a *App) Create(ctx context.Context) error {
	if !a.isUnlocked() {
		printlnFn("Vault is locked. Run 'unlock' first.")
		return common.ErrLocked
	}

	name, err := getSimpleText(a.reader, "Profile name", os.Stdout)
	if err != nil {
		return err
	}
	if name == "" {
		printlnFn("A profile needs a name.")
		return nil
	}

	description, err := getSimpleText(a.reader, "Description (optional)", os.Stdout)
	if err != nil {
		return err
	}

	endpoint, err := getSimpleText(a.reader, "AgentAPI proxy endpoint (optional)", os.Stdout)
	if err != nil {
		return err
	}

	params := profiles.CreateParams{
		Name:        name,
		Description: description,
	}
	if endpoint != "" {
		apiKey, err := getPassword("Proxy API key", os.Stdout)
		if err != nil {
			return err
		}
		params.AgentAPIProxy = models.ProxySettings{
			Endpoint: endpoint,
			APIKey:   string(apiKey),
		}
	}

	created, err := a.profiles.Create(ctx, params)
	if err != nil {
		if errors.Is(err, common.ErrLocked) {
			printlnFn("Vault is locked. Run 'unlock' first.")
		} else {
			a.log.Error(ctx, "creating profile", "error", err)
		}
		return err
	}

	printlnFn("Created profile", created.ID)
	if created.IsDefault {
		printlnFn("It is now the default profile.")
	}
	return nil
}
