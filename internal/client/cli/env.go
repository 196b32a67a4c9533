package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/dmitrijs2005/agentvault/internal/common"
	"github.com/dmitrijs2005/agentvault/internal/models"
)

// Env views or edits environment settings. Settings live either globally or
// scoped to one repository; values are stored encrypted.
func (a *App) Env(ctx context.Context) error {
	repository, err := getSimpleText(a.reader, "Repository scope (empty for global)", os.Stdout)
	if err != nil {
		return err
	}

	action, err := getSimpleText(a.reader, "Action: show | set", os.Stdout)
	if err != nil {
		return err
	}

	switch action {
	case "show":
		return a.showSettings(ctx, repository)
	case "set":
		return a.setEnvVar(ctx, repository)
	default:
		printlnFn("Unknown action:", action)
		return nil
	}
}

// showSettings prints the effective settings for the scope: repository
// values merged over global ones.
func (a *App) showSettings(ctx context.Context, repository string) error {
	var (
		s   models.Settings
		err error
	)
	if repository == "" {
		s, err = a.settings.GetGlobal(ctx)
	} else {
		s, err = a.settings.Merged(ctx, repository)
	}
	if err != nil {
		if errors.Is(err, common.ErrLocked) {
			printlnFn("Vault is locked. Run 'unlock' first.")
		} else {
			a.log.Error(ctx, "loading settings", "repository", repository, "error", err)
		}
		return err
	}

	if len(s.EnvironmentVariables) == 0 && len(s.MCPServers) == 0 {
		printlnFn("No settings for this scope.")
		return nil
	}
	for _, v := range s.EnvironmentVariables {
		printlnFn(fmt.Sprintf("%s=%s", v.Key, v.Value))
	}
	for name, srv := range s.MCPServers {
		printlnFn(fmt.Sprintf("mcp %s: %s (%d env vars)", name, srv.Command, len(srv.Env)))
	}
	return nil
}

func (a *App) setEnvVar(ctx context.Context, repository string) error {
	key, err := getSimpleText(a.reader, "Variable name", os.Stdout)
	if err != nil {
		return err
	}
	if key == "" {
		printlnFn("Variable name must not be empty.")
		return nil
	}
	value, err := getSimpleText(a.reader, "Value", os.Stdout)
	if err != nil {
		return err
	}

	var s models.Settings
	if repository == "" {
		s, err = a.settings.GetGlobal(ctx)
	} else {
		s, err = a.settings.GetRepository(ctx, repository)
	}
	if err != nil {
		if errors.Is(err, common.ErrLocked) {
			printlnFn("Vault is locked. Run 'unlock' first.")
		} else {
			a.log.Error(ctx, "loading settings", "repository", repository, "error", err)
		}
		return err
	}

	replaced := false
	for i, v := range s.EnvironmentVariables {
		if v.Key == key {
			s.EnvironmentVariables[i].Value = value
			replaced = true
			break
		}
	}
	if !replaced {
		s.EnvironmentVariables = append(s.EnvironmentVariables, models.EnvVar{Key: key, Value: value})
	}

	if repository == "" {
		err = a.settings.SetGlobal(ctx, s)
	} else {
		err = a.settings.SetRepository(ctx, repository, s)
	}
	if err != nil {
		a.log.Error(ctx, "saving settings", "repository", repository, "error", err)
		return err
	}

	printlnFn("Saved.")
	return nil
}
