package cli

import (
	"context"
	"errors"
	"os"

	"github.com/dmitrijs2005/agentvault/internal/common"
)

// AddRepo records a repository use on a profile. The history is kept in
// most-recently-used order; this works even while the vault is locked.
func (a *App) AddRepo(ctx context.Context) error {
	id, err := getSimpleText(a.reader, "Enter profile id", os.Stdout)
	if err != nil {
		return err
	}
	repository, err := getSimpleText(a.reader, "Repository (e.g. org/repo)", os.Stdout)
	if err != nil {
		return err
	}
	if repository == "" {
		printlnFn("Repository must not be empty.")
		return nil
	}

	if err := a.profiles.AddRepository(ctx, id, repository); err != nil {
		if errors.Is(err, common.ErrNotFound) {
			printlnFn("No profile with id", id)
		} else {
			a.log.Error(ctx, "recording repository use", "id", id, "error", err)
		}
		return err
	}

	printlnFn("Recorded.")
	return nil
}
