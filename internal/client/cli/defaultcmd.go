package cli

import (
	"context"
	"errors"
	"os"

	"github.com/dmitrijs2005/agentvault/internal/common"
)

// SetDefault marks one profile as the default; the flag is cleared from all
// others in the same operation.
func (a *App) SetDefault(ctx context.Context) error {
	id, err := getSimpleText(a.reader, "Enter profile id to make default", os.Stdout)
	if err != nil {
		return err
	}

	if err := a.profiles.SetDefault(ctx, id); err != nil {
		if errors.Is(err, common.ErrNotFound) {
			printlnFn("No profile with id", id)
		} else {
			a.log.Error(ctx, "setting default profile", "id", id, "error", err)
		}
		return err
	}

	printlnFn("Default profile set.")
	return nil
}
