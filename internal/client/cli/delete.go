package cli

import (
	"context"
	"os"
)

// Delete removes a profile after confirmation. When the default profile is
// removed, another one is promoted automatically.
func (a *App) Delete(ctx context.Context) error {
	id, err := getSimpleText(a.reader, "Enter profile id to delete", os.Stdout)
	if err != nil {
		return err
	}

	ok, err := GetConfirm(a.reader, "Delete profile "+id+"?", os.Stdout)
	if err != nil {
		return err
	}
	if !ok {
		printlnFn("Aborted.")
		return nil
	}

	deleted, err := a.profiles.Delete(ctx, id)
	if err != nil {
		a.log.Error(ctx, "deleting profile", "id", id, "error", err)
		return err
	}
	if !deleted {
		printlnFn("No profile with id", id)
		return nil
	}

	printlnFn("Deleted.")
	return nil
}
