package cli

import (
	"context"
	"fmt"
)

// List prints profile summaries. It works on a locked vault; summaries carry
// no secrets.
func (a *App) List(ctx context.Context) error {
	summaries, err := a.profiles.List(ctx)
	if err != nil {
		a.log.Error(ctx, "listing profiles", "error", err)
		return err
	}

	if len(summaries) == 0 {
		printlnFn("No profiles yet. Run 'create' to add one.")
		return nil
	}

	for _, s := range summaries {
		marker := " "
		if s.IsDefault {
			marker = "*"
		}
		line := fmt.Sprintf("%s %s  %s  (%d repositories)", marker, s.ID, s.Name, s.RepositoryCount)
		if s.LastUsed != nil {
			line += "  last used " + s.LastUsed.Format("2006-01-02 15:04")
		}
		printlnFn(line)
	}
	return nil
}
