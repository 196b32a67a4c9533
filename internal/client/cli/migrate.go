package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/dmitrijs2005/agentvault/internal/cryptox"
)

// Migrate encrypts any remaining plaintext records under the master
// password. Failed items stay in place and can be retried.
func (a *App) Migrate(ctx context.Context) error {
	needed, err := a.migrator.NeedsMigration(ctx)
	if err != nil {
		a.log.Error(ctx, "checking for plaintext records", "error", err)
		return err
	}
	if !needed {
		printlnFn("Nothing to migrate.")
		return nil
	}

	password, err := getPassword("Enter master password to encrypt legacy records", os.Stdout)
	if err != nil {
		return err
	}
	defer cryptox.WipeBytes(password)

	report, err := a.migrator.Migrate(ctx, password)
	if err != nil {
		a.log.Error(ctx, "migrating legacy records", "error", err)
		return err
	}

	printlnFn(fmt.Sprintf("Migrated %d record(s).", report.MigratedCount))
	for _, e := range report.Errors {
		printlnFn("Failed (kept for retry): " + e)
	}
	return nil
}
