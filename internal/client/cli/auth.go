package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/dmitrijs2005/agentvault/internal/common"
	"github.com/dmitrijs2005/agentvault/internal/cryptox"
)

// getSimpleText and getPassword are indirections used to facilitate testing.
// They point to interactive input helpers and can be swapped in tests.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

// Init sets the master password on a fresh vault. The password is asked for
// twice; a mismatch or a weak password aborts without touching storage.
func (a *App) Init(ctx context.Context) error {
	password, err := getPassword("Choose a master password", os.Stdout)
	if err != nil {
		return err
	}
	defer cryptox.WipeBytes(password)

	confirm, err := getPassword("Repeat the master password", os.Stdout)
	if err != nil {
		return err
	}
	defer cryptox.WipeBytes(confirm)

	if string(password) != string(confirm) {
		printlnFn("Passwords do not match.")
		return nil
	}

	if err := a.session.Configure(ctx, password); err != nil {
		var weak *common.WeakPasswordError
		switch {
		case errors.As(err, &weak):
			printlnFn("Password too weak:")
			for _, reason := range weak.Unmet {
				printlnFn("  - " + reason)
			}
		case errors.Is(err, common.ErrAlreadyConfigured):
			printlnFn("A master password is already set. Use 'changepw' to replace it.")
		default:
			a.log.Error(ctx, "configuring master password", "error", err)
		}
		return err
	}

	printlnFn("Vault initialized and unlocked.")
	return nil
}

// Unlock verifies the master password and opens the session.
func (a *App) Unlock(ctx context.Context) error {
	password, err := getPassword("Enter master password", os.Stdout)
	if err != nil {
		return err
	}
	defer cryptox.WipeBytes(password)

	if err := a.session.Unlock(ctx, password); err != nil {
		switch {
		case errors.Is(err, common.ErrInvalidPassword):
			printlnFn("Invalid master password.")
		case errors.Is(err, common.ErrNotConfigured):
			printlnFn("No master password set. Run 'init' first.")
		default:
			a.log.Error(ctx, "unlocking vault", "error", err)
		}
		return err
	}

	printlnFn("Vault unlocked.")
	return nil
}

func (a *App) Lock(ctx context.Context) error {
	a.session.Lock()
	a.setMode(ModeUnknown)
	printlnFn("Vault locked.")
	return nil
}

// ChangePassword re-encrypts every stored secret under a new master
// password. The swap is atomic: either all records plus the verifier move to
// the new password, or nothing changes.
func (a *App) ChangePassword(ctx context.Context) error {
	oldPassword, err := getPassword("Current master password", os.Stdout)
	if err != nil {
		return err
	}
	defer cryptox.WipeBytes(oldPassword)

	newPassword, err := getPassword("New master password", os.Stdout)
	if err != nil {
		return err
	}
	defer cryptox.WipeBytes(newPassword)

	confirm, err := getPassword("Repeat the new master password", os.Stdout)
	if err != nil {
		return err
	}
	defer cryptox.WipeBytes(confirm)

	if string(newPassword) != string(confirm) {
		printlnFn("Passwords do not match.")
		return nil
	}

	err = a.session.ChangePassword(ctx, oldPassword, newPassword, a.reencryptAll)
	if err != nil {
		var weak *common.WeakPasswordError
		switch {
		case errors.As(err, &weak):
			printlnFn("New password too weak:")
			for _, reason := range weak.Unmet {
				printlnFn("  - " + reason)
			}
		case errors.Is(err, common.ErrInvalidPassword):
			printlnFn("Current master password is wrong.")
		default:
			a.log.Error(ctx, "changing master password", "error", err)
			printlnFn(fmt.Sprintf("Password change failed, nothing was modified: %v", err))
		}
		return err
	}

	printlnFn("Master password changed.")
	return nil
}
