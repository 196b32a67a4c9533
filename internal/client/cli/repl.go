package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	isUnlocked() bool
	touch()
	Init(ctx context.Context) error
	Unlock(ctx context.Context) error
	Lock(ctx context.Context) error
	ChangePassword(ctx context.Context) error
	List(ctx context.Context) error
	Show(ctx context.Context) error
	Create(ctx context.Context) error
	Delete(ctx context.Context) error
	SetDefault(ctx context.Context) error
	AddRepo(ctx context.Context) error
	Env(ctx context.Context) error
	Migrate(ctx context.Context) error
	Status(ctx context.Context) error
}

// runREPL starts a simple read–eval–print loop for the AgentVault CLI.
//
// It reads a line from the provided scanner, parses the first token as the
// command, and dispatches to methods on 'a'. Unknown commands are reported
// back to the user. The loop exits on scanner EOF or when the user types
// "exit" or "quit".
//
// Locked vault:
//   - help           — show available commands
//   - init           — set a master password on a fresh vault
//   - unlock         — unlock with the master password
//   - list           — list profile summaries (no secrets)
//   - exit | quit    — leave the program
//
// Unlocked vault:
//   - help           — show available commands
//   - list | l       — list profile summaries
//   - show           — show one profile with decrypted fields
//   - create         — create a profile
//   - delete         — delete a profile
//   - default        — mark a profile as the default
//   - addrepo        — record a repository use on a profile
//   - env            — view or edit environment settings
//   - changepw       — change the master password
//   - migrate        — encrypt any remaining plaintext records
//   - status         — check the proxy connection
//   - lock           — lock the vault
//   - exit | quit    — leave the program
//
// Any errors returned by command handlers are ignored here; handlers report
// their own errors. This keeps the REPL loop resilient and focused on I/O.
func runREPL(ctx context.Context, a execIface, statusFn func() string, scanner *bufio.Scanner) {
	for {
		printlnFn(fmt.Sprintf("av> %s > ", statusFn()))
		if !scanner.Scan() {
			return
		}
		line := scanner.Text()
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd := parts[0]
		a.touch()

		switch cmd {
		case "help":
			if a.isUnlocked() {
				printlnFn("Available commands: (l)ist, show, create, delete, default, addrepo, env, changepw, migrate, status, lock, exit")
			} else {
				printlnFn("Available commands: init, unlock, list, exit")
			}

		case "init":
			_ = a.Init(ctx)

		case "unlock":
			_ = a.Unlock(ctx)

		case "lock":
			_ = a.Lock(ctx)

		case "changepw":
			_ = a.ChangePassword(ctx)

		case "l", "list":
			_ = a.List(ctx)

		case "show":
			_ = a.Show(ctx)

		case "create":
			_ = a.Create(ctx)

		case "delete":
			_ = a.Delete(ctx)

		case "default":
			_ = a.SetDefault(ctx)

		case "addrepo":
			_ = a.AddRepo(ctx)

		case "env":
			_ = a.Env(ctx)

		case "migrate":
			_ = a.Migrate(ctx)

		case "status":
			_ = a.Status(ctx)

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}
	}
}
