// Package migrations embeds the goose SQL migrations for the sqlite backend.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
