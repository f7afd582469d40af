// Package migrations embeds the goose migrations for the Postgres schema.
package migrations

import "embed"

// FS holds the SQL migrations at its root.
//
//go:embed *.sql
var FS embed.FS
