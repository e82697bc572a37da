// Package migrations embeds the database schema migrations applied by goose.
package migrations

import "embed"

// FS holds the versioned SQL migrations.
//
//go:embed *.sql
var FS embed.FS
