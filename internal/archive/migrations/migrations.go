// Package migrations embeds the witness archive schema.
package migrations

import "embed"

// FS holds the archive migration files.
//
//go:embed *.sql
var FS embed.FS
