// Package migrations embeds the SQL schema migrations for Hearth Core.
package migrations

import "embed"

// FS holds the versioned .up.sql/.down.sql migration scripts.
//
//go:embed *.sql
var FS embed.FS

// Dir is the directory within FS containing the migration files.
const Dir = "."
