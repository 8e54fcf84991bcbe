// Package database provides the SQLite connection layer for Hearth Core.
//
// It wraps database/sql with WAL-mode pragmas tuned for a single-writer
// embedded deployment, and ships an embedded-filesystem migration runner
// that applies versioned .up.sql/.down.sql scripts inside transactions.
package database
