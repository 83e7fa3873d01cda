package db

import "embed"

// MigrationsFS carries the schema migration files in the binary so the
// migrate subcommand needs no files on disk.
//
//go:embed migrations/*.sql
var MigrationsFS embed.FS
