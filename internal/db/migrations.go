package db

import "embed"

// MigrationFS embeds the SQL migration files consumed by internal/db/migrate.
//
//go:embed migrations/*.sql
var MigrationFS embed.FS
