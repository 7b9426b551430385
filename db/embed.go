// Package db embeds the goose migrations of billingd.
package db

import "embed"

// Migrations holds migrations/*.sql. Pass it to pg.Migrate with the
// default PG_MIGRATIONS_PATH of "migrations".
//
//go:embed migrations/*.sql
var Migrations embed.FS
