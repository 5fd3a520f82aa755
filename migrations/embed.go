// Package migrations embeds the SQL schema for the statistics, moderation
// and points tables.
package migrations

import "embed"

// FS holds the embedded up/down migration files consumed by golang-migrate.
//
//go:embed *.sql
var FS embed.FS
