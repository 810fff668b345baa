// Package migrations embeds the matches schema for both databases and
// applies it at startup. Every script is idempotent.
package migrations

import "embed"

// PostgresFS holds postgres/*.sql.
//
//go:embed postgres/*.sql
var PostgresFS embed.FS

// ClickhouseFS holds clickhouse/*.sql.
//
//go:embed clickhouse/*.sql
var ClickhouseFS embed.FS
