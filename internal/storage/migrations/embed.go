package migrations

import "embed"

// PostgresFS embeds the trade-log and score-history migrations.
//
//go:embed postgres/*.sql
var PostgresFS embed.FS

// ClickhouseFS embeds the capital-series migrations.
//
//go:embed clickhouse/*.sql
var ClickhouseFS embed.FS
