// Package migrations embeds the shared Postgres schema.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
