// Package migrations embeds the SQL schema into the binary so the gateway
// can migrate its database without the files on disk.
package migrations

import "embed"

// FS holds every *.sql migration at its root. Pass it to
// (*database.DB).Migrate.
//
//go:embed *.sql
var FS embed.FS
