package migrations

import "embed"

// FS contains embedded SQLite migrations for extractor storage.
//
//go:embed *.sql
var FS embed.FS
