// Package migrations embeds the profile store schema for golang-migrate.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
