// Package migrations embeds the bridge's SQL schema files into the binary.
package migrations

import (
	"embed"

	"github.com/nerrad567/gray-logic-avr/internal/infrastructure/database"
)

//go:embed *.sql
var migrationsFS embed.FS

func init() {
	database.MigrationsFS = migrationsFS
	database.MigrationsDir = "."
}
