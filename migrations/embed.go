// Package migrations embeds SQL migration files into the binary.
//
// Importing this package (usually for side effects) registers the hub's
// schema with the database package, so Migrate works without SQL files on disk.
package migrations

import (
	"embed"

	"github.com/nerrad567/gray-logic-hub/internal/infrastructure/database"
)

//go:embed *.sql
var migrationsFS embed.FS

func init() {
	database.MigrationsFS = migrationsFS
	database.MigrationsDir = "."
}
