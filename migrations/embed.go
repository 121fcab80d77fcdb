// Package migrations embeds the fleet schema into the binary.
//
// Importing this package (usually blank) registers the SQL files with the
// database package so that DB.Migrate needs nothing on disk.
package migrations

import (
	"embed"

	"github.com/nerrad567/kiosk-fleet-core/internal/infrastructure/database"
)

//go:embed *.sql
var migrationsFS embed.FS

func init() {
	database.MigrationsFS = migrationsFS
	database.MigrationsDir = "."
}
