// Package dbtest opens migrated throwaway databases for package tests.
package dbtest

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/nerrad567/kiosk-fleet-core/internal/infrastructure/database"
	_ "github.com/nerrad567/kiosk-fleet-core/migrations" // registers the schema
)

// Open returns a migrated database in a per-test directory. The database
// is closed when the test finishes.
func Open(t testing.TB) *database.DB {
	t.Helper()

	db, err := database.Open(database.Config{
		Path:        filepath.Join(t.TempDir(), "fleet.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	t.Cleanup(func() {
		db.Close() //nolint:errcheck // Test cleanup
	})

	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("migrating test database: %v", err)
	}
	return db
}

// OpenSQL is Open for repositories that take a plain *sql.DB.
func OpenSQL(t testing.TB) *sql.DB {
	t.Helper()
	return Open(t).DB
}
