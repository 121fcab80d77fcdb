// Package database provides SQLite connectivity for the kiosk fleet core.
//
// This package manages:
//   - Database connection with WAL mode so live channel readers never
//     block heartbeat writers
//   - Additive schema migrations registered by the migrations package
//   - Transaction helpers and constraint error classification
//   - The fixed-width UTC timestamp layout used by every table
//
// Security Considerations:
//   - All queries use parameterised statements (no SQL injection)
//   - Database file permissions are set to 0600 (owner read/write only)
//
// Usage:
//
//	db, err := database.Open(database.Config{Path: cfg.Database.Path, WALMode: true})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    log.Fatal(err)
//	}
package database
