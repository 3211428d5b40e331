// Package database provides the SQLite connection backing the bridge's
// persistent state store.
//
// It manages:
//   - Opening the database file with WAL mode and a busy timeout
//   - Versioned up/down schema migrations registered by package migrations
//   - Health checks and transaction helpers
//
// All queries use parameterised statements and the database file is
// created with 0600 permissions.
//
// Usage:
//
//	db, err := database.Open(cfg.Database)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
package database
