// Package database provides SQLite connectivity for the Gray Logic hub.
//
// The hub keeps one SQLite file for the discovery journal. This package
// opens it (WAL mode, busy timeout, single writer) and applies the embedded
// schema migrations from the migrations package.
//
// Usage:
//
//	db, err := database.Open(ctx, database.Config{Path: cfg.Database.Path, WALMode: true})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
//
// Migrations are additive: new columns must be nullable or have defaults,
// and every .up.sql has a matching .down.sql.
package database
