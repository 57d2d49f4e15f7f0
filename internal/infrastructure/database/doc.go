// Package database provides SQLite connectivity and schema migrations.
//
// A single *DB is opened at startup and shared by every repository through
// its embedded *sql.DB. SQLite allows one writer, so the pool is capped at a
// single open connection and WAL mode is used to keep reads cheap.
//
//	db, err := database.Open(ctx, cfg.Database)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
//
// Migrations are plain SQL files named YYYYMMDD_HHMMSS_description.up.sql
// (with an optional matching .down.sql). They live in the top-level
// migrations package, which registers them with Register at init time.
package database
