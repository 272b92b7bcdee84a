// Package database opens the SQLite file that stores the show library and
// the playback log, and applies its schema migrations.
//
// Migrations live in the top-level migrations package as
// YYYYMMDD_HHMMSS_name.up.sql files with an optional .down.sql partner.
// Applied versions are recorded in schema_migrations.
//
//	db, err := database.Open(database.FromConfig(cfg.Database))
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
//
// Path ":memory:" (MemoryPath) gives tests a private database.
package database
