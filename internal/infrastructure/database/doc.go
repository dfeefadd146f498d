// Package database provides SQLite connectivity for CityWalk Core.
//
// It owns connection setup (WAL, busy timeout, foreign keys, single writer),
// embedded schema migrations, and a small transaction helper used by the
// domain repositories.
//
//	db, err := database.Open(database.Config{Path: cfg.Database.Path, WALMode: true, BusyTimeout: 5})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// Migrations are additive: new columns must be nullable or carry a default,
// and every .up.sql ships with a .down.sql.
package database
