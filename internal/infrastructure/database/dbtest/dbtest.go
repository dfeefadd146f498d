// Package dbtest opens a migrated in-memory database for repository and
// handler tests.
package dbtest

import (
	"context"
	"database/sql"
	"testing"

	"github.com/nerrad567/citywalk-core/internal/infrastructure/database"
	_ "github.com/nerrad567/citywalk-core/migrations" // registers the schema
)

// Open returns an in-memory database with every migration applied.
// The database is closed when the test finishes.
func Open(t testing.TB) *sql.DB {
	t.Helper()

	db, err := database.Open(database.Config{Path: database.MemoryPath, BusyTimeout: 1})
	if err != nil {
		t.Fatalf("dbtest: open: %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup

	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("dbtest: migrate: %v", err)
	}
	return db.DB
}
