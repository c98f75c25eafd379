package database

import (
	"context"
	"path/filepath"
	"testing"
)

// OpenTestSQLite opens a migrated SQLite database in t.TempDir() and
// registers cleanup.  It backs the scenario tests of the repository,
// service and handler packages.
func OpenTestSQLite(t *testing.T) *DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "warp_test.sqlite")
	db, err := Open(context.Background(), "sqlite:"+path)
	if err != nil {
		t.Fatalf("open test sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := db.Migrate(); err != nil {
		t.Fatalf("run migrations: %v", err)
	}
	return db
}
