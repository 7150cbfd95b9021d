// Package testing holds shared test helpers.
package testing

import (
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/absenlab/absen/db"
)

// CreateTestDB creates an in-memory SQLite database with the full schema
// applied. Cleanup is registered on t.
func CreateTestDB(t *testing.T) *sql.DB {
	t.Helper()

	database, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("create test database: %v", err)
	}
	if _, err := database.Exec("PRAGMA foreign_keys = ON"); err != nil {
		t.Fatalf("enable foreign keys: %v", err)
	}
	if err := db.Migrate(database, nil); err != nil {
		t.Fatalf("migrate test database: %v", err)
	}

	t.Cleanup(func() { database.Close() })
	return database
}
