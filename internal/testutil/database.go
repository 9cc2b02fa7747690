package testutil

import (
	"testing"

	"zipup/internal/database"
)

// NewTestDatabase returns a migrated in-memory upload history that is closed
// when the test completes.
func NewTestDatabase(t *testing.T) *database.SQLiteDatabase {
	t.Helper()

	db, err := database.NewSQLiteDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() {
		db.Close()
	})
	return db
}
