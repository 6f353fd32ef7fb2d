package testutil

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/DuongD0/multimodal-rag/internal/database"
)

// OpenDB opens a migrated sqlite database in a test temp directory and
// closes it when the test finishes.
func OpenDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrating test database: %v", err)
	}
	return db
}
