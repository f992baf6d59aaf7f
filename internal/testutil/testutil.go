// Package testutil provides testing utilities for integration tests.
package testutil

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"github.com/cachegrab/cachegrab/internal/database"
)

// TestDB wraps a test database connection.
type TestDB struct {
	DB     *database.DB
	Conn   *sql.DB
	Path   string
	Logger zerolog.Logger
}

// NewTestDB creates a migrated database in a temp directory.
// The directory is removed by the test framework.
func NewTestDB(t *testing.T) *TestDB {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")

	db, err := database.Open(context.Background(), dbPath)
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}

	return &TestDB{
		DB:     db,
		Conn:   db.Conn(),
		Path:   dbPath,
		Logger: NewTestLogger(t),
	}
}

// Close closes the database.
func (tdb *TestDB) Close() {
	if tdb.DB != nil {
		tdb.DB.Close()
	}
}

// NewTestLogger creates a test logger that outputs to t.Log.
func NewTestLogger(t *testing.T) zerolog.Logger {
	t.Helper()
	return zerolog.New(zerolog.NewTestWriter(t)).Level(zerolog.DebugLevel)
}
