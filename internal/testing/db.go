// Package testing provides testing utilities and helpers for the backtest service.
package testing

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/kevinw99/DCA-Backtest-Tool-sub008/internal/database"
	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"
)

// NewTestDB creates a migrated SQLite database in a temporary file.
// Returns the database instance and a cleanup function that closes the connection.
// The cleanup function is idempotent and can be called multiple times safely.
//
// Supported schema names:
//   - "market" - applies market_schema.sql (daily_prices, symbol_betas)
//   - "results" - applies results_schema.sql (backtest_runs)
func NewTestDB(t *testing.T, name string) (*database.DB, func()) {
	t.Helper()

	// Temporary files keep WAL mode and give every test its own database
	tmpPath := filepath.Join(t.TempDir(), fmt.Sprintf("test_%s.db", name))

	db, err := database.New(database.Config{
		Path:    tmpPath,
		Profile: database.ProfileStandard,
		Name:    name,
	})
	if err != nil {
		t.Fatalf("Failed to create test database %s: %v", name, err)
	}

	if err := db.Migrate(); err != nil {
		_ = db.Close()
		t.Fatalf("Failed to migrate test database %s: %v", name, err)
	}

	closed := false
	return db, func() {
		if closed {
			return
		}
		closed = true
		if err := db.Close(); err != nil {
			t.Logf("Warning: Failed to close test database %s: %v", name, err)
		}
	}
}

// NewMemoryDB opens an in-memory database with the cgo sqlite3 driver and
// applies schema. Repositories accept a plain *sql.DB, so this exercises
// them against a second SQLite implementation.
func NewMemoryDB(t *testing.T, schema string) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open in-memory database: %v", err)
	}
	// Each pooled connection would otherwise see its own empty database
	db.SetMaxOpenConns(1)

	if schema != "" {
		if _, err := db.Exec(schema); err != nil {
			_ = db.Close()
			t.Fatalf("Failed to execute schema: %v", err)
		}
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// LoadSchema returns the contents of one of the database package's schema
// files, for use with NewMemoryDB.
func LoadSchema(t *testing.T, file string) string {
	t.Helper()

	path := filepath.Join(moduleRoot(t), "internal", "database", "schemas", file)
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read schema file %s: %v", path, err)
	}
	return string(content)
}

func moduleRoot(t *testing.T) string {
	t.Helper()

	dir, err := os.Getwd()
	if err != nil {
		t.Fatalf("Failed to get working directory: %v", err)
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatalf("go.mod not found above working directory")
		}
		dir = parent
	}
}
