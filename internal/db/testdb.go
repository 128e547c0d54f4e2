package db

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rogerio-castellano/stock-ledger/internal/config"
)

// NewTestDB creates a fresh file-backed SQLite database with the schema
// applied. A file is used instead of :memory: so that concurrent
// connections from the pool see the same data.
func NewTestDB(t *testing.T) *DB {
	t.Helper()

	cfg := config.DatabaseConfig{
		Driver:  config.DriverSQLite,
		URL:     filepath.Join(t.TempDir(), "test.db"),
		Timeout: 3 * time.Second,
	}
	d, err := Connect(context.Background(), cfg)
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}

	if err := Migrate(context.Background(), d); err != nil {
		d.Close()
		t.Fatalf("creating test database schema: %v", err)
	}

	t.Cleanup(func() { d.Close() })

	return d
}

// NewPostgresTestDB connects to the database named by STOCK_TEST_DATABASE_URL,
// applies the schema and empties every table. The test is skipped when the
// variable is unset.
func NewPostgresTestDB(t *testing.T) *DB {
	t.Helper()

	url := os.Getenv("STOCK_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("STOCK_TEST_DATABASE_URL not set")
	}

	d, err := Connect(context.Background(), config.DatabaseConfig{Driver: config.DriverPostgres, URL: url, Timeout: 3 * time.Second})
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	t.Cleanup(func() { d.Close() })

	if err := Migrate(context.Background(), d); err != nil {
		t.Fatalf("creating test database schema: %v", err)
	}
	if _, err := d.ExecContext(context.Background(), `TRUNCATE stock_movements, products, users RESTART IDENTITY CASCADE`); err != nil {
		t.Fatalf("clearing test database: %v", err)
	}
	return d
}
