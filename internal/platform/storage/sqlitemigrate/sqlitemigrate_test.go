package sqlitemigrate

import (
	"database/sql"
	"path/filepath"
	"testing"
	"testing/fstest"

	_ "modernc.org/sqlite"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })
	return sqlDB
}

func TestApplyMigrations(t *testing.T) {
	migrations := fstest.MapFS{
		"0001_create.sql": &fstest.MapFile{Data: []byte(`CREATE TABLE widgets (id TEXT PRIMARY KEY);`)},
		"0002_index.sql":  &fstest.MapFile{Data: []byte(`CREATE INDEX idx_widgets_id ON widgets (id);`)},
	}

	sqlDB := openTestDB(t)
	if err := ApplyMigrations(sqlDB, migrations); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}

	// Rerun must be a no-op.
	if err := ApplyMigrations(sqlDB, migrations); err != nil {
		t.Fatalf("reapply migrations: %v", err)
	}

	var count int
	if err := sqlDB.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count); err != nil {
		t.Fatalf("count migrations: %v", err)
	}
	if count != 2 {
		t.Errorf("expected 2 recorded migrations, got %d", count)
	}

	if _, err := sqlDB.Exec("INSERT INTO widgets (id) VALUES ('w1')"); err != nil {
		t.Errorf("expected widgets table to exist: %v", err)
	}
}

func TestApplyMigrationsBadSQL(t *testing.T) {
	migrations := fstest.MapFS{
		"0001_broken.sql": &fstest.MapFile{Data: []byte(`CREATE TABLE (;`)},
	}

	sqlDB := openTestDB(t)
	if err := ApplyMigrations(sqlDB, migrations); err == nil {
		t.Fatal("expected error for malformed migration")
	}
}

func TestApplyMigrationsNilDB(t *testing.T) {
	if err := ApplyMigrations(nil, fstest.MapFS{}); err == nil {
		t.Fatal("expected error for nil db")
	}
}
