package db

import (
	"path/filepath"
	"testing"
)

func TestNew_InMemory(t *testing.T) {
	database, err := New(Memory, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer database.Close()

	tables := []string{"runs", "_migrations"}
	for _, table := range tables {
		var name string
		err := database.Conn().QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %s not found: %v", table, err)
		}
	}
}

func TestNew_InMemoryDatabasesAreIsolated(t *testing.T) {
	db1, err := New(Memory, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer db1.Close()

	db2, err := New(Memory, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer db2.Close()

	_, err = db1.Conn().Exec(`
		INSERT INTO runs (id, video_url, state, status, created_at, updated_at)
		VALUES ('r1', 'u', 'start', 'running', '2025-01-01', '2025-01-01')
	`)
	if err != nil {
		t.Fatalf("insert run error = %v", err)
	}

	var count int
	if err := db2.Conn().QueryRow("SELECT COUNT(*) FROM runs").Scan(&count); err != nil {
		t.Fatalf("count error = %v", err)
	}
	if count != 0 {
		t.Errorf("second database sees %d runs, want 0", count)
	}
}

func TestNew_FileWALEnabled(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "runs.db")

	database, err := New(dbPath, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer database.Close()

	var journalMode string
	err = database.Conn().QueryRow("PRAGMA journal_mode").Scan(&journalMode)
	if err != nil {
		t.Fatalf("PRAGMA journal_mode error = %v", err)
	}

	if journalMode != "wal" {
		t.Errorf("journal_mode = %s, want wal", journalMode)
	}
}

func TestNew_MigrationsIdempotent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "runs.db")

	db1, err := New(dbPath, nil)
	if err != nil {
		t.Fatalf("first New() error = %v", err)
	}
	db1.Close()

	db2, err := New(dbPath, nil)
	if err != nil {
		t.Fatalf("second New() error = %v", err)
	}
	defer db2.Close()

	var count int
	err = db2.Conn().QueryRow("SELECT COUNT(*) FROM _migrations").Scan(&count)
	if err != nil {
		t.Fatalf("count migrations error = %v", err)
	}

	if count != 1 {
		t.Errorf("migration count = %d, want 1", count)
	}
}
