package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
)

func TestOpenInMemory(t *testing.T) {
	db, err := Open(DefaultConfig(":memory:"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		t.Errorf("Ping() error = %v", err)
	}
	if db.Path() != ":memory:" {
		t.Errorf("Path() = %q, want %q", db.Path(), ":memory:")
	}
}

func TestOpenInMemorySingleConnection(t *testing.T) {
	db, err := Open(DefaultConfig(":memory:"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer db.Close()

	// A table created on one connection must be visible on every later
	// query. With a pool larger than one, each in-memory connection is
	// a separate database and this fails.
	ctx := context.Background()
	if _, err := db.Conn().ExecContext(ctx, "CREATE TABLE t (id INTEGER PRIMARY KEY)"); err != nil {
		t.Fatalf("CREATE TABLE error = %v", err)
	}
	for i := 0; i < 10; i++ {
		var count int
		if err := db.Conn().QueryRowContext(ctx, "SELECT COUNT(*) FROM t").Scan(&count); err != nil {
			t.Fatalf("query %d: %v", i, err)
		}
	}
}

func TestOpenCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "store.db")
	config := DefaultConfig(path)

	db, err := Open(config)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		t.Errorf("Ping() error = %v", err)
	}
}

func TestOpenNilConfig(t *testing.T) {
	if _, err := Open(nil); err == nil {
		t.Error("Open(nil) should return an error")
	}
}

func TestOpenAutoMigrate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.db")
	config := DefaultConfig(path)
	config.AutoMigrate = true

	db, err := Open(config)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer db.Close()

	// The migrated schema must include the core tables.
	for _, table := range []string{"cards", "packs", "pack_revisions", "tags"} {
		var name string
		err := db.Conn().QueryRow(
			"SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?", table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %q missing after migration: %v", table, err)
		}
	}
}

func TestCloseIsIdempotentOnNilConn(t *testing.T) {
	db := &DB{}
	if err := db.Close(); err != nil {
		t.Errorf("Close() on zero DB error = %v", err)
	}
}

func TestWithTransactionCommit(t *testing.T) {
	db := openTestDB(t)

	err := db.WithTransaction(context.Background(), func(tx *sql.Tx) error {
		_, err := tx.Exec("INSERT INTO t (id) VALUES (1)")
		return err
	})
	if err != nil {
		t.Fatalf("WithTransaction() error = %v", err)
	}

	var count int
	if err := db.Conn().QueryRow("SELECT COUNT(*) FROM t").Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Errorf("count = %d, want 1", count)
	}
}

func TestWithTransactionRollback(t *testing.T) {
	db := openTestDB(t)

	wantErr := errors.New("boom")
	err := db.WithTransaction(context.Background(), func(tx *sql.Tx) error {
		if _, err := tx.Exec("INSERT INTO t (id) VALUES (1)"); err != nil {
			return err
		}
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("WithTransaction() error = %v, want %v", err, wantErr)
	}

	var count int
	if err := db.Conn().QueryRow("SELECT COUNT(*) FROM t").Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Errorf("count = %d, want 0 after rollback", count)
	}
}

func TestEstimateStorageUsage(t *testing.T) {
	db := openTestDB(t)

	size, err := db.EstimateStorageUsage(context.Background())
	if err != nil {
		t.Fatalf("EstimateStorageUsage() error = %v", err)
	}
	if size <= 0 {
		t.Errorf("size = %d, want > 0", size)
	}

	for i := 0; i < 500; i++ {
		if _, err := db.Conn().Exec("INSERT INTO t (id, payload) VALUES (?, ?)",
			i, fmt.Sprintf("%0512d", i)); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}

	grown, err := db.EstimateStorageUsage(context.Background())
	if err != nil {
		t.Fatalf("EstimateStorageUsage() error = %v", err)
	}
	if grown <= size {
		t.Errorf("size after inserts = %d, want > %d", grown, size)
	}
}

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(DefaultConfig(":memory:"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if _, err := db.Conn().Exec("CREATE TABLE t (id INTEGER PRIMARY KEY, payload TEXT)"); err != nil {
		t.Fatalf("CREATE TABLE error = %v", err)
	}
	return db
}
