package storage

import (
	"path/filepath"
	"testing"
)

func TestMigrationsUp(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.db")

	mgr, err := NewMigrationManager(path)
	if err != nil {
		t.Fatalf("NewMigrationManager() error = %v", err)
	}
	defer mgr.Close()

	if err := mgr.Up(); err != nil {
		t.Fatalf("Up() error = %v", err)
	}

	version, dirty, err := mgr.Version()
	if err != nil {
		t.Fatalf("Version() error = %v", err)
	}
	if dirty {
		t.Error("migration state is dirty after Up()")
	}
	if version == 0 {
		t.Error("version = 0 after Up(), want > 0")
	}
}

func TestMigrationsUpIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.db")

	mgr, err := NewMigrationManager(path)
	if err != nil {
		t.Fatalf("NewMigrationManager() error = %v", err)
	}
	defer mgr.Close()

	if err := mgr.Up(); err != nil {
		t.Fatalf("first Up() error = %v", err)
	}
	// golang-migrate reports ErrNoChange internally; Up wraps it away.
	if err := mgr.Up(); err != nil {
		t.Fatalf("second Up() error = %v", err)
	}
}

func TestMigrationsStepsDown(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.db")

	mgr, err := NewMigrationManager(path)
	if err != nil {
		t.Fatalf("NewMigrationManager() error = %v", err)
	}
	defer mgr.Close()

	if err := mgr.Up(); err != nil {
		t.Fatalf("Up() error = %v", err)
	}
	before, _, err := mgr.Version()
	if err != nil {
		t.Fatalf("Version() error = %v", err)
	}

	if err := mgr.Steps(-1); err != nil {
		t.Fatalf("Steps(-1) error = %v", err)
	}
	after, dirty, err := mgr.Version()
	if err != nil {
		t.Fatalf("Version() error = %v", err)
	}
	if dirty {
		t.Error("migration state is dirty after Steps(-1)")
	}
	if after >= before {
		t.Errorf("version after down = %d, want < %d", after, before)
	}
}
