package config

import (
	"path/filepath"
	"testing"
)

func TestDefaultConfigValidates(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Errorf("Expected default config to validate, got %v", err)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	for _, tc := range []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad busy timeout", func(c *Config) { c.Store.BusyTimeout = "soon" }},
		{"bad journal mode", func(c *Config) { c.Store.JournalMode = "SCROLL" }},
		{"bad synchronous mode", func(c *Config) { c.Store.Synchronous = "MAYBE" }},
	} {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Expected validation to fail")
			}
		})
	}
}

func TestLoadReturnsDefaultsWhenMissing(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Store.JournalMode != "WAL" {
		t.Errorf("Expected default journal mode WAL, got %q", cfg.Store.JournalMode)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	cfg := DefaultConfig()
	cfg.Store.Path = "/tmp/custom.db"
	cfg.Watch.Dir = "/tmp/exports"
	cfg.App.DebugMode = true
	if err := cfg.Save(); err != nil {
		t.Fatalf("Failed to save config: %v", err)
	}

	loaded, err := Load()
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if loaded.Store.Path != "/tmp/custom.db" {
		t.Errorf("Expected store path to round-trip, got %q", loaded.Store.Path)
	}
	if loaded.Watch.Dir != "/tmp/exports" {
		t.Errorf("Expected watch dir to round-trip, got %q", loaded.Watch.Dir)
	}
	if !loaded.App.DebugMode {
		t.Error("Expected debug mode to round-trip")
	}
}

func TestStorePathDefaultsUnderDataDir(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	path, err := DefaultConfig().StorePath()
	if err != nil {
		t.Fatalf("Failed to resolve store path: %v", err)
	}
	want := filepath.Join(home, ".trappist", "trappist.db")
	if path != want {
		t.Errorf("Expected %q, got %q", want, path)
	}
}
