// Package config loads and saves the application configuration from
// ~/.trappist/config.toml.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration.
type Config struct {
	// Store configuration
	Store StoreConfig `toml:"store"`

	// Backup configuration
	Backup BackupConfig `toml:"backup"`

	// Watch directory configuration
	Watch WatchConfig `toml:"watch"`

	// Application configuration
	App AppConfig `toml:"app"`
}

// StoreConfig contains document store settings.
type StoreConfig struct {
	Path        string `toml:"path"`         // Path to the SQLite store ("" = default)
	BusyTimeout string `toml:"busy_timeout"` // Lock wait (e.g., "5s")
	JournalMode string `toml:"journal_mode"` // SQLite journal mode
	Synchronous string `toml:"synchronous"`  // SQLite synchronous mode
}

// BackupConfig contains backup settings.
type BackupConfig struct {
	Dir     string `toml:"dir"`     // Backup directory ("" = <data dir>/backups)
	Encrypt bool   `toml:"encrypt"` // Encrypt backups with a password prompt
	Verify  bool   `toml:"verify"`  // Verify each backup after writing
}

// WatchConfig contains pack export watch settings.
type WatchConfig struct {
	Dir string `toml:"dir"` // Directory watched for pack export files
}

// AppConfig contains general application settings.
type AppConfig struct {
	DebugMode bool `toml:"debug_mode"` // Enable debug logging
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Store: StoreConfig{
			Path:        "",
			BusyTimeout: "5s",
			JournalMode: "WAL",
			Synchronous: "NORMAL",
		},
		Backup: BackupConfig{
			Dir:     "",
			Encrypt: false,
			Verify:  true,
		},
		Watch: WatchConfig{
			Dir: "",
		},
		App: AppConfig{
			DebugMode: false,
		},
	}
}

// DataDir returns the application data directory, creating it if
// needed.
func DataDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home directory: %w", err)
	}

	dataDir := filepath.Join(homeDir, ".trappist")
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return "", fmt.Errorf("create data directory: %w", err)
	}
	return dataDir, nil
}

// StorePath resolves the configured store path, defaulting to
// <data dir>/trappist.db.
func (c *Config) StorePath() (string, error) {
	if c.Store.Path != "" {
		return c.Store.Path, nil
	}
	dataDir, err := DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dataDir, "trappist.db"), nil
}

// BackupDir resolves the configured backup directory, defaulting to
// <data dir>/backups.
func (c *Config) BackupDir() (string, error) {
	if c.Backup.Dir != "" {
		return c.Backup.Dir, nil
	}
	dataDir, err := DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dataDir, "backups"), nil
}

func configPath() (string, error) {
	dataDir, err := DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dataDir, "config.toml"), nil
}

// Load loads the configuration from disk. Returns default config if
// the file doesn't exist.
func Load() (*Config, error) {
	path, err := configPath()
	if err != nil {
		return nil, err
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return DefaultConfig(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	return &config, nil
}

// Save saves the configuration to disk.
func (c *Config) Save() error {
	path, err := configPath()
	if err != nil {
		return err
	}

	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}

	return nil
}

// Validate validates the configuration values.
func (c *Config) Validate() error {
	if _, err := time.ParseDuration(c.Store.BusyTimeout); err != nil {
		return fmt.Errorf("invalid busy timeout %q: %w", c.Store.BusyTimeout, err)
	}

	switch c.Store.JournalMode {
	case "WAL", "DELETE", "TRUNCATE", "PERSIST", "MEMORY", "OFF":
	default:
		return fmt.Errorf("invalid journal mode %q", c.Store.JournalMode)
	}

	switch c.Store.Synchronous {
	case "OFF", "NORMAL", "FULL", "EXTRA":
	default:
		return fmt.Errorf("invalid synchronous mode %q", c.Store.Synchronous)
	}

	return nil
}

// GetBusyTimeout returns the store busy timeout as a duration.
func (c *Config) GetBusyTimeout() (time.Duration, error) {
	return time.ParseDuration(c.Store.BusyTimeout)
}
