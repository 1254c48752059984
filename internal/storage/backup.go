package storage

import (
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// BackupManager handles store backup and restore operations.
type BackupManager struct {
	dbPath string
}

// NewBackupManager creates a backup manager for the given store path.
func NewBackupManager(dbPath string) *BackupManager {
	return &BackupManager{dbPath: dbPath}
}

// BackupConfig holds configuration for backup operations.
type BackupConfig struct {
	// BackupDir is where backups are written. Defaults to a "backups"
	// subdirectory next to the store.
	BackupDir string

	// BackupName names the backup file (without extension). Defaults to
	// a timestamp-based name.
	BackupName string

	// VerifyBackup re-opens the backup after creation to confirm it is
	// a valid SQLite database.
	VerifyBackup bool

	// Password, when set, encrypts the backup file at rest. Encrypted
	// backups carry the ".enc" suffix.
	Password string
}

// DefaultBackupConfig returns a BackupConfig with sensible defaults.
func DefaultBackupConfig() *BackupConfig {
	return &BackupConfig{VerifyBackup: true}
}

// BackupInfo describes one backup file.
type BackupInfo struct {
	Path      string
	Size      int64
	CreatedAt time.Time
	Encrypted bool
}

// Backup creates a backup of the store using VACUUM INTO, which is
// atomic and does not require exclusive locks.
func (bm *BackupManager) Backup(config *BackupConfig) (string, error) {
	if config == nil {
		config = DefaultBackupConfig()
	}

	backupDir := config.BackupDir
	if backupDir == "" {
		backupDir = filepath.Join(filepath.Dir(bm.dbPath), "backups")
	}
	if err := os.MkdirAll(backupDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create backup directory: %w", err)
	}

	backupName := config.BackupName
	if backupName == "" {
		backupName = fmt.Sprintf("backup_%s", time.Now().Format("20060102_150405"))
	}
	backupPath := filepath.Join(backupDir, backupName+".db")

	sourceDB, err := sql.Open("sqlite", bm.dbPath)
	if err != nil {
		return "", fmt.Errorf("failed to open source database: %w", err)
	}
	defer func() { _ = sourceDB.Close() }()

	if _, err := sourceDB.Exec(fmt.Sprintf("VACUUM INTO %q", backupPath)); err != nil {
		// VACUUM INTO needs SQLite 3.27+; fall back to a plain copy.
		if _, copyErr := bm.backupByCopy(backupPath); copyErr != nil {
			return "", copyErr
		}
	}

	if config.VerifyBackup {
		if err := bm.VerifyBackup(backupPath); err != nil {
			_ = os.Remove(backupPath)
			return "", fmt.Errorf("backup verification failed: %w", err)
		}
	}

	if config.Password != "" {
		encPath := backupPath + ".enc"
		if err := EncryptFile(backupPath, encPath, DefaultEncryptionConfig(config.Password)); err != nil {
			_ = os.Remove(encPath)
			return "", fmt.Errorf("failed to encrypt backup: %w", err)
		}
		if err := os.Remove(backupPath); err != nil {
			return "", fmt.Errorf("failed to remove plaintext backup: %w", err)
		}
		return encPath, nil
	}

	return backupPath, nil
}

func (bm *BackupManager) backupByCopy(backupPath string) (string, error) {
	sourceFile, err := os.Open(bm.dbPath)
	if err != nil {
		return "", fmt.Errorf("failed to open source database file: %w", err)
	}
	defer func() { _ = sourceFile.Close() }()

	destFile, err := os.Create(backupPath)
	if err != nil {
		return "", fmt.Errorf("failed to create backup file: %w", err)
	}
	defer func() { _ = destFile.Close() }()

	if _, err := io.Copy(destFile, sourceFile); err != nil {
		_ = os.Remove(backupPath)
		return "", fmt.Errorf("failed to copy database file: %w", err)
	}

	return backupPath, nil
}

// Restore replaces the current store with the contents of a backup.
// The caller must close every connection to the store first. Encrypted
// backups require the password used at backup time.
func (bm *BackupManager) Restore(backupPath, password string) error {
	if _, err := os.Stat(backupPath); os.IsNotExist(err) {
		return fmt.Errorf("backup file does not exist: %s", backupPath)
	}

	tempPath := bm.dbPath + ".restore.tmp"
	defer func() { _ = os.Remove(tempPath) }()

	if filepath.Ext(backupPath) == ".enc" {
		if password == "" {
			return fmt.Errorf("backup is encrypted; password required")
		}
		if err := DecryptFile(backupPath, tempPath, DefaultEncryptionConfig(password)); err != nil {
			return fmt.Errorf("failed to decrypt backup: %w", err)
		}
	} else {
		if err := copyFile(backupPath, tempPath); err != nil {
			return err
		}
	}

	if err := bm.VerifyBackup(tempPath); err != nil {
		return fmt.Errorf("restored database verification failed: %w", err)
	}

	// Keep the previous store aside rather than deleting it.
	if _, err := os.Stat(bm.dbPath); err == nil {
		oldPath := bm.dbPath + ".old." + time.Now().Format("20060102_150405")
		if err := os.Rename(bm.dbPath, oldPath); err != nil {
			return fmt.Errorf("failed to set aside current database: %w", err)
		}
	}

	if err := os.Rename(tempPath, bm.dbPath); err != nil {
		return fmt.Errorf("failed to replace database with restored backup: %w", err)
	}

	return nil
}

func copyFile(src, dst string) error {
	sourceFile, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open backup file: %w", err)
	}
	defer func() { _ = sourceFile.Close() }()

	destFile, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create temporary restore file: %w", err)
	}

	if _, err := io.Copy(destFile, sourceFile); err != nil {
		_ = destFile.Close()
		_ = os.Remove(dst)
		return fmt.Errorf("failed to copy backup file: %w", err)
	}

	return destFile.Close()
}

// VerifyBackup verifies that a backup file is a valid SQLite database.
func (bm *BackupManager) VerifyBackup(backupPath string) error {
	db, err := sql.Open("sqlite", backupPath)
	if err != nil {
		return fmt.Errorf("failed to open backup as database: %w", err)
	}
	defer func() { _ = db.Close() }()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to ping backup database: %w", err)
	}

	var version string
	if err := db.QueryRow("SELECT sqlite_version()").Scan(&version); err != nil {
		return fmt.Errorf("failed to query backup database: %w", err)
	}

	return nil
}

// ListBackups returns the backup files under backupDir, newest first.
func (bm *BackupManager) ListBackups(backupDir string) ([]BackupInfo, error) {
	if backupDir == "" {
		backupDir = filepath.Join(filepath.Dir(bm.dbPath), "backups")
	}

	if _, err := os.Stat(backupDir); os.IsNotExist(err) {
		return []BackupInfo{}, nil
	}

	entries, err := os.ReadDir(backupDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read backup directory: %w", err)
	}

	var backups []BackupInfo
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := filepath.Ext(entry.Name())
		if ext != ".db" && ext != ".enc" {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		backups = append(backups, BackupInfo{
			Path:      filepath.Join(backupDir, entry.Name()),
			Size:      info.Size(),
			CreatedAt: info.ModTime(),
			Encrypted: ext == ".enc",
		})
	}

	sort.Slice(backups, func(i, j int) bool {
		return backups[i].CreatedAt.After(backups[j].CreatedAt)
	})

	return backups, nil
}
