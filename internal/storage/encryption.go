package storage

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"io"
	"os"

	"golang.org/x/crypto/argon2"
)

const (
	// encryptionMagicHeader identifies encrypted backup files.
	encryptionMagicHeader = "TRPENC1\x00"

	// Argon2id parameters (RFC 9106 recommendations).
	argon2Time    = 1
	argon2Memory  = 64 * 1024
	argon2Threads = 4
	argon2KeyLen  = 32

	saltLength = 32
)

// EncryptionConfig holds parameters for encryption operations.
type EncryptionConfig struct {
	Password      string
	Argon2Time    uint32
	Argon2Memory  uint32
	Argon2Threads uint8
}

// DefaultEncryptionConfig returns an encryption config with secure
// defaults for the given password.
func DefaultEncryptionConfig(password string) *EncryptionConfig {
	return &EncryptionConfig{
		Password:      password,
		Argon2Time:    argon2Time,
		Argon2Memory:  argon2Memory,
		Argon2Threads: argon2Threads,
	}
}

func deriveKey(password string, salt []byte, config *EncryptionConfig) []byte {
	return argon2.IDKey(
		[]byte(password),
		salt,
		config.Argon2Time,
		config.Argon2Memory,
		config.Argon2Threads,
		argon2KeyLen,
	)
}

// EncryptData encrypts plaintext with AES-256-GCM under a key derived
// from the password. Output layout: salt || nonce || ciphertext.
func EncryptData(plaintext []byte, config *EncryptionConfig) ([]byte, error) {
	if config == nil || config.Password == "" {
		return nil, fmt.Errorf("encryption config with password required")
	}

	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}

	block, err := aes.NewCipher(deriveKey(config.Password, salt, config))
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	ciphertext := gcm.Seal(nil, nonce, plaintext, nil)

	result := make([]byte, 0, len(salt)+len(nonce)+len(ciphertext))
	result = append(result, salt...)
	result = append(result, nonce...)
	result = append(result, ciphertext...)
	return result, nil
}

// DecryptData reverses EncryptData.
func DecryptData(encrypted []byte, config *EncryptionConfig) ([]byte, error) {
	if config == nil || config.Password == "" {
		return nil, fmt.Errorf("encryption config with password required")
	}

	// salt + 12-byte nonce + 16-byte auth tag minimum
	if len(encrypted) < saltLength+12+16 {
		return nil, fmt.Errorf("encrypted data too short")
	}

	salt := encrypted[:saltLength]
	rest := encrypted[saltLength:]

	block, err := aes.NewCipher(deriveKey(config.Password, salt, config))
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	if len(rest) < gcm.NonceSize() {
		return nil, fmt.Errorf("encrypted data too short for nonce")
	}
	nonce, ciphertext := rest[:gcm.NonceSize()], rest[gcm.NonceSize():]

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("decryption failed (wrong password or corrupted data): %w", err)
	}
	return plaintext, nil
}

// EncryptFile encrypts sourcePath into destPath with a magic header for
// identification.
func EncryptFile(sourcePath, destPath string, config *EncryptionConfig) error {
	plaintext, err := os.ReadFile(sourcePath)
	if err != nil {
		return fmt.Errorf("failed to read source file: %w", err)
	}

	encrypted, err := EncryptData(plaintext, config)
	if err != nil {
		return fmt.Errorf("encryption failed: %w", err)
	}

	destFile, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("failed to create destination file: %w", err)
	}
	defer func() { _ = destFile.Close() }()

	if _, err := destFile.Write([]byte(encryptionMagicHeader)); err != nil {
		return fmt.Errorf("failed to write magic header: %w", err)
	}
	if _, err := destFile.Write(encrypted); err != nil {
		return fmt.Errorf("failed to write encrypted data: %w", err)
	}
	return nil
}

// DecryptFile decrypts a file produced by EncryptFile.
func DecryptFile(sourcePath, destPath string, config *EncryptionConfig) error {
	sourceFile, err := os.Open(sourcePath)
	if err != nil {
		return fmt.Errorf("failed to open encrypted file: %w", err)
	}
	defer func() { _ = sourceFile.Close() }()

	header := make([]byte, len(encryptionMagicHeader))
	if _, err := io.ReadFull(sourceFile, header); err != nil {
		return fmt.Errorf("failed to read magic header: %w", err)
	}
	if !bytes.Equal(header, []byte(encryptionMagicHeader)) {
		return fmt.Errorf("not an encrypted backup file")
	}

	encrypted, err := io.ReadAll(sourceFile)
	if err != nil {
		return fmt.Errorf("failed to read encrypted data: %w", err)
	}

	plaintext, err := DecryptData(encrypted, config)
	if err != nil {
		return err
	}

	if err := os.WriteFile(destPath, plaintext, 0o600); err != nil {
		return fmt.Errorf("failed to write decrypted file: %w", err)
	}
	return nil
}
