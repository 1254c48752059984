package storage

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestEncryptDecryptData(t *testing.T) {
	tests := []struct {
		name      string
		plaintext string
		password  string
	}{
		{
			name:      "simple text",
			plaintext: "Hello, World!",
			password:  "test-password",
		},
		{
			name:      "empty string",
			plaintext: "",
			password:  "test-password",
		},
		{
			name:      "long text",
			plaintext: string(make([]byte, 10000)),
			password:  "secure-password-123",
		},
		{
			name:      "special characters",
			plaintext: "Niv-Mizzet, 中文, émojis 🂡",
			password:  "pássword-with-spëcial",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultEncryptionConfig(tt.password)

			encrypted, err := EncryptData([]byte(tt.plaintext), config)
			if err != nil {
				t.Fatalf("EncryptData() error = %v", err)
			}
			if bytes.Equal(encrypted, []byte(tt.plaintext)) {
				t.Error("encrypted data should differ from plaintext")
			}

			decrypted, err := DecryptData(encrypted, config)
			if err != nil {
				t.Fatalf("DecryptData() error = %v", err)
			}
			if string(decrypted) != tt.plaintext {
				t.Errorf("decrypted = %q, want %q", decrypted, tt.plaintext)
			}
		})
	}
}

func TestDecryptDataWrongPassword(t *testing.T) {
	encrypted, err := EncryptData([]byte("secret"), DefaultEncryptionConfig("right"))
	if err != nil {
		t.Fatalf("EncryptData() error = %v", err)
	}

	if _, err := DecryptData(encrypted, DefaultEncryptionConfig("wrong")); err == nil {
		t.Error("DecryptData() with the wrong password should fail")
	}
}

func TestDecryptDataTruncated(t *testing.T) {
	encrypted, err := EncryptData([]byte("secret"), DefaultEncryptionConfig("pw"))
	if err != nil {
		t.Fatalf("EncryptData() error = %v", err)
	}

	if _, err := DecryptData(encrypted[:8], DefaultEncryptionConfig("pw")); err == nil {
		t.Error("DecryptData() on truncated input should fail")
	}
}

func TestEncryptDecryptFile(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "plain.db")
	encrypted := filepath.Join(dir, "plain.db.enc")
	restored := filepath.Join(dir, "restored.db")

	content := []byte("not really a database, but close enough")
	if err := os.WriteFile(source, content, 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}

	config := DefaultEncryptionConfig("file-password")
	if err := EncryptFile(source, encrypted, config); err != nil {
		t.Fatalf("EncryptFile() error = %v", err)
	}
	if err := DecryptFile(encrypted, restored, config); err != nil {
		t.Fatalf("DecryptFile() error = %v", err)
	}

	got, err := os.ReadFile(restored)
	if err != nil {
		t.Fatalf("read restored: %v", err)
	}
	if !bytes.Equal(got, content) {
		t.Error("restored file content does not match original")
	}
}
