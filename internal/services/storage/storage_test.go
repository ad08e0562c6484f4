package storage

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

const testPassword = "testpassword123"

func newStore(t *testing.T) (*Storage, string) {
	t.Helper()
	dir := t.TempDir()
	store, err := New(dir)
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}
	return store, dir
}

func TestNewRequiresDirectory(t *testing.T) {
	if _, err := New(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("Expected error for a missing data directory")
	}
}

func TestEncryptDecryptRoundtrip(t *testing.T) {
	store, dir := newStore(t)

	original := []byte("PK\x03\x04 pretend workbook bytes")
	if err := store.WriteFile("Fuente.xlsx", original, 0644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}

	read, err := store.ReadFile("Fuente.xlsx")
	if err != nil {
		t.Fatalf("Failed to read file: %v", err)
	}
	if string(read) != string(original) {
		t.Errorf("Content mismatch before encryption")
	}

	if err := store.EnableEncryption(testPassword); err != nil {
		t.Fatalf("Failed to enable encryption: %v", err)
	}
	if !store.IsEncrypted() || !store.IsUnlocked() {
		t.Error("Expected an encrypted, unlocked store")
	}

	rawData, _ := os.ReadFile(filepath.Join(dir, "Fuente.xlsx"))
	if !isAgeEncrypted(rawData) {
		t.Error("Workbook should be encrypted on disk")
	}

	store.Lock()
	if _, err := store.ReadFile("Fuente.xlsx"); !errors.Is(err, ErrLocked) {
		t.Errorf("ReadFile while locked: err = %v, want ErrLocked", err)
	}

	if err := store.Unlock(testPassword); err != nil {
		t.Fatalf("Failed to unlock: %v", err)
	}
	read, err = store.ReadFile(filepath.Join(dir, "Fuente.xlsx"))
	if err != nil {
		t.Fatalf("Failed to read after unlock: %v", err)
	}
	if string(read) != string(original) {
		t.Errorf("Content mismatch after unlock")
	}

	if err := store.DisableEncryption(testPassword); err != nil {
		t.Fatalf("Failed to disable encryption: %v", err)
	}
	if store.IsEncrypted() {
		t.Error("Expected IsEncrypted() to return false after disable")
	}
	rawData, _ = os.ReadFile(filepath.Join(dir, "Fuente.xlsx"))
	if string(rawData) != string(original) {
		t.Errorf("Raw content mismatch after decryption")
	}
}

func TestReopenDetectsEncryption(t *testing.T) {
	store, dir := newStore(t)
	if err := store.EnableEncryption(testPassword); err != nil {
		t.Fatalf("Failed to enable encryption: %v", err)
	}

	reopened, err := New(dir)
	if err != nil {
		t.Fatalf("Failed to reopen: %v", err)
	}
	if !reopened.IsEncrypted() || reopened.IsUnlocked() {
		t.Error("Reopened store should be encrypted and locked")
	}
}

func TestWrongPassword(t *testing.T) {
	store, _ := newStore(t)
	if err := store.EnableEncryption("correctpassword"); err != nil {
		t.Fatalf("Failed to enable encryption: %v", err)
	}
	store.Lock()

	if err := store.Unlock("wrongpassword"); !errors.Is(err, ErrIncorrectPassword) {
		t.Errorf("Unlock: err = %v, want ErrIncorrectPassword", err)
	}
	if err := store.DisableEncryption("wrongpassword"); !errors.Is(err, ErrIncorrectPassword) {
		t.Errorf("DisableEncryption: err = %v, want ErrIncorrectPassword", err)
	}
}

func TestEncryptionStateErrors(t *testing.T) {
	store, _ := newStore(t)

	if err := store.EnableEncryption("short"); !errors.Is(err, ErrWeakPassword) {
		t.Errorf("short password: err = %v, want ErrWeakPassword", err)
	}
	if err := store.DisableEncryption(testPassword); !errors.Is(err, ErrNotEncrypted) {
		t.Errorf("disable on plain dir: err = %v, want ErrNotEncrypted", err)
	}
	if err := store.EnableEncryption(testPassword); err != nil {
		t.Fatalf("Failed to enable encryption: %v", err)
	}
	if err := store.EnableEncryption(testPassword); !errors.Is(err, ErrAlreadyEncrypted) {
		t.Errorf("second enable: err = %v, want ErrAlreadyEncrypted", err)
	}
}

func TestOnlyWorkbooksEncrypted(t *testing.T) {
	store, dir := newStore(t)

	notes := []byte("operator notes")
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), notes, 0644); err != nil {
		t.Fatal(err)
	}
	cacheDir := filepath.Join(dir, "cache")
	if err := os.MkdirAll(cacheDir, 0755); err != nil {
		t.Fatal(err)
	}
	cached := []byte("cached export")
	if err := os.WriteFile(filepath.Join(cacheDir, "old.xlsx"), cached, 0644); err != nil {
		t.Fatal(err)
	}

	if err := store.EnableEncryption(testPassword); err != nil {
		t.Fatalf("Failed to enable encryption: %v", err)
	}

	raw, _ := os.ReadFile(filepath.Join(dir, "notes.txt"))
	if string(raw) != string(notes) {
		t.Error("Non-workbook file should be unchanged")
	}
	raw, _ = os.ReadFile(filepath.Join(cacheDir, "old.xlsx"))
	if string(raw) != string(cached) {
		t.Error("Cache file should not be encrypted")
	}
}

func TestNewFilesEncrypted(t *testing.T) {
	store, dir := newStore(t)
	if err := store.EnableEncryption(testPassword); err != nil {
		t.Fatalf("Failed to enable encryption: %v", err)
	}

	content := []byte("new workbook")
	if err := store.WriteFile("Nueva.xlsx", content, 0644); err != nil {
		t.Fatalf("Failed to write new file: %v", err)
	}
	rawData, _ := os.ReadFile(filepath.Join(dir, "Nueva.xlsx"))
	if !isAgeEncrypted(rawData) {
		t.Error("New file should be encrypted on disk")
	}

	store.Lock()
	if err := store.WriteFile("Otra.xlsx", content, 0644); !errors.Is(err, ErrLocked) {
		t.Errorf("WriteFile while locked: err = %v, want ErrLocked", err)
	}
}

func TestWorkbooks(t *testing.T) {
	store, dir := newStore(t)
	for _, name := range []string{"b.xlsx", "a.XLSX", "~$a.xlsx", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	got, err := store.Workbooks()
	if err != nil {
		t.Fatalf("Workbooks: %v", err)
	}
	if len(got) != 2 || got[0] != "a.XLSX" || got[1] != "b.xlsx" {
		t.Errorf("Workbooks = %v", got)
	}
}
