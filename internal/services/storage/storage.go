// Package storage gives the loader transparent access to the data directory,
// whose workbooks may be age-encrypted at rest.
package storage

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"filippo.io/age"
)

const (
	// ageHeader is the prefix of age-encrypted files
	ageHeader = "age-encryption.org"

	// markerFile indicates encryption is enabled
	markerFile = ".encrypted"

	// verifyFile is used to validate the password
	verifyFile = ".encryption-verify"

	// verifyMagic is the expected content in the verify file
	verifyMagic = `{"magic":"cmgvisor-encryption-verify","version":1}`

	minPasswordLen = 8
)

var (
	// ErrLocked is returned when reading an encrypted file before Unlock
	ErrLocked = errors.New("file is encrypted but storage is locked")

	// ErrIncorrectPassword is returned when the verify file does not decrypt
	ErrIncorrectPassword = errors.New("incorrect password")
)

// workbookExts are the files EnableEncryption protects
var workbookExts = map[string]bool{
	".xlsx": true,
	".xlsm": true,
	".xls":  true,
}

// Storage reads and writes files under a data directory
type Storage struct {
	baseDir   string
	encrypted bool
	identity  *age.ScryptIdentity
	recipient *age.ScryptRecipient
	mu        sync.RWMutex
}

// New opens the data directory, detecting whether it is encrypted
func New(baseDir string) (*Storage, error) {
	info, err := os.Stat(baseDir)
	if err != nil {
		return nil, fmt.Errorf("data directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("data directory %s is not a directory", baseDir)
	}

	s := &Storage{baseDir: baseDir}
	if _, err := os.Stat(filepath.Join(baseDir, markerFile)); err == nil {
		s.encrypted = true
	}
	return s, nil
}

// BaseDir returns the data directory
func (s *Storage) BaseDir() string {
	return s.baseDir
}

// Path resolves name against the data directory; absolute names are kept
func (s *Storage) Path(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(s.baseDir, name)
}

// IsEncrypted returns true if the data directory is encrypted
func (s *Storage) IsEncrypted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.encrypted
}

// IsUnlocked returns true if files can be read
func (s *Storage) IsUnlocked() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !s.encrypted || s.identity != nil
}

// Unlock verifies password and keeps the key in memory
func (s *Storage) Unlock(password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.encrypted {
		return nil
	}

	identity, err := s.verifyPassword(password)
	if err != nil {
		return err
	}

	s.identity = identity
	s.recipient, _ = age.NewScryptRecipient(password)
	return nil
}

// Lock clears the key from memory
func (s *Storage) Lock() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.identity = nil
	s.recipient = nil
}

// ReadFile reads name, decrypting it when it is age-encrypted
func (s *Storage) ReadFile(name string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.Path(name))
	if err != nil {
		return nil, err
	}

	if isAgeEncrypted(data) {
		if s.identity == nil {
			return nil, ErrLocked
		}
		return decryptData(data, s.identity)
	}
	return data, nil
}

// OpenFile returns a reader over the decrypted content of name
func (s *Storage) OpenFile(name string) (io.ReadCloser, error) {
	data, err := s.ReadFile(name)
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// WriteFile writes name atomically, encrypting it when encryption is on
func (s *Storage) WriteFile(name string, data []byte, perm os.FileMode) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	path := s.Path(name)
	if !s.shouldSkipEncryption(path) && s.encrypted {
		if s.recipient == nil {
			return ErrLocked
		}
		enc, err := encryptData(data, s.recipient)
		if err != nil {
			return fmt.Errorf("failed to encrypt: %w", err)
		}
		data = enc
	}
	return atomicWrite(path, data, perm)
}

// Stat returns file info for name
func (s *Storage) Stat(name string) (os.FileInfo, error) {
	return os.Stat(s.Path(name))
}

// Workbooks lists workbook files in the data directory, sorted by name
func (s *Storage) Workbooks() ([]string, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), "~$") {
			continue
		}
		if workbookExts[strings.ToLower(filepath.Ext(e.Name()))] {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

// atomicWrite writes data to a temp file and renames it into place
func atomicWrite(path string, data []byte, perm os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, perm); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}

// shouldSkipEncryption returns true for bookkeeping and cache files
func (s *Storage) shouldSkipEncryption(path string) bool {
	base := filepath.Base(path)
	if base == markerFile || base == verifyFile {
		return true
	}
	return strings.Contains(path, "/cache/") || strings.Contains(path, `\cache\`)
}

func isAgeEncrypted(data []byte) bool {
	return len(data) > len(ageHeader) && string(data[:len(ageHeader)]) == ageHeader
}
