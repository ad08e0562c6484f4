package storage

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"filippo.io/age"
)

var (
	// ErrAlreadyEncrypted is returned by EnableEncryption on an encrypted directory
	ErrAlreadyEncrypted = errors.New("encryption is already enabled")

	// ErrNotEncrypted is returned by DisableEncryption on a plain directory
	ErrNotEncrypted = errors.New("encryption is not enabled")

	// ErrWeakPassword is returned for passwords shorter than 8 characters
	ErrWeakPassword = fmt.Errorf("password must be at least %d characters", minPasswordLen)
)

// EnableEncryption encrypts every workbook in the data directory
func (s *Storage) EnableEncryption(password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.encrypted {
		return ErrAlreadyEncrypted
	}
	if len(password) < minPasswordLen {
		return ErrWeakPassword
	}

	recipient, err := age.NewScryptRecipient(password)
	if err != nil {
		return fmt.Errorf("failed to create recipient: %w", err)
	}
	identity, err := age.NewScryptIdentity(password)
	if err != nil {
		return fmt.Errorf("failed to create identity: %w", err)
	}

	verifyPath := filepath.Join(s.baseDir, verifyFile)
	verify, err := encryptData([]byte(verifyMagic), recipient)
	if err != nil {
		return fmt.Errorf("failed to encrypt verification file: %w", err)
	}
	if err := os.WriteFile(verifyPath, verify, 0644); err != nil {
		return fmt.Errorf("failed to write verification file: %w", err)
	}

	files, err := s.collect(func(path string, _ []byte) bool {
		return !s.shouldSkipEncryption(path) && workbookExts[strings.ToLower(filepath.Ext(path))]
	})
	if err != nil {
		os.Remove(verifyPath)
		return fmt.Errorf("failed to scan files: %w", err)
	}

	for i, path := range files {
		if err := s.encryptFile(path, recipient); err != nil {
			s.rollbackEncryption(files[:i], identity)
			os.Remove(verifyPath)
			return fmt.Errorf("failed to encrypt %s: %w", filepath.Base(path), err)
		}
	}

	if err := os.WriteFile(filepath.Join(s.baseDir, markerFile), []byte("encrypted"), 0644); err != nil {
		return fmt.Errorf("failed to create marker file: %w", err)
	}

	log.Printf("Encrypted %d workbook(s) in %s", len(files), s.baseDir)
	s.encrypted = true
	s.identity = identity
	s.recipient = recipient
	return nil
}

// DisableEncryption decrypts every encrypted file (requires the password)
func (s *Storage) DisableEncryption(password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.encrypted {
		return ErrNotEncrypted
	}

	identity, err := s.verifyPassword(password)
	if err != nil {
		return err
	}

	files, err := s.collect(func(_ string, head []byte) bool {
		return isAgeEncrypted(head)
	})
	if err != nil {
		return fmt.Errorf("failed to scan files: %w", err)
	}

	for _, path := range files {
		if err := s.decryptFile(path, identity); err != nil {
			return fmt.Errorf("failed to decrypt %s: %w", filepath.Base(path), err)
		}
	}

	os.Remove(filepath.Join(s.baseDir, markerFile))
	os.Remove(filepath.Join(s.baseDir, verifyFile))

	log.Printf("Decrypted %d file(s) in %s", len(files), s.baseDir)
	s.encrypted = false
	s.identity = nil
	s.recipient = nil
	return nil
}

// collect walks the data directory and returns the files keep accepts.
// The verify file is never returned.
func (s *Storage) collect(keep func(path string, head []byte) bool) ([]string, error) {
	var out []string
	err := filepath.Walk(s.baseDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || filepath.Base(path) == verifyFile {
			return nil
		}
		head, err := readHead(path, len(ageHeader)+1)
		if err != nil {
			log.Printf("Warning: skipping unreadable file %s: %v", path, err)
			return nil
		}
		if keep(path, head) {
			out = append(out, path)
		}
		return nil
	})
	return out, err
}

func readHead(path string, n int) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	buf := make([]byte, n)
	read, err := f.Read(buf)
	if read == 0 && err != nil {
		// Empty files have no header.
		return nil, nil
	}
	return buf[:read], nil
}

func (s *Storage) encryptFile(path string, recipient *age.ScryptRecipient) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if isAgeEncrypted(data) {
		return nil
	}
	enc, err := encryptData(data, recipient)
	if err != nil {
		return err
	}
	return atomicWrite(path, enc, 0644)
}

func (s *Storage) decryptFile(path string, identity *age.ScryptIdentity) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if !isAgeEncrypted(data) {
		return nil
	}
	dec, err := decryptData(data, identity)
	if err != nil {
		return err
	}
	return atomicWrite(path, dec, 0644)
}

// rollbackEncryption decrypts files already encrypted by a failed run
func (s *Storage) rollbackEncryption(files []string, identity *age.ScryptIdentity) {
	for _, path := range files {
		if err := s.decryptFile(path, identity); err != nil {
			log.Printf("Warning: rollback of %s failed: %v", path, err)
		}
	}
}
