package credentials

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// FileStore persists credentials as a JSON document, read in full at open
// and rewritten in full after each mutation. The file is created with
// owner-only permissions.
type FileStore struct {
	path string

	mu    sync.RWMutex
	creds map[string]Credentials
}

// NewFileStore opens (or creates) the credential file at path.
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		return nil, errors.New("credential file path required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create credential dir: %w", err)
	}

	s := &FileStore{path: path, creds: make(map[string]Credentials)}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return s, nil
		}
		return nil, fmt.Errorf("read credential file: %w", err)
	}
	if err := json.Unmarshal(data, &s.creds); err != nil {
		return nil, fmt.Errorf("parse credential file: %w", err)
	}
	return s, nil
}

func (s *FileStore) Get(serverKey string) (Credentials, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	creds, ok := s.creds[serverKey]
	if !ok {
		return Credentials{}, ErrNotFound
	}
	return creds, nil
}

func (s *FileStore) Put(serverKey string, creds Credentials) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.creds[serverKey] = creds
	return s.persistLocked()
}

func (s *FileStore) Delete(serverKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.creds[serverKey]; !ok {
		return nil
	}
	delete(s.creds, serverKey)
	return s.persistLocked()
}

func (s *FileStore) persistLocked() error {
	data, err := json.MarshalIndent(s.creds, "", "  ")
	if err != nil {
		return fmt.Errorf("encode credentials: %w", err)
	}

	tempFile, err := os.CreateTemp(filepath.Dir(s.path), ".creds-*")
	if err != nil {
		return fmt.Errorf("create temp credential file: %w", err)
	}
	tempName := tempFile.Name()
	_, err = tempFile.Write(data)
	closeErr := tempFile.Close()
	if err == nil {
		err = closeErr
	}
	if err == nil {
		err = os.Chmod(tempName, 0o600)
	}
	if err != nil {
		os.Remove(tempName)
		return fmt.Errorf("write credential file: %w", err)
	}
	if err := os.Rename(tempName, s.path); err != nil {
		os.Remove(tempName)
		return fmt.Errorf("commit credential file: %w", err)
	}
	return nil
}
