// Package credentials abstracts per-server credential storage behind a small
// get/put/delete capability. Any backend can satisfy it; this package ships a
// process-local store and a JSON file store.
package credentials

import (
	"errors"
	"sync"
)

// ErrNotFound is returned when no credentials exist for a server key.
var ErrNotFound = errors.New("credentials not found")

// Credentials identify a user against one server.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Domain   string `json:"domain,omitempty"`
}

// Store is the capability interface handed to callers. Implementations must
// be safe for concurrent use.
type Store interface {
	Get(serverKey string) (Credentials, error)
	Put(serverKey string, creds Credentials) error
	Delete(serverKey string) error
}

// MemoryStore keeps credentials in process memory. Suited to tests and to
// callers that manage persistence themselves.
type MemoryStore struct {
	mu    sync.RWMutex
	creds map[string]Credentials
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{creds: make(map[string]Credentials)}
}

func (s *MemoryStore) Get(serverKey string) (Credentials, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	creds, ok := s.creds[serverKey]
	if !ok {
		return Credentials{}, ErrNotFound
	}
	return creds, nil
}

func (s *MemoryStore) Put(serverKey string, creds Credentials) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds[serverKey] = creds
	return nil
}

func (s *MemoryStore) Delete(serverKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.creds, serverKey)
	return nil
}
