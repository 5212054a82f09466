// Package cachestore persists fetched payloads and directory listings under
// a dedicated cache root so the application keeps working while the remote
// service is unreachable.
package cachestore

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sync"
	"time"

	"github.com/vietddude/netcache/internal/core/domain"
	"github.com/vietddude/netcache/internal/metrics"
)

// ErrNotFound is returned when no entry exists for a key.
var ErrNotFound = errors.New("cache entry not found")

const (
	indexFileName = "index.json"
	payloadDir    = "files"
)

// Store is the durable mapping from cache keys to payload files. One instance
// owns a cache root; the on-disk index is read in full at startup and
// rewritten in full after every mutation. Index mutations are serialized
// behind a single writer lock while reads see a consistent snapshot.
type Store struct {
	root      string
	indexPath string
	quota     int64
	evictor   *EvictionManager

	now func() time.Time

	mu      sync.RWMutex
	entries map[string]*domain.CacheEntry
	order   []string // insertion order of index entries
	total   int64
}

// NewStore opens (or creates) a cache root. Index entries whose payload file
// no longer exists are dropped silently, which self-heals after a crash
// between payload write and index commit. A quota of 0 disables quota
// eviction.
func NewStore(root string, quotaBytes int64, maxAge time.Duration) (*Store, error) {
	if root == "" {
		return nil, errors.New("cache root required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve cache root: %w", err)
	}
	if err := os.MkdirAll(filepath.Join(abs, payloadDir), 0o755); err != nil {
		return nil, fmt.Errorf("create cache root: %w", err)
	}

	s := &Store{
		root:      abs,
		indexPath: filepath.Join(abs, indexFileName),
		quota:     quotaBytes,
		now:       time.Now,
		entries:   make(map[string]*domain.CacheEntry),
	}
	s.evictor = NewEvictionManager(s, quotaBytes, maxAge)

	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) load() error {
	data, err := os.ReadFile(s.indexPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read cache index: %w", err)
	}

	var stored []domain.CacheEntry
	if err := json.Unmarshal(data, &stored); err != nil {
		return fmt.Errorf("parse cache index: %w", err)
	}

	pruned := 0
	for i := range stored {
		entry := stored[i]
		if _, err := os.Stat(entry.LocalPath); err != nil {
			pruned++
			continue
		}
		s.entries[entry.Key] = &entry
		s.order = append(s.order, entry.Key)
		s.total += entry.SizeBytes
	}

	if pruned > 0 {
		slog.Debug("Pruned cache entries with missing payloads", "count", pruned)
		if err := s.persistLocked(); err != nil {
			return err
		}
	}
	metrics.CacheSizeBytes.Set(float64(s.total))
	return nil
}

// Put streams body into a fresh payload file, then commits the entry to the
// index. The payload is written via temp file + rename before the index is
// touched, so a crash mid-write leaves no orphaned index entry. Insertions
// that push the store past its quota trigger synchronous eviction.
func (s *Store) Put(ctx context.Context, key string, body io.Reader) (domain.CacheEntry, error) {
	if key == "" {
		return domain.CacheEntry{}, errors.New("cache key required")
	}

	payloadPath := s.payloadPath(key)

	tempFile, err := os.CreateTemp(filepath.Dir(payloadPath), ".put-*")
	if err != nil {
		return domain.CacheEntry{}, fmt.Errorf("create temp payload: %w", err)
	}
	tempName := tempFile.Name()

	written, err := copyWithContext(ctx, tempFile, body)
	closeErr := tempFile.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tempName)
		return domain.CacheEntry{}, fmt.Errorf("write payload: %w", err)
	}
	if err := os.Rename(tempName, payloadPath); err != nil {
		os.Remove(tempName)
		return domain.CacheEntry{}, fmt.Errorf("commit payload: %w", err)
	}

	now := s.now()
	entry := domain.CacheEntry{
		Key:            key,
		LocalPath:      payloadPath,
		SizeBytes:      written,
		CreatedAt:      now,
		LastAccessedAt: now,
		IsMediaFile:    domain.IsMediaPath(key),
	}

	s.mu.Lock()
	if prev, ok := s.entries[key]; ok {
		s.total -= prev.SizeBytes
		if prev.LocalPath != payloadPath {
			if err := os.Remove(prev.LocalPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
				slog.Warn("Failed to remove replaced payload", "key", key, "error", err)
			}
		}
	} else {
		s.order = append(s.order, key)
	}
	s.entries[key] = &entry
	s.total += written
	err = s.persistLocked()
	if err != nil {
		// Roll back so the index never references an uncommitted entry.
		s.rollbackLocked(key, payloadPath)
		s.mu.Unlock()
		return domain.CacheEntry{}, err
	}
	overQuota := s.quota > 0 && s.total > s.quota
	metrics.CacheSizeBytes.Set(float64(s.total))
	s.mu.Unlock()

	if overQuota {
		s.evictor.EnforceQuota()
	}
	return entry, nil
}

func (s *Store) rollbackLocked(key, payloadPath string) {
	if entry, ok := s.entries[key]; ok {
		s.total -= entry.SizeBytes
		delete(s.entries, key)
		for i, k := range s.order {
			if k == key {
				s.order = append(s.order[:i], s.order[i+1:]...)
				break
			}
		}
	}
	os.Remove(payloadPath)
}

// Get returns the entry for key, bumping its access time. A missing payload
// file is treated as a miss and the stale entry is dropped.
func (s *Store) Get(key string) (domain.CacheEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if !ok {
		metrics.CacheMissesTotal.Inc()
		return domain.CacheEntry{}, ErrNotFound
	}

	if _, err := os.Stat(entry.LocalPath); err != nil {
		s.dropLocked(key)
		if err := s.persistLocked(); err != nil {
			slog.Warn("Failed to persist index after dropping stale entry", "key", key, "error", err)
		}
		metrics.CacheMissesTotal.Inc()
		return domain.CacheEntry{}, ErrNotFound
	}

	entry.LastAccessedAt = s.now()
	if err := s.persistLocked(); err != nil {
		slog.Warn("Failed to persist index after access", "key", key, "error", err)
	}
	metrics.CacheHitsTotal.Inc()
	return *entry, nil
}

// Open returns a reader over the cached payload along with its entry.
// The caller owns the returned reader.
func (s *Store) Open(key string) (io.ReadSeekCloser, domain.CacheEntry, error) {
	entry, err := s.Get(key)
	if err != nil {
		return nil, domain.CacheEntry{}, err
	}
	f, err := os.Open(entry.LocalPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, domain.CacheEntry{}, ErrNotFound
		}
		return nil, domain.CacheEntry{}, err
	}
	return f, entry, nil
}

// Remove deletes the payload then the index entry. A second Remove for the
// same key is a no-op, and a payload that is already gone does not fail the
// removal: the index entry is dropped regardless so accounting stays correct.
func (s *Store) Remove(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if !ok {
		return nil
	}

	if err := os.Remove(entry.LocalPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("Failed to delete payload, dropping index entry anyway", "key", key, "error", err)
	}
	s.dropLocked(key)
	if err := s.persistLocked(); err != nil {
		return err
	}
	metrics.CacheSizeBytes.Set(float64(s.total))
	return nil
}

// List returns all entries in index insertion order.
func (s *Store) List() []domain.CacheEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.CacheEntry, 0, len(s.order))
	for _, key := range s.order {
		out = append(out, *s.entries[key])
	}
	return out
}

// TotalSize returns the summed payload size of all entries.
func (s *Store) TotalSize() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.total
}

// Clear removes every payload and resets the index.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, entry := range s.entries {
		if err := os.Remove(entry.LocalPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
			slog.Warn("Failed to delete payload during clear", "key", entry.Key, "error", err)
		}
	}
	s.entries = make(map[string]*domain.CacheEntry)
	s.order = nil
	s.total = 0
	metrics.CacheSizeBytes.Set(0)
	return s.persistLocked()
}

// Evictor returns the manager enforcing this store's quota and age limits.
func (s *Store) Evictor() *EvictionManager {
	return s.evictor
}

func (s *Store) dropLocked(key string) {
	entry, ok := s.entries[key]
	if !ok {
		return
	}
	s.total -= entry.SizeBytes
	delete(s.entries, key)
	for i, k := range s.order {
		if k == key {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// persistLocked rewrites the full index atomically. Callers hold s.mu.
func (s *Store) persistLocked() error {
	stored := make([]domain.CacheEntry, 0, len(s.order))
	for _, key := range s.order {
		stored = append(stored, *s.entries[key])
	}

	data, err := json.MarshalIndent(stored, "", "  ")
	if err != nil {
		return fmt.Errorf("encode cache index: %w", err)
	}

	tempFile, err := os.CreateTemp(s.root, ".index-*")
	if err != nil {
		return fmt.Errorf("create temp index: %w", err)
	}
	tempName := tempFile.Name()
	_, err = tempFile.Write(data)
	closeErr := tempFile.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tempName)
		return fmt.Errorf("write cache index: %w", err)
	}
	if err := os.Rename(tempName, s.indexPath); err != nil {
		os.Remove(tempName)
		return fmt.Errorf("commit cache index: %w", err)
	}
	return nil
}

func (s *Store) payloadPath(key string) string {
	sum := sha256.Sum256([]byte(key))
	name := fmt.Sprintf("%x%s", sum[:16], path.Ext(key))
	return filepath.Join(s.root, payloadDir, name)
}

func copyWithContext(ctx context.Context, dst io.Writer, src io.Reader) (int64, error) {
	var copied int64
	buf := make([]byte, 32*1024)
	for {
		if err := ctx.Err(); err != nil {
			return copied, err
		}
		n, err := src.Read(buf)
		if n > 0 {
			w, wErr := dst.Write(buf[:n])
			copied += int64(w)
			if wErr != nil {
				return copied, wErr
			}
			if w < n {
				return copied, io.ErrShortWrite
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return copied, nil
			}
			return copied, err
		}
	}
}
