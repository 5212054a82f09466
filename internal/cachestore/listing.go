package cachestore

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/vietddude/netcache/internal/core/domain"
)

// listingRecord is one cached directory listing with its freshness stamp.
type listingRecord struct {
	Server  string               `json:"server"`
	Path    string               `json:"path"`
	Entries []domain.RemoteEntry `json:"entries"`
	SavedAt time.Time            `json:"saved_at"`
}

// ListingCache persists directory listings in their own index file, keyed
// independently of the payload store and exempt from the file quota.
type ListingCache struct {
	path string
	ttl  time.Duration
	now  func() time.Time

	mu      sync.RWMutex
	records map[string]listingRecord
}

// NewListingCache opens (or creates) the listing index at path. Listings
// older than ttl are reported stale by Get but kept for offline fallback
// until Prune drops them.
func NewListingCache(path string, ttl time.Duration) (*ListingCache, error) {
	if path == "" {
		return nil, errors.New("listing index path required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create listing index dir: %w", err)
	}

	c := &ListingCache{
		path:    path,
		ttl:     ttl,
		now:     time.Now,
		records: make(map[string]listingRecord),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return c, nil
		}
		return nil, fmt.Errorf("read listing index: %w", err)
	}
	var stored []listingRecord
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, fmt.Errorf("parse listing index: %w", err)
	}
	for _, rec := range stored {
		c.records[domain.ListingKey(rec.Server, rec.Path)] = rec
	}
	return c, nil
}

// Put stores a listing and rewrites the index.
func (c *ListingCache) Put(server, dir string, entries []domain.RemoteEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.records[domain.ListingKey(server, dir)] = listingRecord{
		Server:  server,
		Path:    dir,
		Entries: entries,
		SavedAt: c.now(),
	}
	return c.persistLocked()
}

// Get returns a listing that is still within its TTL.
func (c *ListingCache) Get(server, dir string) ([]domain.RemoteEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	rec, ok := c.records[domain.ListingKey(server, dir)]
	if !ok {
		return nil, false
	}
	if c.ttl > 0 && c.now().Sub(rec.SavedAt) > c.ttl {
		return nil, false
	}
	return rec.Entries, true
}

// GetStale returns a listing regardless of age, for offline fallback.
func (c *ListingCache) GetStale(server, dir string) ([]domain.RemoteEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	rec, ok := c.records[domain.ListingKey(server, dir)]
	if !ok {
		return nil, false
	}
	return rec.Entries, true
}

// Prune drops listings past their TTL and rewrites the index when anything
// was removed. Returns the number of dropped listings.
func (c *ListingCache) Prune() int {
	if c.ttl <= 0 {
		return 0
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	cutoff := c.now().Add(-c.ttl)
	removed := 0
	for key, rec := range c.records {
		if rec.SavedAt.Before(cutoff) {
			delete(c.records, key)
			removed++
		}
	}
	if removed > 0 {
		if err := c.persistLocked(); err != nil {
			return removed
		}
	}
	return removed
}

// Clear drops every listing and resets the index file.
func (c *ListingCache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.records = make(map[string]listingRecord)
	return c.persistLocked()
}

func (c *ListingCache) persistLocked() error {
	stored := make([]listingRecord, 0, len(c.records))
	for _, rec := range c.records {
		stored = append(stored, rec)
	}

	data, err := json.MarshalIndent(stored, "", "  ")
	if err != nil {
		return fmt.Errorf("encode listing index: %w", err)
	}

	tempFile, err := os.CreateTemp(filepath.Dir(c.path), ".listings-*")
	if err != nil {
		return fmt.Errorf("create temp listing index: %w", err)
	}
	tempName := tempFile.Name()
	_, err = tempFile.Write(data)
	closeErr := tempFile.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tempName)
		return fmt.Errorf("write listing index: %w", err)
	}
	if err := os.Rename(tempName, c.path); err != nil {
		os.Remove(tempName)
		return fmt.Errorf("commit listing index: %w", err)
	}
	return nil
}
