package cachestore

import (
	"log/slog"
	"sort"
	"time"

	"github.com/vietddude/netcache/internal/core/domain"
	"github.com/vietddude/netcache/internal/metrics"
)

// DefaultMaxAge is the expiry age applied when no override is configured.
const DefaultMaxAge = 7 * 24 * time.Hour

// EvictionManager enforces a storage quota and an expiry age over a Store.
// Quota eviction is least-recently-used; expiry is independent of quota
// pressure and invoked by callers periodically.
type EvictionManager struct {
	store      *Store
	quotaBytes int64
	maxAge     time.Duration
}

// NewEvictionManager creates a manager for store. A quota of 0 disables
// quota eviction; a zero maxAge falls back to DefaultMaxAge.
func NewEvictionManager(store *Store, quotaBytes int64, maxAge time.Duration) *EvictionManager {
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	return &EvictionManager{
		store:      store,
		quotaBytes: quotaBytes,
		maxAge:     maxAge,
	}
}

// EnforceQuota removes least-recently-used entries one at a time until total
// cached bytes fit the quota. Entries with equal access times fall back to
// index insertion order, oldest insertion first. Returns the number of
// entries removed.
func (m *EvictionManager) EnforceQuota() int {
	if m.quotaBytes <= 0 || m.store.TotalSize() <= m.quotaBytes {
		return 0
	}

	entries := m.store.List()
	// List returns insertion order; a stable sort keeps it as the tie-break.
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].LastAccessedAt.Before(entries[j].LastAccessedAt)
	})

	removed := 0
	total := m.store.TotalSize()
	for _, entry := range entries {
		if total <= m.quotaBytes {
			break
		}
		if err := m.store.Remove(entry.Key); err != nil {
			slog.Warn("Quota eviction failed for entry", "key", entry.Key, "error", err)
			continue
		}
		total -= entry.SizeBytes
		removed++
		metrics.CacheEvictionsTotal.WithLabelValues("quota").Inc()
	}

	if removed > 0 {
		slog.Info("Evicted entries to enforce quota",
			"removed", removed,
			"total_bytes", m.store.TotalSize(),
			"quota_bytes", m.quotaBytes,
		)
	}
	return removed
}

// EvictExpired removes every entry not accessed within the max age.
func (m *EvictionManager) EvictExpired() int {
	cutoff := m.store.now().Add(-m.maxAge)

	removed := 0
	for _, entry := range m.store.List() {
		if !entry.LastAccessedAt.Before(cutoff) {
			continue
		}
		if err := m.store.Remove(entry.Key); err != nil {
			slog.Warn("Expiry eviction failed for entry", "key", entry.Key, "error", err)
			continue
		}
		removed++
		metrics.CacheEvictionsTotal.WithLabelValues("expired").Inc()
	}
	return removed
}

// Expired reports whether an entry is past the manager's max age.
func (m *EvictionManager) Expired(entry domain.CacheEntry) bool {
	return m.store.now().Sub(entry.LastAccessedAt) > m.maxAge
}
