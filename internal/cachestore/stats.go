package cachestore

import (
	"github.com/vietddude/netcache/internal/core/domain"
)

// Statistics returns an on-demand snapshot of store contents.
func (s *Store) Statistics() domain.CacheStatistics {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := domain.CacheStatistics{
		TotalFiles:     len(s.order),
		TotalSizeBytes: s.total,
	}
	for _, key := range s.order {
		entry := s.entries[key]
		if entry.IsMediaFile {
			stats.MediaFiles++
		}
		if stats.OldestEntry.IsZero() || entry.CreatedAt.Before(stats.OldestEntry) {
			stats.OldestEntry = entry.CreatedAt
		}
		if entry.CreatedAt.After(stats.NewestEntry) {
			stats.NewestEntry = entry.CreatedAt
		}
	}
	if s.quota > 0 {
		stats.UsagePercent = float64(s.total) / float64(s.quota) * 100
	}
	return stats
}
