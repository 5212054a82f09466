package domain

import (
	"path"
	"strings"
	"time"
)

// CacheEntry describes one cached payload file. The store exclusively owns
// both the entry and the payload it points at; LocalPath must reference an
// existing file for as long as the entry is present in the index.
type CacheEntry struct {
	Key            string    `json:"key"`
	LocalPath      string    `json:"local_path"`
	SizeBytes      int64     `json:"size_bytes"`
	CreatedAt      time.Time `json:"created_at"`
	LastAccessedAt time.Time `json:"last_accessed_at"`
	IsMediaFile    bool      `json:"is_media_file"`
}

// RemoteEntry is one descriptor from a remote directory listing.
type RemoteEntry struct {
	Name       string    `json:"name"`
	IsDir      bool      `json:"is_dir"`
	Size       int64     `json:"size"`
	ModifiedAt time.Time `json:"modified_at"`
}

// CacheStatistics is an on-demand snapshot of store contents.
type CacheStatistics struct {
	TotalFiles     int       `json:"total_files"`
	MediaFiles     int       `json:"media_files"`
	TotalSizeBytes int64     `json:"total_size_bytes"`
	OldestEntry    time.Time `json:"oldest_entry,omitempty"`
	NewestEntry    time.Time `json:"newest_entry,omitempty"`
	UsagePercent   float64   `json:"usage_percent"`
}

// CacheKey builds the stable key for a remote file: server identity plus the
// normalized remote path.
func CacheKey(server, remotePath string) string {
	return server + "::" + normalizePath(remotePath)
}

// ListingKey builds the stable key for a cached directory listing.
func ListingKey(server, dir string) string {
	return server + "::" + normalizePath(dir)
}

func normalizePath(p string) string {
	cleaned := path.Clean("/" + strings.ReplaceAll(p, "\\", "/"))
	return cleaned
}

var mediaExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".heic": true,
	".webp": true, ".bmp": true, ".tiff": true,
	".mp4": true, ".mkv": true, ".mov": true, ".avi": true, ".webm": true,
	".mp3": true, ".flac": true, ".wav": true, ".aac": true, ".ogg": true,
}

// IsMediaPath reports whether the path has a known media file extension.
func IsMediaPath(p string) bool {
	return mediaExtensions[strings.ToLower(path.Ext(p))]
}
