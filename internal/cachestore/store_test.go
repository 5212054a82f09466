package cachestore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"testing"
	"time"
)

func newTestStore(t *testing.T, quota int64) *Store {
	t.Helper()
	s, err := NewStore(t.TempDir(), quota, time.Hour)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return s
}

func TestPutAndGet(t *testing.T) {
	s := newTestStore(t, 0)

	entry, err := s.Put(context.Background(), "nas::/photos/trip.jpg", strings.NewReader("payload"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if entry.SizeBytes != int64(len("payload")) {
		t.Errorf("SizeBytes = %d, want %d", entry.SizeBytes, len("payload"))
	}
	if !entry.IsMediaFile {
		t.Error("jpg entry should be flagged as media")
	}

	got, err := s.Get("nas::/photos/trip.jpg")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.LocalPath != entry.LocalPath {
		t.Errorf("LocalPath = %q, want %q", got.LocalPath, entry.LocalPath)
	}

	data, err := os.ReadFile(got.LocalPath)
	if err != nil {
		t.Fatalf("read payload: %v", err)
	}
	if string(data) != "payload" {
		t.Errorf("payload = %q, want %q", data, "payload")
	}
}

func TestGetMissReturnsNotFound(t *testing.T) {
	s := newTestStore(t, 0)
	if _, err := s.Get("nas::/nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get miss = %v, want ErrNotFound", err)
	}
}

func TestGetBumpsAccessTime(t *testing.T) {
	s := newTestStore(t, 0)
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return base }

	if _, err := s.Put(context.Background(), "nas::/a.txt", strings.NewReader("a")); err != nil {
		t.Fatalf("Put: %v", err)
	}

	s.now = func() time.Time { return base.Add(time.Hour) }
	got, err := s.Get("nas::/a.txt")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !got.LastAccessedAt.Equal(base.Add(time.Hour)) {
		t.Errorf("LastAccessedAt = %v, want %v", got.LastAccessedAt, base.Add(time.Hour))
	}
}

func TestRestartPrunesMissingPayloads(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStore(dir, 0, time.Hour)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	keep, err := s.Put(context.Background(), "nas::/keep.txt", strings.NewReader("keep"))
	if err != nil {
		t.Fatalf("Put keep: %v", err)
	}
	gone, err := s.Put(context.Background(), "nas::/gone.txt", strings.NewReader("gone"))
	if err != nil {
		t.Fatalf("Put gone: %v", err)
	}

	// Simulate an out-of-band payload deletion before restart.
	if err := os.Remove(gone.LocalPath); err != nil {
		t.Fatalf("delete payload: %v", err)
	}

	reloaded, err := NewStore(dir, 0, time.Hour)
	if err != nil {
		t.Fatalf("reload store: %v", err)
	}
	if _, err := reloaded.Get("nas::/gone.txt"); !errors.Is(err, ErrNotFound) {
		t.Errorf("pruned entry still present: %v", err)
	}
	if _, err := reloaded.Get("nas::/keep.txt"); err != nil {
		t.Errorf("surviving entry missing: %v", err)
	}
	if reloaded.TotalSize() != keep.SizeBytes {
		t.Errorf("TotalSize = %d, want %d", reloaded.TotalSize(), keep.SizeBytes)
	}
}

func TestRemoveIdempotent(t *testing.T) {
	s := newTestStore(t, 0)

	if _, err := s.Put(context.Background(), "nas::/a.txt", strings.NewReader("a")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := s.Remove("nas::/a.txt"); err != nil {
		t.Fatalf("first Remove: %v", err)
	}
	before := len(s.List())
	if err := s.Remove("nas::/a.txt"); err != nil {
		t.Fatalf("second Remove: %v", err)
	}
	if len(s.List()) != before {
		t.Error("second Remove changed the index")
	}
}

func TestRemoveToleratesMissingPayload(t *testing.T) {
	s := newTestStore(t, 0)

	entry, err := s.Put(context.Background(), "nas::/a.txt", strings.NewReader("a"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := os.Remove(entry.LocalPath); err != nil {
		t.Fatalf("delete payload: %v", err)
	}
	if err := s.Remove("nas::/a.txt"); err != nil {
		t.Errorf("Remove with missing payload: %v", err)
	}
	if s.TotalSize() != 0 {
		t.Errorf("TotalSize = %d after removal, want 0", s.TotalSize())
	}
}

func TestListInsertionOrder(t *testing.T) {
	s := newTestStore(t, 0)

	keys := []string{"nas::/c.txt", "nas::/a.txt", "nas::/b.txt"}
	for _, key := range keys {
		if _, err := s.Put(context.Background(), key, strings.NewReader(key)); err != nil {
			t.Fatalf("Put %s: %v", key, err)
		}
	}

	entries := s.List()
	if len(entries) != len(keys) {
		t.Fatalf("List() returned %d entries, want %d", len(entries), len(keys))
	}
	for i, key := range keys {
		if entries[i].Key != key {
			t.Errorf("List()[%d].Key = %q, want %q (insertion order)", i, entries[i].Key, key)
		}
	}
}

func TestClear(t *testing.T) {
	s := newTestStore(t, 0)

	entry, err := s.Put(context.Background(), "nas::/a.txt", strings.NewReader("a"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := s.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if len(s.List()) != 0 || s.TotalSize() != 0 {
		t.Error("store not empty after Clear")
	}
	if _, err := os.Stat(entry.LocalPath); !errors.Is(err, os.ErrNotExist) {
		t.Error("payload survived Clear")
	}
}

func TestOverwriteReplacesPayload(t *testing.T) {
	s := newTestStore(t, 0)
	ctx := context.Background()

	if _, err := s.Put(ctx, "nas::/a.txt", strings.NewReader("first")); err != nil {
		t.Fatalf("first Put: %v", err)
	}
	if _, err := s.Put(ctx, "nas::/a.txt", strings.NewReader("second version")); err != nil {
		t.Fatalf("second Put: %v", err)
	}

	if got, want := s.TotalSize(), int64(len("second version")); got != want {
		t.Errorf("TotalSize = %d, want %d", got, want)
	}
	if entries := s.List(); len(entries) != 1 {
		t.Errorf("List() has %d entries after overwrite, want 1", len(entries))
	}
}

func TestPutCancelledContextLeavesNoEntry(t *testing.T) {
	s := newTestStore(t, 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Put(ctx, "nas::/a.txt", strings.NewReader("abc"))
	if err == nil {
		t.Fatal("expected error from cancelled Put")
	}
	if len(s.List()) != 0 {
		t.Error("cancelled Put committed an index entry")
	}
}

func TestPutFailingReaderRollsBack(t *testing.T) {
	s := newTestStore(t, 0)

	_, err := s.Put(context.Background(), "nas::/a.txt", io.MultiReader(
		strings.NewReader("partial"),
		&failingReader{},
	))
	if err == nil {
		t.Fatal("expected error from failing reader")
	}
	if len(s.List()) != 0 || s.TotalSize() != 0 {
		t.Error("failed Put left a partial index entry")
	}
}

type failingReader struct{}

func (*failingReader) Read([]byte) (int, error) {
	return 0, errors.New("stream broke")
}

func TestConcurrentPuts(t *testing.T) {
	s := newTestStore(t, 0)

	const n = 16
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := fmt.Sprintf("nas::/file-%d.txt", i)
			if _, err := s.Put(context.Background(), key, strings.NewReader(key)); err != nil {
				t.Errorf("Put %s: %v", key, err)
			}
		}(i)
	}
	wg.Wait()

	if got := len(s.List()); got != n {
		t.Errorf("List() has %d entries, want %d (concurrent puts must not drop entries)", got, n)
	}
}

func TestStatistics(t *testing.T) {
	s := newTestStore(t, 100)
	ctx := context.Background()

	if _, err := s.Put(ctx, "nas::/a.mp4", strings.NewReader(strings.Repeat("x", 30))); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if _, err := s.Put(ctx, "nas::/b.txt", strings.NewReader(strings.Repeat("y", 20))); err != nil {
		t.Fatalf("Put: %v", err)
	}

	stats := s.Statistics()
	if stats.TotalFiles != 2 {
		t.Errorf("TotalFiles = %d, want 2", stats.TotalFiles)
	}
	if stats.MediaFiles != 1 {
		t.Errorf("MediaFiles = %d, want 1", stats.MediaFiles)
	}
	if stats.TotalSizeBytes != 50 {
		t.Errorf("TotalSizeBytes = %d, want 50", stats.TotalSizeBytes)
	}
	if stats.UsagePercent != 50 {
		t.Errorf("UsagePercent = %v, want 50", stats.UsagePercent)
	}
}
