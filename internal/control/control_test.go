package control

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/vietddude/netcache/internal/connectivity"
	"github.com/vietddude/netcache/internal/core/config"
	"github.com/vietddude/netcache/internal/core/domain"
	"github.com/vietddude/netcache/internal/credentials"
	"github.com/vietddude/netcache/internal/remote"
)

// scriptedService answers every session from the same fetch and list
// functions and counts connections.
type scriptedService struct {
	mu       sync.Mutex
	connects int
	fetch    func(ctx context.Context, remotePath string) (io.ReadCloser, int64, error)
	list     func(ctx context.Context, dir string) ([]domain.RemoteEntry, error)
}

func (s *scriptedService) Connect(ctx context.Context, target string, creds credentials.Credentials) (remote.Session, error) {
	s.mu.Lock()
	s.connects++
	s.mu.Unlock()
	return &scriptedSession{svc: s}, nil
}

func (s *scriptedService) connectCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connects
}

type scriptedSession struct {
	svc *scriptedService
}

func (f *scriptedSession) ListDirectory(ctx context.Context, dir string) ([]domain.RemoteEntry, error) {
	return f.svc.list(ctx, dir)
}

func (f *scriptedSession) Fetch(ctx context.Context, remotePath string) (io.ReadCloser, int64, error) {
	return f.svc.fetch(ctx, remotePath)
}

func (f *scriptedSession) Close() error { return nil }

func newTestApp(t *testing.T, svc remote.Service) *App {
	t.Helper()
	cfg := config.Default()
	cfg.Cache.Dir = t.TempDir()

	app, err := NewApp(cfg, svc)
	if err != nil {
		t.Fatalf("NewApp: %v", err)
	}
	return app
}

func TestFetchThroughCachesOnMiss(t *testing.T) {
	svc := &scriptedService{
		fetch: func(context.Context, string) (io.ReadCloser, int64, error) {
			return io.NopCloser(strings.NewReader("report body")), 11, nil
		},
	}
	app := newTestApp(t, svc)
	ctx := context.Background()

	body, entry, err := app.FetchThrough(ctx, "nas01", "/docs/report.pdf")
	if err != nil {
		t.Fatalf("FetchThrough: %v", err)
	}
	data, _ := io.ReadAll(body)
	body.Close()
	if string(data) != "report body" {
		t.Errorf("payload = %q", data)
	}
	if entry.SizeBytes != 11 {
		t.Errorf("SizeBytes = %d, want 11", entry.SizeBytes)
	}

	// Second call must be served from the cache without reconnecting.
	body, _, err = app.FetchThrough(ctx, "nas01", "/docs/report.pdf")
	if err != nil {
		t.Fatalf("cached FetchThrough: %v", err)
	}
	body.Close()
	if n := svc.connectCount(); n != 1 {
		t.Errorf("connects = %d, want 1", n)
	}
}

func TestFetchThroughOfflineMiss(t *testing.T) {
	svc := &scriptedService{
		fetch: func(context.Context, string) (io.ReadCloser, int64, error) {
			return io.NopCloser(strings.NewReader("x")), 1, nil
		},
	}
	app := newTestApp(t, svc)
	app.Monitor().Apply(connectivity.Event{Online: false, Quality: domain.QualityOffline})

	_, _, err := app.FetchThrough(context.Background(), "nas01", "/a.txt")
	var netErr *domain.NetworkError
	if !errors.As(err, &netErr) || netErr.Kind != domain.KindNoConnection {
		t.Fatalf("err = %v, want no_connection", err)
	}
	if n := svc.connectCount(); n != 0 {
		t.Errorf("connects = %d, want 0", n)
	}
}

func TestFetchThroughCacheHitWhileOffline(t *testing.T) {
	svc := &scriptedService{
		fetch: func(context.Context, string) (io.ReadCloser, int64, error) {
			return io.NopCloser(strings.NewReader("kept")), 4, nil
		},
	}
	app := newTestApp(t, svc)
	ctx := context.Background()

	if _, _, err := app.FetchThrough(ctx, "nas01", "/movie.mkv"); err != nil {
		t.Fatalf("seed fetch: %v", err)
	}

	app.Monitor().Apply(connectivity.Event{Online: false, Quality: domain.QualityOffline})

	body, entry, err := app.FetchThrough(ctx, "nas01", "/movie.mkv")
	if err != nil {
		t.Fatalf("offline cache hit: %v", err)
	}
	body.Close()
	if !entry.IsMediaFile {
		t.Error("expected media flag on .mkv entry")
	}
}

func TestListDirectoryCachesAndFallsBackStale(t *testing.T) {
	listing := []domain.RemoteEntry{{Name: "a.txt", Size: 3}, {Name: "sub", IsDir: true}}
	svc := &scriptedService{
		list: func(context.Context, string) ([]domain.RemoteEntry, error) {
			return listing, nil
		},
	}
	app := newTestApp(t, svc)
	ctx := context.Background()

	got, err := app.ListDirectory(ctx, "nas01", "/docs")
	if err != nil {
		t.Fatalf("ListDirectory: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("entries = %d, want 2", len(got))
	}

	// Fresh cache avoids a second connection.
	if _, err := app.ListDirectory(ctx, "nas01", "/docs"); err != nil {
		t.Fatalf("cached ListDirectory: %v", err)
	}
	if n := svc.connectCount(); n != 1 {
		t.Errorf("connects = %d, want 1", n)
	}

	// Offline with a cached copy serves the stale listing.
	app.Monitor().Apply(connectivity.Event{Online: false, Quality: domain.QualityOffline})
	got, err = app.ListDirectory(ctx, "nas01", "/docs")
	if err != nil {
		t.Fatalf("stale ListDirectory: %v", err)
	}
	if got[1].Name != "sub" || !got[1].IsDir {
		t.Errorf("stale entries = %+v", got)
	}
}

func TestListDirectoryOfflineNoCache(t *testing.T) {
	app := newTestApp(t, &scriptedService{})
	app.Monitor().Apply(connectivity.Event{Online: false, Quality: domain.QualityOffline})

	_, err := app.ListDirectory(context.Background(), "nas01", "/never-seen")
	var netErr *domain.NetworkError
	if !errors.As(err, &netErr) || netErr.Kind != domain.KindNoConnection {
		t.Fatalf("err = %v, want no_connection", err)
	}
}

func TestCacheOnlyApp(t *testing.T) {
	app := newTestApp(t, nil)
	if app.Queue() != nil {
		t.Error("cache-only app must have no download queue")
	}

	_, _, err := app.FetchThrough(context.Background(), "nas01", "/a.txt")
	var netErr *domain.NetworkError
	if !errors.As(err, &netErr) || netErr.Kind != domain.KindNoConnection {
		t.Fatalf("err = %v, want no_connection", err)
	}
}
