// Package control wires the cache store, retry engine, connectivity monitor
// and download queue into one application facade.
package control

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/vietddude/netcache/internal/cachestore"
	"github.com/vietddude/netcache/internal/connectivity"
	"github.com/vietddude/netcache/internal/core/config"
	"github.com/vietddude/netcache/internal/core/domain"
	"github.com/vietddude/netcache/internal/credentials"
	"github.com/vietddude/netcache/internal/download"
	"github.com/vietddude/netcache/internal/health"
	"github.com/vietddude/netcache/internal/netretry"
	"github.com/vietddude/netcache/internal/remote"
)

// maintenanceInterval is how often expired entries and stale listings are
// swept in the background.
const maintenanceInterval = time.Hour

// App owns the long-lived components of the resilience layer.
type App struct {
	cfg     *config.AppConfig
	service remote.Service

	store    *cachestore.Store
	listings *cachestore.ListingCache
	creds    credentials.Store
	monitor  *connectivity.Monitor
	queue    *download.Queue
	health   *health.Server
	exec     *netretry.Executor
}

// NewApp builds the component graph from configuration. The remote service
// may be nil, in which case the app runs cache-only: reads are served from
// disk and fetches fail with a no-connection error.
func NewApp(cfg *config.AppConfig, service remote.Service) (*App, error) {
	policy, err := cfg.Retry.Policy()
	if err != nil {
		return nil, err
	}

	store, err := cachestore.NewStore(cfg.Cache.Dir, cfg.Cache.QuotaBytes(), cfg.Cache.MaxAge())
	if err != nil {
		return nil, fmt.Errorf("open cache store: %w", err)
	}

	listings, err := cachestore.NewListingCache(
		filepath.Join(cfg.Cache.Dir, "listings.json"), cfg.Cache.ListingTTL())
	if err != nil {
		return nil, fmt.Errorf("open listing cache: %w", err)
	}

	creds, err := credentials.NewFileStore(filepath.Join(cfg.Cache.Dir, "credentials.json"))
	if err != nil {
		return nil, fmt.Errorf("open credential store: %w", err)
	}

	monitor := connectivity.NewMonitor(policy)
	app := &App{
		cfg:      cfg,
		service:  service,
		store:    store,
		listings: listings,
		creds:    creds,
		monitor:  monitor,
		exec:     netretry.NewExecutor(),
	}
	if service != nil {
		app.queue = download.NewQueue(service, creds, store, monitor, cfg.Retry.FetchTimeout())
	}

	app.health = health.NewServer(store, monitor, cfg.Server.Port)
	return app, nil
}

// Start launches the health server and the maintenance sweep. It returns
// immediately; components run until ctx is cancelled or Stop is called.
func (a *App) Start(ctx context.Context) error {
	go func() {
		slog.Info("health server starting", "port", a.cfg.Server.Port)
		if err := a.health.Start(); err != nil {
			slog.Error("health server failed", "error", err)
		}
	}()

	go a.maintenanceLoop(ctx)
	return nil
}

// Stop cancels in-flight downloads and shuts down the health server. The
// store needs no flush; it persists on every mutation.
func (a *App) Stop(ctx context.Context) error {
	slog.Info("stopping netcache...")
	if a.queue != nil {
		a.queue.CancelAll()
	}
	return a.health.Stop(ctx)
}

func (a *App) maintenanceLoop(ctx context.Context) {
	ticker := time.NewTicker(maintenanceInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			expired := a.store.Evictor().EvictExpired()
			pruned := a.listings.Prune()
			if expired > 0 || pruned > 0 {
				slog.Info("maintenance sweep", "expired_entries", expired, "pruned_listings", pruned)
			}
		}
	}
}

// FetchThrough serves a remote file from the cache when present, otherwise
// fetches it with retry and timeout and commits it to the cache before
// returning a reader over the cached payload.
func (a *App) FetchThrough(ctx context.Context, server, remotePath string) (io.ReadSeekCloser, domain.CacheEntry, error) {
	key := domain.CacheKey(server, remotePath)
	if body, entry, err := a.store.Open(key); err == nil {
		return body, entry, nil
	}

	if a.service == nil || !a.monitor.Online() {
		return nil, domain.CacheEntry{}, &domain.NetworkError{Kind: domain.KindNoConnection}
	}

	policy := a.monitor.Policy()
	entry, err := netretry.Execute(ctx, a.exec, policy, func(ctx context.Context) (domain.CacheEntry, error) {
		return netretry.WithTimeout(ctx, a.cfg.Retry.FetchTimeout(), func(ctx context.Context) (domain.CacheEntry, error) {
			return a.fetchOnce(ctx, server, remotePath, key)
		})
	})
	if err != nil {
		return nil, domain.CacheEntry{}, err
	}
	return a.store.Open(entry.Key)
}

func (a *App) fetchOnce(ctx context.Context, server, remotePath, key string) (domain.CacheEntry, error) {
	session, err := a.connect(ctx, server)
	if err != nil {
		return domain.CacheEntry{}, err
	}
	defer session.Close()

	body, _, err := session.Fetch(ctx, remotePath)
	if err != nil {
		return domain.CacheEntry{}, err
	}
	defer body.Close()

	return a.store.Put(ctx, key, body)
}

// ListDirectory returns a directory listing, preferring a fresh cached copy,
// then the remote service, then a stale cached copy when the remote cannot
// be reached.
func (a *App) ListDirectory(ctx context.Context, server, dir string) ([]domain.RemoteEntry, error) {
	if entries, ok := a.listings.Get(server, dir); ok {
		return entries, nil
	}

	if a.service != nil && a.monitor.Online() {
		policy := a.monitor.Policy()
		entries, err := netretry.Execute(ctx, a.exec, policy, func(ctx context.Context) ([]domain.RemoteEntry, error) {
			return netretry.WithTimeout(ctx, a.cfg.Retry.FetchTimeout(), func(ctx context.Context) ([]domain.RemoteEntry, error) {
				return a.listOnce(ctx, server, dir)
			})
		})
		if err == nil {
			if putErr := a.listings.Put(server, dir, entries); putErr != nil {
				slog.Warn("listing cache write failed", "dir", dir, "error", putErr)
			}
			return entries, nil
		}
		if entries, ok := a.listings.GetStale(server, dir); ok {
			slog.Warn("serving stale directory listing", "server", server, "dir", dir, "error", err)
			return entries, nil
		}
		return nil, err
	}

	if entries, ok := a.listings.GetStale(server, dir); ok {
		return entries, nil
	}
	return nil, &domain.NetworkError{Kind: domain.KindNoConnection}
}

func (a *App) listOnce(ctx context.Context, server, dir string) ([]domain.RemoteEntry, error) {
	session, err := a.connect(ctx, server)
	if err != nil {
		return nil, err
	}
	defer session.Close()
	return session.ListDirectory(ctx, dir)
}

func (a *App) connect(ctx context.Context, server string) (remote.Session, error) {
	creds, err := a.creds.Get(server)
	if err != nil && !errors.Is(err, credentials.ErrNotFound) {
		return nil, err
	}
	return a.service.Connect(ctx, server, creds)
}

// Monitor exposes the connectivity monitor so callers can feed it events.
func (a *App) Monitor() *connectivity.Monitor { return a.monitor }

// Queue returns the download queue, nil when the app runs cache-only.
func (a *App) Queue() *download.Queue { return a.queue }

// Store returns the cache store.
func (a *App) Store() *cachestore.Store { return a.store }

// Listings returns the directory listing cache.
func (a *App) Listings() *cachestore.ListingCache { return a.listings }

// Credentials returns the credential store.
func (a *App) Credentials() credentials.Store { return a.creds }
