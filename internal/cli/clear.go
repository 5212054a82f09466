package cli

import (
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/vietddude/netcache/internal/cachestore"
	"github.com/vietddude/netcache/internal/core/config"
)

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove all cached payloads and listings",
	Run:   runClear,
}

func init() {
	rootCmd.AddCommand(clearCmd)
}

func runClear(cmd *cobra.Command, args []string) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	store, err := cachestore.NewStore(cfg.Cache.Dir, cfg.Cache.QuotaBytes(), cfg.Cache.MaxAge())
	if err != nil {
		slog.Error("Failed to open cache store", "error", err)
		os.Exit(1)
	}

	removed := len(store.List())
	if err := store.Clear(); err != nil {
		slog.Error("Failed to clear cache", "error", err)
		os.Exit(1)
	}

	listings, err := cachestore.NewListingCache(
		filepath.Join(cfg.Cache.Dir, "listings.json"), cfg.Cache.ListingTTL())
	if err == nil {
		if err := listings.Clear(); err != nil {
			slog.Warn("Failed to clear listing cache", "error", err)
		}
	}

	slog.Info("Cache cleared", "removed_entries", removed)
}
