package cli

import (
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/vietddude/netcache/internal/cachestore"
	"github.com/vietddude/netcache/internal/core/config"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show cache usage and cached entries",
	Run:   runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) {
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

	stats := store.Statistics()
	fmt.Printf("Cache dir:    %s\n", cfg.Cache.Dir)
	fmt.Printf("Files:        %d (%d media)\n", stats.TotalFiles, stats.MediaFiles)
	fmt.Printf("Size:         %.1f MB of %d MB (%.1f%%)\n",
		float64(stats.TotalSizeBytes)/(1024*1024), cfg.Cache.QuotaMB, stats.UsagePercent)

	entries := store.List()
	if len(entries) == 0 {
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "KEY\tSIZE\tLAST ACCESS")
	for _, e := range entries {
		_, _ = fmt.Fprintf(w, "%s\t%d\t%s\n", e.Key, e.SizeBytes, e.LastAccessedAt.Format("2006-01-02 15:04"))
	}
	_ = w.Flush()
}
