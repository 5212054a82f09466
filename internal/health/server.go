// Package health exposes HTTP endpoints reporting connectivity, cache usage
// and prometheus metrics.
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vietddude/netcache/internal/connectivity"
	"github.com/vietddude/netcache/internal/core/domain"
)

// StatsProvider supplies the cache statistics snapshot, typically a
// *cachestore.Store.
type StatsProvider interface {
	Statistics() domain.CacheStatistics
}

// Server provides HTTP endpoints for health monitoring.
type Server struct {
	stats   StatsProvider
	monitor *connectivity.Monitor
	server  *http.Server
}

// NewServer creates a health server on the given port.
func NewServer(stats StatsProvider, monitor *connectivity.Monitor, port int) *Server {
	mux := http.NewServeMux()
	s := &Server{
		stats:   stats,
		monitor: monitor,
		server: &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: mux,
		},
	}

	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/stats", s.handleStats)
	mux.Handle("/metrics", promhttp.Handler())

	return s
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	err := s.server.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Stop shuts the server down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	quality := s.monitor.Quality()
	status := "healthy"
	code := http.StatusOK
	switch quality {
	case domain.QualityOffline:
		// Offline is degraded, not down: cached content still serves.
		status = "offline"
		code = http.StatusOK
	case domain.QualityPoor:
		status = "degraded"
	}

	response := map[string]any{
		"status":  status,
		"quality": quality.String(),
		"online":  s.monitor.Online(),
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(response)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.stats.Statistics())
}
