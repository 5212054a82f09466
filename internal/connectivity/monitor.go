// Package connectivity tracks reachability transitions reported by an
// external observer and derives the retry policy callers should run under.
package connectivity

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/vietddude/netcache/internal/core/domain"
)

// Event is one reachability transition from the connectivity observer.
// Events carry last-value-wins semantics.
type Event struct {
	Online  bool
	Quality domain.Quality
}

type state struct {
	online  bool
	quality domain.Quality
	policy  domain.RetryPolicy
}

// Monitor holds the currently selected retry policy. Reads are a single
// atomic load, so an executor consulting the monitor never observes a torn
// update while a transition is being applied.
type Monitor struct {
	base domain.RetryPolicy
	cur  atomic.Pointer[state]
}

// NewMonitor creates a monitor that scales base by the reported quality
// tier. Until the first event arrives the link is assumed online and
// excellent.
func NewMonitor(base domain.RetryPolicy) *Monitor {
	m := &Monitor{base: base}
	m.Apply(Event{Online: true, Quality: domain.QualityExcellent})
	return m
}

// Apply records a transition and swaps in the derived policy atomically.
// An offline event forces the Offline tier regardless of the reported one.
func (m *Monitor) Apply(ev Event) {
	quality := ev.Quality
	if !ev.Online {
		quality = domain.QualityOffline
	}

	next := &state{
		online:  ev.Online,
		quality: quality,
		policy:  quality.Apply(m.base),
	}

	prev := m.cur.Swap(next)
	if prev != nil && prev.quality != next.quality {
		slog.Info("Connectivity changed",
			"quality", next.quality.String(),
			"online", next.online,
			"max_retries", next.policy.MaxRetries,
		)
	}
}

// Run consumes observer events until ctx is cancelled, draining any backlog
// so only the latest transition is applied.
func (m *Monitor) Run(ctx context.Context, events <-chan Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			m.Apply(latest(events, ev))
		}
	}
}

// latest drains any queued transitions and returns the newest one.
func latest(events <-chan Event, ev Event) Event {
	for {
		select {
		case next, ok := <-events:
			if !ok {
				return ev
			}
			ev = next
		default:
			return ev
		}
	}
}

// Policy returns the active retry policy.
func (m *Monitor) Policy() domain.RetryPolicy {
	return m.cur.Load().policy
}

// Quality returns the current quality tier.
func (m *Monitor) Quality() domain.Quality {
	return m.cur.Load().quality
}

// Online reports whether the remote service is considered reachable. Callers
// seeing false should skip the network entirely and fall back to the cache.
func (m *Monitor) Online() bool {
	return m.cur.Load().online
}
