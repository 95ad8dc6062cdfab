// Package poll provides the generic auto-refreshing data client behind the
// dashboard panels. A Poller repeatedly fetches one resource, keeps the last
// successful snapshot around on failure, and supports manual refresh at any
// time without disturbing the timer.
package poll

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// FetchFunc retrieves one snapshot of the polled resource.
type FetchFunc[T any] func(ctx context.Context) (T, error)

// Snapshot is the current view of a polled resource. OK is false until the
// first successful fetch; after that Data always holds the last good value
// even when Err is set — stale data beats a blank panel.
type Snapshot[T any] struct {
	Data      T
	OK        bool
	Err       error
	LastFetch time.Time
}

// Poller fetches a resource on a fixed interval. Endpoints that proxy the
// external social-network API get a longer interval so the bot does not burn
// that API's rate limit on dashboard refreshes.
type Poller[T any] struct {
	logger   *slog.Logger
	name     string
	interval time.Duration
	fetch    FetchFunc[T]

	autoRefresh  bool
	fetchOnStart bool
	onUpdate     func(Snapshot[T])

	mu   sync.RWMutex
	snap Snapshot[T]
}

type Option[T any] func(*Poller[T])

// WithAutoRefresh disables the timer when false; only manual Refresh calls
// fetch then.
func WithAutoRefresh[T any](enabled bool) Option[T] {
	return func(p *Poller[T]) { p.autoRefresh = enabled }
}

// WithFetchOnStart controls whether Run issues an immediate fetch before the
// first tick. Defaults to true.
func WithFetchOnStart[T any](enabled bool) Option[T] {
	return func(p *Poller[T]) { p.fetchOnStart = enabled }
}

// WithOnUpdate registers a callback invoked after every fetch, success or
// failure, with the resulting snapshot. Used by reconciling consumers.
func WithOnUpdate[T any](fn func(Snapshot[T])) Option[T] {
	return func(p *Poller[T]) { p.onUpdate = fn }
}

func New[T any](logger *slog.Logger, name string, interval time.Duration, fetch FetchFunc[T], opts ...Option[T]) *Poller[T] {
	p := &Poller[T]{
		logger:       logger,
		name:         name,
		interval:     interval,
		fetch:        fetch,
		autoRefresh:  true,
		fetchOnStart: true,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run drives the refresh loop. Blocks until ctx is cancelled. Cancellation
// only stops scheduling future fetches; a fetch already in flight finishes
// and its result is applied (last response wins).
func (p *Poller[T]) Run(ctx context.Context) error {
	if p.fetchOnStart {
		p.Refresh(ctx)
	}
	if !p.autoRefresh {
		<-ctx.Done()
		return nil
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("poller stopped", "name", p.name)
			return nil
		case <-ticker.C:
			p.Refresh(ctx)
		}
	}
}

// Refresh performs one fetch immediately. Safe to call concurrently with the
// timer loop; whichever response applies last wins, which is acceptable at
// the dashboard's cadence.
func (p *Poller[T]) Refresh(ctx context.Context) {
	data, err := p.fetch(ctx)

	p.mu.Lock()
	p.snap.LastFetch = time.Now()
	if err != nil {
		// Keep the stale data; only the error changes.
		p.snap.Err = err
		p.logger.Warn("poll fetch failed", "name", p.name, "error", err)
	} else {
		p.snap.Data = data
		p.snap.OK = true
		p.snap.Err = nil
	}
	snap := p.snap
	p.mu.Unlock()

	if p.onUpdate != nil {
		p.onUpdate(snap)
	}
}

// Snapshot returns the current view.
func (p *Poller[T]) Snapshot() Snapshot[T] {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.snap
}

// Interval reports the configured refresh cadence, for "next refresh in"
// displays.
func (p *Poller[T]) Interval() time.Duration {
	return p.interval
}
