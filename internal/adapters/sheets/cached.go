package sheets

import (
	"context"
	"log/slog"
	"time"

	"github.com/tradeup/x-engager/internal/core/domain"
	"github.com/tradeup/x-engager/internal/core/ports"
	"github.com/tradeup/x-engager/internal/poll"
)

// CachedSource serves the tweet pool from a poller snapshot so that
// dashboard reads and reply sweeps do not spend sheet quota on every
// request. The pool refreshes on its own slower cadence and stays
// available stale when a refresh fails.
type CachedSource struct {
	poller *poll.Poller[[]domain.SourceTweet]
}

var _ ports.TweetSource = (*CachedSource)(nil)

func NewCachedSource(logger *slog.Logger, src ports.TweetSource, interval time.Duration) *CachedSource {
	return &CachedSource{
		poller: poll.New(logger, "tweet-pool", interval, src.FetchTweets),
	}
}

// Run drives the refresh loop until ctx is cancelled.
func (c *CachedSource) Run(ctx context.Context) error {
	return c.poller.Run(ctx)
}

// FetchTweets returns the cached pool. Before the first scheduled refresh
// has landed it fetches once inline; after that only the poller touches
// the sheet.
func (c *CachedSource) FetchTweets(ctx context.Context) ([]domain.SourceTweet, error) {
	snap := c.poller.Snapshot()
	if !snap.OK {
		c.poller.Refresh(ctx)
		snap = c.poller.Snapshot()
	}
	if !snap.OK {
		return nil, snap.Err
	}
	return snap.Data, nil
}
