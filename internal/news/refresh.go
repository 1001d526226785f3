package news

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/newsroomd/newsroom/internal/debuglog"
	"github.com/newsroomd/newsroom/internal/feed"
	"github.com/newsroomd/newsroom/internal/storage"
)

// RefreshAllFeeds runs one refresh cycle over every active feed, a bounded
// number at a time. Per-feed failures are logged and swallowed; the batch
// never fails because one source is down. Returns how many feeds completed
// their refresh.
func (m *Manager) RefreshAllFeeds(ctx context.Context) (int, error) {
	feeds, err := m.store.ActiveFeeds()
	if err != nil {
		return 0, err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(m.cfg.Refresh.MaxConcurrent)

	var completed atomic.Int64
	for _, f := range feeds {
		f := f
		g.Go(func() error {
			if refreshErr := m.refreshFeed(ctx, f); refreshErr != nil {
				debuglog.Logger().Warn("feed refresh failed",
					"feed_id", f.ID, "url", f.URL, "error", refreshErr)
				return nil
			}
			completed.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	debuglog.Logger().Info("refresh cycle finished",
		"eligible", len(feeds), "completed", completed.Load())
	return int(completed.Load()), nil
}

// refreshFeed runs fetch, parse, merge and fan-out for one feed and commits
// the whole mutation set as one unit.
func (m *Manager) refreshFeed(ctx context.Context, f *storage.Feed) error {
	result, err := feed.Resolve(ctx, m.fetcher, f.URL)
	if err != nil {
		return err
	}

	existing, err := m.store.FeedItemsForFeed(f.ID)
	if err != nil {
		return err
	}

	now := m.now()
	merged := mergeItems(f, existing, result.Items, now)

	// Mutable feed details track the source on every refresh, before the
	// fan-out so projections carry the current feed title.
	f.Title = result.Feed.Title
	f.Description = result.Feed.Description
	f.LastFetched = now
	f.NumberOfItems += len(merged.NewItems)

	subscribers, err := m.store.SubscribersOf(f.ID)
	if err != nil {
		return err
	}
	fanned, err := m.fanOut(f, merged, subscribers, now)
	if err != nil {
		return err
	}

	return m.store.CommitRefresh(&storage.RefreshSet{
		Feed:         f,
		Items:        merged.changedItems(),
		NewsItems:    fanned.NewsItems,
		UnreadDeltas: fanned.UnreadDeltas,
	})
}
