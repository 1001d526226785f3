package news

import (
	"sort"

	"github.com/newsroomd/newsroom/internal/debuglog"
)

// DeleteReadItems is the retention sweep, run on its own schedule apart
// from refresh cycles. It purges read projections older than the retention
// window, then feed items that fell out of every source fetch: each feed
// keeps at least its newest KeepPerFeed items, and an item is only purged
// once it has not been seen for the retention window and no unread
// projection still points at it. Returns the total number of rows deleted.
func (m *Manager) DeleteReadItems() (int, error) {
	cutoff := m.now().Add(-m.cfg.Retention.MaxAge)
	deleted := 0

	staleRead, err := m.store.ReadNewsItemsReadBefore(cutoff)
	if err != nil {
		return deleted, err
	}
	n, err := m.store.DeleteNewsItems(staleRead)
	deleted += n
	if err != nil {
		return deleted, err
	}

	unreadRefs, err := m.store.UnreadFeedItemIDs()
	if err != nil {
		return deleted, err
	}

	feeds, err := m.store.AllFeeds()
	if err != nil {
		return deleted, err
	}
	for _, f := range feeds {
		items, itemsErr := m.store.FeedItemsForFeed(f.ID)
		if itemsErr != nil {
			return deleted, itemsErr
		}
		if len(items) <= m.cfg.Retention.KeepPerFeed {
			continue
		}
		sort.Slice(items, func(i, j int) bool {
			return items[i].LastSeen.After(items[j].LastSeen)
		})

		var purge []string
		for _, item := range items[m.cfg.Retention.KeepPerFeed:] {
			if !item.LastSeen.Before(cutoff) {
				continue
			}
			if _, referenced := unreadRefs[item.ID]; referenced {
				continue
			}
			purge = append(purge, item.ID)
		}
		if len(purge) == 0 {
			continue
		}
		n, deleteErr := m.store.DeleteFeedItems(f.ID, purge)
		deleted += n
		if deleteErr != nil {
			return deleted, deleteErr
		}
	}

	debuglog.Logger().Info("retention sweep finished", "deleted", deleted)
	return deleted, nil
}
