package news

import (
	"github.com/newsroomd/newsroom/internal/storage"
)

// SubscribeUserToFeed subscribes the user and backfills one unread
// projection per existing feed item, so a new subscriber sees the feed's
// full history. Subscribing twice is a no-op.
func (m *Manager) SubscribeUserToFeed(userID, feedID string) (*storage.User, error) {
	now := m.now()
	return m.store.Subscribe(userID, feedID, func(f *storage.Feed, user *storage.User, items []*storage.FeedItem) []*storage.NewsItem {
		projections := make([]*storage.NewsItem, 0, len(items))
		for _, item := range items {
			projections = append(projections, newsItemFromFeedItem(f, user, item, now))
		}
		return projections
	})
}

// UnsubscribeUserFromFeed removes the subscription and all of the user's
// projections for the feed, rolling the counters back. Not being subscribed
// is a no-op.
func (m *Manager) UnsubscribeUserFromFeed(userID, feedID string) (*storage.User, error) {
	return m.store.Unsubscribe(userID, feedID)
}
