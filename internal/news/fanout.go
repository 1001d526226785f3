package news

import (
	"time"

	"github.com/newsroomd/newsroom/internal/storage"
)

// fanoutResult is the per-subscriber side of a refresh: projections to
// upsert and the unread-counter deltas they imply.
type fanoutResult struct {
	NewsItems    []*storage.NewsItem
	UnreadDeltas map[string]int
}

// fanOut converts merge decisions into per-subscriber projections. Every
// NEW item becomes one unread projection per subscriber that does not
// already have one; ALTERNATE folds merge into the subscriber's unread
// projection only. A projection the user already read stays read and the
// unread counter is untouched.
func (m *Manager) fanOut(f *storage.Feed, merged *mergeResult, subscribers []*storage.User, now time.Time) (*fanoutResult, error) {
	result := &fanoutResult{UnreadDeltas: make(map[string]int)}

	for _, user := range subscribers {
		projections, err := m.store.NewsItemsForUserFeed(user.ID, f.ID)
		if err != nil {
			return nil, err
		}
		byFeedItem := make(map[string]*storage.NewsItem, len(projections))
		for _, projection := range projections {
			byFeedItem[projection.FeedItemID] = projection
		}

		for _, item := range merged.NewItems {
			if _, exists := byFeedItem[item.ID]; exists {
				continue
			}
			projection := newsItemFromFeedItem(f, user, item, now)
			result.NewsItems = append(result.NewsItems, projection)
			result.UnreadDeltas[user.ID]++
			byFeedItem[item.ID] = projection
		}

		for _, alt := range merged.Alternates {
			projection, exists := byFeedItem[alt.Item.ID]
			if !exists || projection.IsRead {
				continue
			}
			projection.AppendAlternate(alt.Link, alt.Title, alt.Favicon)
			result.NewsItems = append(result.NewsItems, projection)
		}
	}

	return result, nil
}

func newsItemFromFeedItem(f *storage.Feed, user *storage.User, item *storage.FeedItem, now time.Time) *storage.NewsItem {
	published := now
	if item.Published != nil {
		published = *item.Published
	}
	return &storage.NewsItem{
		ID:         storage.NewID(),
		FeedID:     f.ID,
		UserID:     user.ID,
		FeedItemID: item.ID,

		FeedTitle:   f.Title,
		Title:       item.Title,
		Description: item.Description,
		Link:        item.Link,
		Favicon:     ResolveFavicon(f, item.Link),
		Published:   published,

		AlternateLinks:    append([]string(nil), item.AlternateLinks...),
		AlternateTitles:   append([]string(nil), item.AlternateTitles...),
		AlternateFavicons: append([]string(nil), item.AlternateFavicons...),

		CreatedOn: now,
	}
}
