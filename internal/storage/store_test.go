package storage

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func seedFeed(t *testing.T, store *Store, url string) *Feed {
	t.Helper()
	feed := &Feed{
		ID:        NewID(),
		URL:       url,
		Title:     "Test Feed",
		CreatedOn: time.Now().UTC(),
	}
	require.NoError(t, store.UpsertFeed(feed))
	return feed
}

func seedUser(t *testing.T, store *Store, email string) *User {
	t.Helper()
	user := &User{ID: NewID(), Email: email}
	require.NoError(t, store.UpsertUser(user))
	return user
}

func seedItems(t *testing.T, store *Store, feed *Feed, n int) []*FeedItem {
	t.Helper()
	items := make([]*FeedItem, 0, n)
	base := time.Now().UTC()
	for i := 0; i < n; i++ {
		items = append(items, &FeedItem{
			ID:       NewID(),
			FeedID:   feed.ID,
			Title:    "Item",
			Link:     "https://example.com/" + NewID(),
			LastSeen: base.Add(time.Duration(i) * time.Minute),
		})
	}
	require.NoError(t, store.CommitRefresh(&RefreshSet{Feed: feed, Items: items}))
	return items
}

func TestFindFeedByURL(t *testing.T) {
	store := newTestStore(t)
	feed := seedFeed(t, store, "https://example.com/rss")

	found, ok, err := store.FindFeedByURL("https://example.com/rss")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, feed.ID, found.ID)

	_, ok, err = store.FindFeedByURL("https://example.com/other")
	require.NoError(t, err)
	assert.False(t, ok, "a miss should be a bool, not an error")
}

func TestGetFeedNotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetFeed("nope")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestActiveFeeds(t *testing.T) {
	store := newTestStore(t)

	subscribed := seedFeed(t, store, "https://a.example.com/rss")
	subscribed.NumberOfSubscriptions = 2
	require.NoError(t, store.UpsertFeed(subscribed))

	pinned := seedFeed(t, store, "https://b.example.com/rss")
	pinned.AlwaysRefresh = true
	require.NoError(t, store.UpsertFeed(pinned))

	seedFeed(t, store, "https://c.example.com/rss") // no subscribers

	active, err := store.ActiveFeeds()
	require.NoError(t, err)
	require.Len(t, active, 2)
	for _, feed := range active {
		assert.NotEqual(t, "https://c.example.com/rss", feed.URL)
	}
}

func TestFeedItemsForFeedSortedNewestFirst(t *testing.T) {
	store := newTestStore(t)
	feed := seedFeed(t, store, "https://example.com/rss")
	seedItems(t, store, feed, 3)

	items, err := store.FeedItemsForFeed(feed.ID)
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.True(t, items[0].LastSeen.After(items[1].LastSeen))
	assert.True(t, items[1].LastSeen.After(items[2].LastSeen))
}

func TestFeedItemsAreScopedByFeed(t *testing.T) {
	store := newTestStore(t)
	first := seedFeed(t, store, "https://a.example.com/rss")
	second := seedFeed(t, store, "https://b.example.com/rss")
	seedItems(t, store, first, 2)
	seedItems(t, store, second, 5)

	items, err := store.FeedItemsForFeed(first.ID)
	require.NoError(t, err)
	assert.Len(t, items, 2)
}

func TestCommitRefreshAdjustsUnreadCounters(t *testing.T) {
	store := newTestStore(t)
	feed := seedFeed(t, store, "https://example.com/rss")
	user := seedUser(t, store, "reader@example.com")
	user.SubscribedTo = []string{feed.ID}
	user.NumberOfUnreadItems = 3
	require.NoError(t, store.UpsertUser(user))

	err := store.CommitRefresh(&RefreshSet{
		Feed:         feed,
		UnreadDeltas: map[string]int{user.ID: 2},
	})
	require.NoError(t, err)

	got, err := store.GetUser(user.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, got.NumberOfUnreadItems)
}

func TestCommitRefreshFloorsCounterAtZero(t *testing.T) {
	store := newTestStore(t)
	feed := seedFeed(t, store, "https://example.com/rss")
	user := seedUser(t, store, "reader@example.com")
	user.SubscribedTo = []string{feed.ID}
	require.NoError(t, store.UpsertUser(user))

	err := store.CommitRefresh(&RefreshSet{
		Feed:         feed,
		UnreadDeltas: map[string]int{user.ID: -7},
	})
	require.NoError(t, err)

	got, err := store.GetUser(user.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.NumberOfUnreadItems)
}

func TestCommitRefreshSkipsUsersWhoUnsubscribedMidCycle(t *testing.T) {
	store := newTestStore(t)
	feed := seedFeed(t, store, "https://example.com/rss")
	user := seedUser(t, store, "reader@example.com")

	_, err := store.Subscribe(user.ID, feed.ID, projectAllUnread)
	require.NoError(t, err)

	// A refresh takes its subscriber snapshot, then the user unsubscribes
	// before the refresh commits.
	subscribers, err := store.SubscribersOf(feed.ID)
	require.NoError(t, err)
	require.Len(t, subscribers, 1)

	_, err = store.Unsubscribe(user.ID, feed.ID)
	require.NoError(t, err)

	item := &FeedItem{ID: NewID(), FeedID: feed.ID, Title: "Item", Link: "https://example.com/a", LastSeen: time.Now().UTC()}
	stale := &NewsItem{
		ID:         NewID(),
		FeedID:     feed.ID,
		UserID:     subscribers[0].ID,
		FeedItemID: item.ID,
		Title:      item.Title,
		Link:       item.Link,
	}
	err = store.CommitRefresh(&RefreshSet{
		Feed:         feed,
		Items:        []*FeedItem{item},
		NewsItems:    []*NewsItem{stale},
		UnreadDeltas: map[string]int{subscribers[0].ID: 1},
	})
	require.NoError(t, err)

	projections, err := store.NewsItemsForUserFeed(user.ID, feed.ID)
	require.NoError(t, err)
	assert.Empty(t, projections, "an unsubscribed user must not receive projections")

	got, err := store.GetUser(user.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.NumberOfUnreadItems)

	// The feed-level mutations still land.
	items, err := store.FeedItemsForFeed(feed.ID)
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func projectAllUnread(f *Feed, user *User, items []*FeedItem) []*NewsItem {
	projections := make([]*NewsItem, 0, len(items))
	for _, item := range items {
		projections = append(projections, &NewsItem{
			ID:         NewID(),
			FeedID:     f.ID,
			UserID:     user.ID,
			FeedItemID: item.ID,
			Title:      item.Title,
			Link:       item.Link,
			Published:  item.LastSeen,
			CreatedOn:  time.Now().UTC(),
		})
	}
	return projections
}

func TestSubscribeBackfillsAndCounts(t *testing.T) {
	store := newTestStore(t)
	feed := seedFeed(t, store, "https://example.com/rss")
	seedItems(t, store, feed, 25)
	user := seedUser(t, store, "reader@example.com")

	got, err := store.Subscribe(user.ID, feed.ID, projectAllUnread)
	require.NoError(t, err)
	assert.Equal(t, 25, got.NumberOfUnreadItems)
	assert.True(t, got.IsSubscribedTo(feed.ID))

	updatedFeed, err := store.GetFeed(feed.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, updatedFeed.NumberOfSubscriptions)

	projections, err := store.NewsItemsForUserFeed(user.ID, feed.ID)
	require.NoError(t, err)
	assert.Len(t, projections, 25)
}

func TestSubscribeTwiceIsNoOp(t *testing.T) {
	store := newTestStore(t)
	feed := seedFeed(t, store, "https://example.com/rss")
	seedItems(t, store, feed, 4)
	user := seedUser(t, store, "reader@example.com")

	_, err := store.Subscribe(user.ID, feed.ID, projectAllUnread)
	require.NoError(t, err)
	got, err := store.Subscribe(user.ID, feed.ID, projectAllUnread)
	require.NoError(t, err)

	assert.Equal(t, 4, got.NumberOfUnreadItems)

	updatedFeed, err := store.GetFeed(feed.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, updatedFeed.NumberOfSubscriptions)

	projections, err := store.NewsItemsForUserFeed(user.ID, feed.ID)
	require.NoError(t, err)
	assert.Len(t, projections, 4)
}

func TestSubscribeUnknownFeed(t *testing.T) {
	store := newTestStore(t)
	user := seedUser(t, store, "reader@example.com")

	_, err := store.Subscribe(user.ID, "missing", projectAllUnread)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestUnsubscribeRestoresState(t *testing.T) {
	store := newTestStore(t)
	feed := seedFeed(t, store, "https://example.com/rss")
	seedItems(t, store, feed, 6)
	user := seedUser(t, store, "reader@example.com")

	_, err := store.Subscribe(user.ID, feed.ID, projectAllUnread)
	require.NoError(t, err)

	got, err := store.Unsubscribe(user.ID, feed.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.NumberOfUnreadItems)
	assert.False(t, got.IsSubscribedTo(feed.ID))

	updatedFeed, err := store.GetFeed(feed.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, updatedFeed.NumberOfSubscriptions)

	projections, err := store.NewsItemsForUserFeed(user.ID, feed.ID)
	require.NoError(t, err)
	assert.Empty(t, projections)
}

func TestUnsubscribeOnlyDiscountsUnread(t *testing.T) {
	store := newTestStore(t)
	feed := seedFeed(t, store, "https://example.com/rss")
	seedItems(t, store, feed, 5)
	user := seedUser(t, store, "reader@example.com")

	_, err := store.Subscribe(user.ID, feed.ID, projectAllUnread)
	require.NoError(t, err)

	projections, err := store.NewsItemsForUserFeed(user.ID, feed.ID)
	require.NoError(t, err)
	_, err = store.MarkNewsItemsRead(user.ID, []string{projections[0].ID, projections[1].ID})
	require.NoError(t, err)

	got, err := store.Unsubscribe(user.ID, feed.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.NumberOfUnreadItems)
}

func TestUnsubscribeNotSubscribedIsNoOp(t *testing.T) {
	store := newTestStore(t)
	feed := seedFeed(t, store, "https://example.com/rss")
	user := seedUser(t, store, "reader@example.com")
	user.NumberOfUnreadItems = 2
	require.NoError(t, store.UpsertUser(user))

	got, err := store.Unsubscribe(user.ID, feed.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.NumberOfUnreadItems)
}

func TestMarkNewsItemsRead(t *testing.T) {
	store := newTestStore(t)
	feed := seedFeed(t, store, "https://example.com/rss")
	seedItems(t, store, feed, 3)
	user := seedUser(t, store, "reader@example.com")

	_, err := store.Subscribe(user.ID, feed.ID, projectAllUnread)
	require.NoError(t, err)

	projections, err := store.NewsItemsForUserFeed(user.ID, feed.ID)
	require.NoError(t, err)

	marked, err := store.MarkNewsItemsRead(user.ID, []string{projections[0].ID})
	require.NoError(t, err)
	assert.Equal(t, 1, marked)

	// Marking the same item again changes nothing.
	marked, err = store.MarkNewsItemsRead(user.ID, []string{projections[0].ID})
	require.NoError(t, err)
	assert.Equal(t, 0, marked)

	got, err := store.GetUser(user.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.NumberOfUnreadItems)

	unread, err := store.NewsItemsForUser(user.ID, true, 0)
	require.NoError(t, err)
	assert.Len(t, unread, 2)
}

func TestReadNewsItemsReadBefore(t *testing.T) {
	store := newTestStore(t)
	feed := seedFeed(t, store, "https://example.com/rss")
	seedItems(t, store, feed, 2)
	user := seedUser(t, store, "reader@example.com")

	_, err := store.Subscribe(user.ID, feed.ID, projectAllUnread)
	require.NoError(t, err)

	projections, err := store.NewsItemsForUserFeed(user.ID, feed.ID)
	require.NoError(t, err)
	_, err = store.MarkNewsItemsRead(user.ID, []string{projections[0].ID})
	require.NoError(t, err)

	stale, err := store.ReadNewsItemsReadBefore(time.Now().UTC().Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, stale, 1)

	none, err := store.ReadNewsItemsReadBefore(time.Now().UTC().Add(-time.Hour))
	require.NoError(t, err)
	assert.Empty(t, none)

	deleted, err := store.DeleteNewsItems(stale)
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)
}

func TestUnreadFeedItemIDs(t *testing.T) {
	store := newTestStore(t)
	feed := seedFeed(t, store, "https://example.com/rss")
	items := seedItems(t, store, feed, 2)
	user := seedUser(t, store, "reader@example.com")

	_, err := store.Subscribe(user.ID, feed.ID, projectAllUnread)
	require.NoError(t, err)

	refs, err := store.UnreadFeedItemIDs()
	require.NoError(t, err)
	assert.Len(t, refs, 2)
	_, ok := refs[items[0].ID]
	assert.True(t, ok)
}

func TestDeleteFeedItems(t *testing.T) {
	store := newTestStore(t)
	feed := seedFeed(t, store, "https://example.com/rss")
	items := seedItems(t, store, feed, 3)

	deleted, err := store.DeleteFeedItems(feed.ID, []string{items[0].ID, "missing"})
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)

	remaining, err := store.FeedItemsForFeed(feed.ID)
	require.NoError(t, err)
	assert.Len(t, remaining, 2)
}

func TestNewsItemsForUserLimit(t *testing.T) {
	store := newTestStore(t)
	feed := seedFeed(t, store, "https://example.com/rss")
	seedItems(t, store, feed, 10)
	user := seedUser(t, store, "reader@example.com")

	_, err := store.Subscribe(user.ID, feed.ID, projectAllUnread)
	require.NoError(t, err)

	items, err := store.NewsItemsForUser(user.ID, false, 4)
	require.NoError(t, err)
	require.Len(t, items, 4)
	assert.True(t, items[0].Published.After(items[3].Published))
}
