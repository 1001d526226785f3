package storage

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	bolt "go.etcd.io/bbolt"
)

// ErrNotFound is returned when a referenced entity does not exist. Expected
// lookup misses (FindFeedByURL) report absence without an error instead.
var ErrNotFound = errors.New("not found")

var (
	feedsBucket     = []byte("feeds")
	feedItemsBucket = []byte("feed_items")
	newsItemsBucket = []byte("news_items")
	usersBucket     = []byte("users")
)

// Store persists feeds, feed items, per-user news items and users in bbolt.
// Every mutation path runs inside a single bolt write transaction, so one
// feed refresh (or one subscription transition) commits as one unit and
// counter adjustments are serialized against each other.
type Store struct {
	db *bolt.DB
}

func NewStore(dbPath string) (*Store, error) {
	db, err := bolt.Open(dbPath, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{feedsBucket, feedItemsBucket, newsItemsBucket, usersBucket} {
			if _, createErr := tx.CreateBucketIfNotExists(bucket); createErr != nil {
				return createErr
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("creating buckets: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Composite keys keep per-feed and per-user reads as prefix cursor scans.
func feedItemKey(feedID, itemID string) []byte {
	return []byte(feedID + "/" + itemID)
}

func newsItemKey(userID, feedID, newsID string) []byte {
	return []byte(userID + "/" + feedID + "/" + newsID)
}

func put(b *bolt.Bucket, key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return b.Put(key, data)
}

// --- feeds ---

func (s *Store) UpsertFeed(feed *Feed) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return put(tx.Bucket(feedsBucket), []byte(feed.ID), feed)
	})
}

func (s *Store) GetFeed(id string) (*Feed, error) {
	var feed Feed
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(feedsBucket).Get([]byte(id))
		if data == nil {
			return fmt.Errorf("feed %s: %w", id, ErrNotFound)
		}
		return json.Unmarshal(data, &feed)
	})
	if err != nil {
		return nil, err
	}
	return &feed, nil
}

// FindFeedByURL looks a feed up by its canonical URL. A miss is reported
// through the bool, not an error.
func (s *Store) FindFeedByURL(url string) (*Feed, bool, error) {
	var found *Feed
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(feedsBucket).ForEach(func(_, v []byte) error {
			var feed Feed
			if err := json.Unmarshal(v, &feed); err != nil {
				return err
			}
			if feed.URL == url {
				found = &feed
			}
			return nil
		})
	})
	if err != nil {
		return nil, false, err
	}
	return found, found != nil, nil
}

func (s *Store) AllFeeds() ([]*Feed, error) {
	var feeds []*Feed
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(feedsBucket).ForEach(func(_, v []byte) error {
			var feed Feed
			if err := json.Unmarshal(v, &feed); err != nil {
				return err
			}
			feeds = append(feeds, &feed)
			return nil
		})
	})
	return feeds, err
}

// ActiveFeeds returns the feeds eligible for refresh: at least one
// subscriber, or pinned with AlwaysRefresh.
func (s *Store) ActiveFeeds() ([]*Feed, error) {
	feeds, err := s.AllFeeds()
	if err != nil {
		return nil, err
	}
	active := feeds[:0]
	for _, feed := range feeds {
		if feed.NumberOfSubscriptions > 0 || feed.AlwaysRefresh {
			active = append(active, feed)
		}
	}
	return active, nil
}

// --- feed items ---

func (s *Store) FeedItemsForFeed(feedID string) ([]*FeedItem, error) {
	var items []*FeedItem
	err := s.db.View(func(tx *bolt.Tx) error {
		items = feedItemsInTx(tx, feedID)
		return nil
	})
	return items, err
}

func feedItemsInTx(tx *bolt.Tx, feedID string) []*FeedItem {
	var items []*FeedItem
	prefix := []byte(feedID + "/")
	c := tx.Bucket(feedItemsBucket).Cursor()
	for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
		var item FeedItem
		if err := json.Unmarshal(v, &item); err != nil {
			continue
		}
		items = append(items, &item)
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].LastSeen.After(items[j].LastSeen)
	})
	return items
}

// DeleteFeedItems removes the given items of a feed, returning how many
// rows were actually deleted.
func (s *Store) DeleteFeedItems(feedID string, itemIDs []string) (int, error) {
	deleted := 0
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(feedItemsBucket)
		for _, id := range itemIDs {
			key := feedItemKey(feedID, id)
			if b.Get(key) == nil {
				continue
			}
			if err := b.Delete(key); err != nil {
				return err
			}
			deleted++
		}
		return nil
	})
	return deleted, err
}

// --- news items ---

func (s *Store) NewsItemsForUserFeed(userID, feedID string) ([]*NewsItem, error) {
	var items []*NewsItem
	err := s.db.View(func(tx *bolt.Tx) error {
		prefix := []byte(userID + "/" + feedID + "/")
		c := tx.Bucket(newsItemsBucket).Cursor()
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			var item NewsItem
			if err := json.Unmarshal(v, &item); err != nil {
				continue
			}
			items = append(items, &item)
		}
		return nil
	})
	return items, err
}

// NewsItemsForUser lists a user's projections, optionally unread only,
// newest first. limit <= 0 means no limit.
func (s *Store) NewsItemsForUser(userID string, unreadOnly bool, limit int) ([]*NewsItem, error) {
	var items []*NewsItem
	err := s.db.View(func(tx *bolt.Tx) error {
		prefix := []byte(userID + "/")
		c := tx.Bucket(newsItemsBucket).Cursor()
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			var item NewsItem
			if err := json.Unmarshal(v, &item); err != nil {
				continue
			}
			if unreadOnly && item.IsRead {
				continue
			}
			items = append(items, &item)
		}
		return nil
	})
	sort.Slice(items, func(i, j int) bool {
		return items[i].Published.After(items[j].Published)
	})
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, err
}

// ReadNewsItemsReadBefore returns projections that were marked read before
// the given instant. The retention sweep feeds these to DeleteNewsItems.
func (s *Store) ReadNewsItemsReadBefore(before time.Time) ([]*NewsItem, error) {
	var items []*NewsItem
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(newsItemsBucket).ForEach(func(_, v []byte) error {
			var item NewsItem
			if err := json.Unmarshal(v, &item); err != nil {
				return nil
			}
			if item.IsRead && item.ReadOn != nil && item.ReadOn.Before(before) {
				items = append(items, &item)
			}
			return nil
		})
	})
	return items, err
}

// DeleteNewsItems removes the given projections. Callers only pass read
// items here, so unread counters are not touched.
func (s *Store) DeleteNewsItems(items []*NewsItem) (int, error) {
	deleted := 0
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(newsItemsBucket)
		for _, item := range items {
			key := newsItemKey(item.UserID, item.FeedID, item.ID)
			if b.Get(key) == nil {
				continue
			}
			if err := b.Delete(key); err != nil {
				return err
			}
			deleted++
		}
		return nil
	})
	return deleted, err
}

// UnreadFeedItemIDs returns the set of FeedItem ids still referenced by at
// least one unread projection.
func (s *Store) UnreadFeedItemIDs() (map[string]struct{}, error) {
	refs := make(map[string]struct{})
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(newsItemsBucket).ForEach(func(_, v []byte) error {
			var item NewsItem
			if err := json.Unmarshal(v, &item); err != nil {
				return nil
			}
			if !item.IsRead {
				refs[item.FeedItemID] = struct{}{}
			}
			return nil
		})
	})
	return refs, err
}

// --- users ---

func (s *Store) GetUser(id string) (*User, error) {
	var user User
	err := s.db.View(func(tx *bolt.Tx) error {
		return getUserInTx(tx, id, &user)
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func getUserInTx(tx *bolt.Tx, id string, user *User) error {
	data := tx.Bucket(usersBucket).Get([]byte(id))
	if data == nil {
		return fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	return json.Unmarshal(data, user)
}

func (s *Store) UpsertUser(user *User) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return put(tx.Bucket(usersBucket), []byte(user.ID), user)
	})
}

// SubscribersOf returns every user subscribed to the feed.
func (s *Store) SubscribersOf(feedID string) ([]*User, error) {
	var users []*User
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(usersBucket).ForEach(func(_, v []byte) error {
			var user User
			if err := json.Unmarshal(v, &user); err != nil {
				return err
			}
			if user.IsSubscribedTo(feedID) {
				users = append(users, &user)
			}
			return nil
		})
	})
	return users, err
}

// --- composite mutations ---

// RefreshSet is the full mutation set produced by one feed's refresh cycle.
type RefreshSet struct {
	Feed      *Feed
	Items     []*FeedItem
	NewsItems []*NewsItem
	// UnreadDeltas maps user id to the number of unread projections the
	// refresh created for that user.
	UnreadDeltas map[string]int
}

// CommitRefresh applies a refresh's mutations in one transaction. The
// fan-out was built against a snapshot taken outside this transaction, so
// every affected user is re-read here: projections and unread deltas for a
// user who unsubscribed from the feed in the meantime are dropped, and
// counters are adjusted inside the transaction (never floored below zero).
// Two feeds refreshing concurrently therefore cannot lose an update on a
// shared subscriber, and a racing unsubscribe cannot receive orphan items.
func (s *Store) CommitRefresh(set *RefreshSet) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := put(tx.Bucket(feedsBucket), []byte(set.Feed.ID), set.Feed); err != nil {
			return err
		}
		items := tx.Bucket(feedItemsBucket)
		for _, item := range set.Items {
			if err := put(items, feedItemKey(item.FeedID, item.ID), item); err != nil {
				return err
			}
		}

		cache := make(map[string]*User)
		userFor := func(id string) (*User, error) {
			if user, ok := cache[id]; ok {
				return user, nil
			}
			var user User
			if err := getUserInTx(tx, id, &user); err != nil {
				if errors.Is(err, ErrNotFound) {
					// A user deleted mid-cycle gets nothing.
					cache[id] = nil
					return nil, nil
				}
				return nil, err
			}
			cache[id] = &user
			return &user, nil
		}

		news := tx.Bucket(newsItemsBucket)
		for _, item := range set.NewsItems {
			user, err := userFor(item.UserID)
			if err != nil {
				return err
			}
			if user == nil || !user.IsSubscribedTo(set.Feed.ID) {
				continue
			}
			if err := put(news, newsItemKey(item.UserID, item.FeedID, item.ID), item); err != nil {
				return err
			}
		}

		users := tx.Bucket(usersBucket)
		for userID, delta := range set.UnreadDeltas {
			user, err := userFor(userID)
			if err != nil {
				return err
			}
			if user == nil || !user.IsSubscribedTo(set.Feed.ID) {
				continue
			}
			user.NumberOfUnreadItems += delta
			if user.NumberOfUnreadItems < 0 {
				user.NumberOfUnreadItems = 0
			}
			if err := put(users, []byte(user.ID), user); err != nil {
				return err
			}
		}
		return nil
	})
}

// ProjectFunc builds the backfill projections for a new subscription from
// the feed's current items, as seen inside the subscribe transaction.
type ProjectFunc func(feed *Feed, user *User, items []*FeedItem) []*NewsItem

// Subscribe adds the feed to the user's subscriptions, bumps the feed's
// subscriber counter and persists the projections built by project. The
// whole transition, including reading the feed's current items, happens in
// one transaction so a racing refresh is seen either fully or not at all.
// Subscribing twice is a no-op.
func (s *Store) Subscribe(userID, feedID string, project ProjectFunc) (*User, error) {
	var user User
	err := s.db.Update(func(tx *bolt.Tx) error {
		if err := getUserInTx(tx, userID, &user); err != nil {
			return err
		}
		if user.IsSubscribedTo(feedID) {
			return nil
		}
		data := tx.Bucket(feedsBucket).Get([]byte(feedID))
		if data == nil {
			return fmt.Errorf("feed %s: %w", feedID, ErrNotFound)
		}
		var feed Feed
		if err := json.Unmarshal(data, &feed); err != nil {
			return err
		}

		projections := project(&feed, &user, feedItemsInTx(tx, feedID))

		news := tx.Bucket(newsItemsBucket)
		unread := 0
		for _, item := range projections {
			if err := put(news, newsItemKey(item.UserID, item.FeedID, item.ID), item); err != nil {
				return err
			}
			if !item.IsRead {
				unread++
			}
		}

		user.subscribe(feedID)
		user.NumberOfUnreadItems += unread
		feed.NumberOfSubscriptions++

		if err := put(tx.Bucket(feedsBucket), []byte(feed.ID), &feed); err != nil {
			return err
		}
		return put(tx.Bucket(usersBucket), []byte(user.ID), &user)
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Unsubscribe removes the feed from the user's subscriptions, deletes all of
// the user's projections for it and rolls the counters back, floored at
// zero. Unsubscribing while not subscribed is a no-op.
func (s *Store) Unsubscribe(userID, feedID string) (*User, error) {
	var user User
	err := s.db.Update(func(tx *bolt.Tx) error {
		if err := getUserInTx(tx, userID, &user); err != nil {
			return err
		}
		if !user.IsSubscribedTo(feedID) {
			return nil
		}

		unread := 0
		prefix := []byte(userID + "/" + feedID + "/")
		c := tx.Bucket(newsItemsBucket).Cursor()
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			var item NewsItem
			if err := json.Unmarshal(v, &item); err == nil && !item.IsRead {
				unread++
			}
			if err := c.Delete(); err != nil {
				return err
			}
		}

		user.unsubscribe(feedID)
		user.NumberOfUnreadItems -= unread
		if user.NumberOfUnreadItems < 0 {
			user.NumberOfUnreadItems = 0
		}

		if data := tx.Bucket(feedsBucket).Get([]byte(feedID)); data != nil {
			var feed Feed
			if err := json.Unmarshal(data, &feed); err != nil {
				return err
			}
			feed.NumberOfSubscriptions--
			if feed.NumberOfSubscriptions < 0 {
				feed.NumberOfSubscriptions = 0
			}
			if err := put(tx.Bucket(feedsBucket), []byte(feed.ID), &feed); err != nil {
				return err
			}
		}
		return put(tx.Bucket(usersBucket), []byte(user.ID), &user)
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// MarkNewsItemsRead marks the given projections read and decrements the
// user's unread counter by the number that were actually unread.
func (s *Store) MarkNewsItemsRead(userID string, newsItemIDs []string) (int, error) {
	wanted := make(map[string]struct{}, len(newsItemIDs))
	for _, id := range newsItemIDs {
		wanted[id] = struct{}{}
	}

	marked := 0
	err := s.db.Update(func(tx *bolt.Tx) error {
		var user User
		if err := getUserInTx(tx, userID, &user); err != nil {
			return err
		}

		now := time.Now().UTC()
		b := tx.Bucket(newsItemsBucket)
		prefix := []byte(userID + "/")
		c := b.Cursor()
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			var item NewsItem
			if err := json.Unmarshal(v, &item); err != nil {
				continue
			}
			if _, ok := wanted[item.ID]; !ok || item.IsRead {
				continue
			}
			item.IsRead = true
			item.ReadOn = &now
			if err := put(b, k, &item); err != nil {
				return err
			}
			marked++
		}

		user.NumberOfUnreadItems -= marked
		if user.NumberOfUnreadItems < 0 {
			user.NumberOfUnreadItems = 0
		}
		return put(tx.Bucket(usersBucket), []byte(user.ID), &user)
	})
	if err != nil {
		return 0, err
	}
	return marked, nil
}
