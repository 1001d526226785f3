package storage

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// SourceType tags the wire format a feed is ingested from.
type SourceType string

const (
	SourceRSS  SourceType = "RSS"
	SourceAtom SourceType = "ATOM"
	SourceRDF  SourceType = "RDF"
	SourceHTML SourceType = "HTML"
)

const updatedPrefix = "[Updated] "

// Feed is a subscribable content source, shared across all subscribers.
type Feed struct {
	ID          string     `json:"id"`
	URL         string     `json:"url"`
	SourceType  SourceType `json:"source_type"`
	Title       string     `json:"title"`
	Link        string     `json:"link"`
	Description string     `json:"description"`
	Category    string     `json:"category,omitempty"`

	ImageURL   string `json:"image_url,omitempty"`
	ImageTitle string `json:"image_title,omitempty"`
	ImageLink  string `json:"image_link,omitempty"`

	NumberOfSubscriptions int `json:"number_of_subscriptions"`
	NumberOfItems         int `json:"number_of_items"`

	// AlwaysRefresh pins the feed into every refresh batch even with
	// zero subscribers.
	AlwaysRefresh bool `json:"always_refresh,omitempty"`

	LastFetched time.Time `json:"last_fetched"`
	CreatedOn   time.Time `json:"created_on"`
}

// FeedItem is one piece of content as seen by the ingestion engine. Link
// uniqueness within a feed is its primary identity; similar titles fold
// later items into the alternate lists instead of creating new rows.
type FeedItem struct {
	ID     string `json:"id"`
	FeedID string `json:"feed_id"`

	Title       string     `json:"title"`
	Link        string     `json:"link"`
	Description string     `json:"description"`
	Published   *time.Time `json:"published,omitempty"`

	LastSeen  time.Time `json:"last_seen"`
	CreatedOn time.Time `json:"created_on"`

	AlternateLinks    []string `json:"alternate_links,omitempty"`
	AlternateTitles   []string `json:"alternate_titles,omitempty"`
	AlternateFavicons []string `json:"alternate_favicons,omitempty"`
}

// AppendAlternate records a fuzzy-duplicate source for the item. It is a
// no-op when the link is already present, and the display title gains the
// "[Updated] " prefix at most once.
func (i *FeedItem) AppendAlternate(link, title, favicon string) {
	for _, l := range i.AlternateLinks {
		if l == link {
			return
		}
	}
	if !strings.HasPrefix(i.Title, updatedPrefix) {
		i.Title = updatedPrefix + i.Title
	}
	i.AlternateLinks = append(i.AlternateLinks, link)
	i.AlternateTitles = append(i.AlternateTitles, title)
	i.AlternateFavicons = append(i.AlternateFavicons, favicon)
}

// NewsItem is the per-user projection of a FeedItem. The alternate lists are
// copied rather than referenced so each user's read state stays independent.
type NewsItem struct {
	ID         string `json:"id"`
	FeedID     string `json:"feed_id"`
	UserID     string `json:"user_id"`
	FeedItemID string `json:"feed_item_id"`

	FeedTitle   string    `json:"feed_title"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Link        string    `json:"link"`
	Favicon     string    `json:"favicon,omitempty"`
	Published   time.Time `json:"published"`

	AlternateLinks    []string `json:"alternate_links,omitempty"`
	AlternateTitles   []string `json:"alternate_titles,omitempty"`
	AlternateFavicons []string `json:"alternate_favicons,omitempty"`

	CreatedOn time.Time  `json:"created_on"`
	IsRead    bool       `json:"is_read"`
	ReadOn    *time.Time `json:"read_on,omitempty"`
	IsSaved   bool       `json:"is_saved"`
}

// AppendAlternate mirrors FeedItem.AppendAlternate for the projection.
func (n *NewsItem) AppendAlternate(link, title, favicon string) {
	for _, l := range n.AlternateLinks {
		if l == link {
			return
		}
	}
	if !strings.HasPrefix(n.Title, updatedPrefix) {
		n.Title = updatedPrefix + n.Title
	}
	n.AlternateLinks = append(n.AlternateLinks, link)
	n.AlternateTitles = append(n.AlternateTitles, title)
	n.AlternateFavicons = append(n.AlternateFavicons, favicon)
}

// User carries only the fields the ingestion core touches.
type User struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name,omitempty"`

	SubscribedTo        []string `json:"subscribed_to,omitempty"`
	NumberOfUnreadItems int      `json:"number_of_unread_items"`
}

// IsSubscribedTo reports whether the user follows the feed.
func (u *User) IsSubscribedTo(feedID string) bool {
	for _, id := range u.SubscribedTo {
		if id == feedID {
			return true
		}
	}
	return false
}

func (u *User) subscribe(feedID string) {
	if !u.IsSubscribedTo(feedID) {
		u.SubscribedTo = append(u.SubscribedTo, feedID)
	}
}

func (u *User) unsubscribe(feedID string) {
	kept := u.SubscribedTo[:0]
	for _, id := range u.SubscribedTo {
		if id != feedID {
			kept = append(kept, id)
		}
	}
	u.SubscribedTo = kept
}

// NewID returns a fresh entity identifier.
func NewID() string {
	return uuid.NewString()
}
