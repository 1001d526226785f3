// Package news implements the ingestion core: merging freshly parsed items
// into known feed state, fanning new content out to subscribers, refreshing
// all active feeds concurrently, and handling subscription transitions.
package news

import (
	"context"
	"errors"
	"time"

	"github.com/newsroomd/newsroom/internal/config"
	"github.com/newsroomd/newsroom/internal/feed"
	"github.com/newsroomd/newsroom/internal/storage"
	"github.com/newsroomd/newsroom/internal/validation"
)

// Manager bundles the store, fetcher and configuration and exposes the
// operations the API layer consumes.
type Manager struct {
	store        *storage.Store
	fetcher      *feed.Fetcher
	cfg          *config.Config
	urlValidator *validation.FeedURLValidator

	now func() time.Time
}

func NewManager(store *storage.Store, fetcher *feed.Fetcher, cfg *config.Config) *Manager {
	return &Manager{
		store:        store,
		fetcher:      fetcher,
		cfg:          cfg,
		urlValidator: validation.NewFeedURLValidator(),
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// SetPermissiveValidation enables permissive URL validation for development/testing
func (m *Manager) SetPermissiveValidation(permissive bool) {
	if permissive {
		m.urlValidator = validation.NewPermissiveFeedURLValidator()
	} else {
		m.urlValidator = validation.NewFeedURLValidator()
	}
}

// FetchFeedInformationFor returns the feed known under url, fetching and
// creating it when the URL is new. feed.ErrNoFeed and *feed.NetworkError
// pass through so callers can distinguish "not a feed" from "unreachable".
func (m *Manager) FetchFeedInformationFor(ctx context.Context, rawURL string) (*storage.Feed, error) {
	normalized, err := m.urlValidator.ValidateAndNormalize(rawURL)
	if err != nil {
		return nil, err
	}

	if known, ok, findErr := m.store.FindFeedByURL(normalized); findErr != nil {
		return nil, findErr
	} else if ok {
		return known, nil
	}

	result, err := feed.Resolve(ctx, m.fetcher, normalized)
	if err != nil {
		return nil, err
	}

	created := feedFromDescriptor(&result.Feed, m.now())
	if err := m.store.UpsertFeed(created); err != nil {
		return nil, err
	}
	return created, nil
}

// MarkNewsItemsRead marks projections read for the user and keeps the
// unread counter in step.
func (m *Manager) MarkNewsItemsRead(userID string, newsItemIDs []string) (int, error) {
	return m.store.MarkNewsItemsRead(userID, newsItemIDs)
}

// UnreadNewsItems lists the user's unread projections, newest first.
func (m *Manager) UnreadNewsItems(userID string, limit int) ([]*storage.NewsItem, error) {
	return m.store.NewsItemsForUser(userID, true, limit)
}

func feedFromDescriptor(d *feed.Descriptor, now time.Time) *storage.Feed {
	return &storage.Feed{
		ID:          storage.NewID(),
		URL:         d.URL,
		SourceType:  d.SourceType,
		Title:       d.Title,
		Link:        d.Link,
		Description: d.Description,
		Category:    d.Category,
		ImageURL:    d.ImageURL,
		ImageTitle:  d.ImageTitle,
		ImageLink:   d.ImageLink,
		LastFetched: now,
		CreatedOn:   now,
	}
}

// IsNotFound reports whether err is the store's missing-entity error.
func IsNotFound(err error) bool {
	return errors.Is(err, storage.ErrNotFound)
}
