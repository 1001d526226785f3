package news

import (
	"regexp"
	"strings"
	"time"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/newsroomd/newsroom/internal/feed"
	"github.com/newsroomd/newsroom/internal/storage"
)

// similarityThreshold is the ratio above which two stripped titles count as
// the same story. Tuned against difflib's sequence ratio; do not swap the
// algorithm without revisiting the value.
const similarityThreshold = 0.516

// minTitleLength guards the fuzzy match: stripped titles this short
// produce too many false positives to ever merge.
const minTitleLength = 10

var bracketTags = regexp.MustCompile(`\[.*?\]`)

// alternateUpdate records one fuzzy-duplicate fold: the surviving item and
// the link/title/favicon the duplicate contributed.
type alternateUpdate struct {
	Item    *storage.FeedItem
	Link    string
	Title   string
	Favicon string
}

// mergeResult partitions one refresh's parsed items against the feed's
// known items.
type mergeResult struct {
	NewItems   []*storage.FeedItem
	Refreshed  []*storage.FeedItem
	Alternates []alternateUpdate
}

// changedItems returns every FeedItem row the merge touched, for the
// refresh's upsert set.
func (r *mergeResult) changedItems() []*storage.FeedItem {
	seen := make(map[string]struct{})
	var items []*storage.FeedItem
	add := func(item *storage.FeedItem) {
		if _, ok := seen[item.ID]; ok {
			return
		}
		seen[item.ID] = struct{}{}
		items = append(items, item)
	}
	for _, item := range r.NewItems {
		add(item)
	}
	for _, item := range r.Refreshed {
		add(item)
	}
	for _, alt := range r.Alternates {
		add(alt.Item)
	}
	return items
}

// mergeItems classifies each parsed item as NEW, SEEN (same link as a known
// item) or ALTERNATE (different link, suspiciously similar title). Link
// identity always wins over title similarity. Newly accepted items join the
// working set immediately so two near-duplicates arriving in one fetch
// cannot both come out NEW.
func mergeItems(f *storage.Feed, existing []*storage.FeedItem, parsed []feed.Item, now time.Time) *mergeResult {
	result := &mergeResult{}
	working := make([]*storage.FeedItem, len(existing))
	copy(working, existing)

	matched := make(map[string]struct{})
	refreshed := make(map[string]struct{})

	for _, candidate := range parsed {
		var sameLink []*storage.FeedItem
		for _, item := range working {
			if item.Link == candidate.Link {
				sameLink = append(sameLink, item)
			}
		}
		if len(sameLink) > 0 {
			for _, item := range sameLink {
				item.LastSeen = now
				matched[item.ID] = struct{}{}
				if _, ok := refreshed[item.ID]; !ok {
					refreshed[item.ID] = struct{}{}
					result.Refreshed = append(result.Refreshed, item)
				}
			}
			continue
		}

		var similar []*storage.FeedItem
		for _, item := range working {
			if _, alreadyMatched := matched[item.ID]; alreadyMatched {
				continue
			}
			if titlesSimilar(candidate.Title, item.Title) {
				similar = append(similar, item)
			}
		}
		if len(similar) > 0 {
			favicon := ResolveFavicon(f, candidate.Link)
			for _, item := range similar {
				item.AppendAlternate(candidate.Link, candidate.Title, favicon)
				item.LastSeen = now
				matched[item.ID] = struct{}{}
				result.Alternates = append(result.Alternates, alternateUpdate{
					Item:    item,
					Link:    candidate.Link,
					Title:   candidate.Title,
					Favicon: favicon,
				})
			}
			continue
		}

		created := &storage.FeedItem{
			ID:          storage.NewID(),
			FeedID:      f.ID,
			Title:       candidate.Title,
			Link:        candidate.Link,
			Description: candidate.Description,
			Published:   candidate.Published,
			LastSeen:    now,
			CreatedOn:   now,
		}
		result.NewItems = append(result.NewItems, created)
		working = append(working, created)
	}

	return result
}

// titlesSimilar strips bracketed tag fragments ("[Updated]" markers and the
// like) from both titles and compares what remains.
func titlesSimilar(a, b string) bool {
	a = strings.TrimSpace(bracketTags.ReplaceAllString(a, ""))
	b = strings.TrimSpace(bracketTags.ReplaceAllString(b, ""))
	if len([]rune(a)) <= minTitleLength || len([]rune(b)) <= minTitleLength {
		return false
	}
	return similarityRatio(a, b) > similarityThreshold
}

func similarityRatio(a, b string) float64 {
	return difflib.NewMatcher(splitChars(a), splitChars(b)).Ratio()
}

func splitChars(s string) []string {
	runes := []rune(s)
	out := make([]string, len(runes))
	for i, r := range runes {
		out[i] = string(r)
	}
	return out
}
