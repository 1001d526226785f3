// Package feed turns raw HTTP bodies into a normalized feed descriptor and
// item list, regardless of whether the source speaks RSS 2.0, RDF/RSS 1.0,
// Atom, or is a known HTML page we scrape.
package feed

import (
	"time"

	"github.com/newsroomd/newsroom/internal/storage"
)

// Descriptor is the normalized feed-level metadata parsed from a source.
type Descriptor struct {
	URL        string
	SourceType storage.SourceType

	Title       string
	Link        string
	Description string
	Category    string

	ImageURL   string
	ImageTitle string
	ImageLink  string
}

// Item is one normalized entry parsed from a source. Published is nil when
// the source carried no parseable date.
type Item struct {
	Title       string
	Link        string
	Description string
	Published   *time.Time
}

// Result is the output of resolving a URL into a feed.
type Result struct {
	Feed  Descriptor
	Items []Item
}
