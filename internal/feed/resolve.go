package feed

import (
	"context"

	"github.com/newsroomd/newsroom/internal/storage"
)

// Resolve fetches rawURL and parses whatever feed it points at.
//
// Detection order, first match wins: an HTML document referencing exactly
// one application/rss+xml link is followed once (the referenced URL becomes
// the feed's canonical URL); otherwise the body is matched as RSS, RDF or
// Atom; an HTML page registered as a scrape source is scraped; anything
// else is ErrNoFeed. Network failures surface as *NetworkError, malformed
// recognized documents as *ParseError.
func Resolve(ctx context.Context, fetcher *Fetcher, rawURL string) (*Result, error) {
	return resolve(ctx, fetcher, rawURL, true)
}

func resolve(ctx context.Context, fetcher *Fetcher, rawURL string, followRef bool) (*Result, error) {
	body, err := fetcher.Get(ctx, rawURL)
	if err != nil {
		return nil, err
	}

	if looksLikeHTML(body) {
		if href, ok := htmlRSSRef(body); ok && followRef {
			// Restart detection on the referenced document; one hop only.
			return resolve(ctx, fetcher, href, false)
		}
		if source, ok := ScrapeSourceFor(rawURL); ok {
			return scrapeResult(source, body)
		}
		return nil, ErrNoFeed
	}

	sourceType, ok := DetectSource(body, rawURL)
	if !ok {
		return nil, ErrNoFeed
	}

	switch sourceType {
	case storage.SourceRSS:
		return parseRSS(rawURL, body)
	case storage.SourceRDF:
		return parseRDF(rawURL, body)
	case storage.SourceAtom:
		return parseAtom(rawURL, body)
	case storage.SourceHTML:
		source, registered := ScrapeSourceFor(rawURL)
		if !registered {
			return nil, ErrNoFeed
		}
		return scrapeResult(source, body)
	default:
		return nil, ErrNoFeed
	}
}

func scrapeResult(source *ScrapeSource, body []byte) (*Result, error) {
	items, err := source.Parse(body)
	if err != nil {
		return nil, err
	}
	return &Result{Feed: source.Feed, Items: items}, nil
}
