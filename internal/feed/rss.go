package feed

import (
	"bytes"

	"github.com/mmcdole/gofeed/rss"

	"github.com/newsroomd/newsroom/internal/storage"
)

// parseRSS handles RSS 2.0 documents: channel title/description/link are
// required by the format, category and image are optional.
func parseRSS(url string, body []byte) (*Result, error) {
	doc, err := (&rss.Parser{}).Parse(bytes.NewReader(body))
	if err != nil {
		return nil, &ParseError{URL: url, Err: err}
	}

	descriptor := Descriptor{
		URL:         CanonicalFeedURL(url),
		SourceType:  storage.SourceRSS,
		Title:       doc.Title,
		Link:        doc.Link,
		Description: TruncateDescription(doc.Description),
	}
	if len(doc.Categories) > 0 {
		descriptor.Category = doc.Categories[0].Value
	}
	if doc.Image != nil {
		descriptor.ImageURL = doc.Image.URL
		descriptor.ImageTitle = doc.Image.Title
		descriptor.ImageLink = doc.Image.Link
	}

	items := make([]Item, 0, len(doc.Items))
	for _, entry := range doc.Items {
		published := utcPtr(entry.PubDateParsed)
		if published == nil {
			published = parseWhen(entry.PubDate)
		}
		items = append(items, Item{
			Title:       entry.Title,
			Link:        SanitizeLink(entry.Link),
			Description: TruncateDescription(entry.Description),
			Published:   published,
		})
	}

	return &Result{Feed: descriptor, Items: items}, nil
}
