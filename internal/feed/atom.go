package feed

import (
	"bytes"

	"github.com/mmcdole/gofeed/atom"

	"github.com/newsroomd/newsroom/internal/storage"
)

// parseAtom handles Atom documents. The feed link falls back to the request
// URL when absent, and entry content is normalized to an empty string
// rather than left unset.
func parseAtom(url string, body []byte) (*Result, error) {
	doc, err := (&atom.Parser{}).Parse(bytes.NewReader(body))
	if err != nil {
		return nil, &ParseError{URL: url, Err: err}
	}

	descriptor := Descriptor{
		URL:         CanonicalFeedURL(url),
		SourceType:  storage.SourceAtom,
		Title:       doc.Title,
		Link:        firstAtomLink(doc.Links),
		Description: TruncateDescription(doc.Subtitle),
	}
	if descriptor.Link == "" {
		descriptor.Link = url
	}
	if len(doc.Categories) > 0 {
		descriptor.Category = doc.Categories[0].Term
	}

	items := make([]Item, 0, len(doc.Entries))
	for _, entry := range doc.Entries {
		description := ""
		if entry.Content != nil {
			description = entry.Content.Value
		}
		published := utcPtr(entry.PublishedParsed)
		if published == nil {
			published = parseWhen(entry.Published)
		}
		items = append(items, Item{
			Title:       entry.Title,
			Link:        SanitizeLink(firstAtomLink(entry.Links)),
			Description: TruncateDescription(description),
			Published:   published,
		})
	}

	return &Result{Feed: descriptor, Items: items}, nil
}

func firstAtomLink(links []*atom.Link) string {
	for _, link := range links {
		if link != nil && link.Href != "" {
			return link.Href
		}
	}
	return ""
}
