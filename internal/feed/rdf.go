package feed

import (
	"bytes"
	"encoding/xml"
	"time"

	"github.com/mmcdole/gofeed/rss"

	"github.com/newsroomd/newsroom/internal/storage"
)

// parseRDF handles RDF/RSS 1.0 documents. gofeed's rss parser covers the
// RDF dialect; item dates arrive as Dublin Core date elements instead of
// pubDate.
func parseRDF(url string, body []byte) (*Result, error) {
	doc, err := (&rss.Parser{}).Parse(bytes.NewReader(body))
	if err != nil {
		return nil, &ParseError{URL: url, Err: err}
	}

	descriptor := Descriptor{
		URL:         CanonicalFeedURL(url),
		SourceType:  storage.SourceRDF,
		Title:       doc.Title,
		Link:        doc.Link,
		Description: TruncateDescription(doc.Description),
	}
	if len(doc.Categories) > 0 {
		descriptor.Category = doc.Categories[0].Value
	}
	if doc.Image != nil {
		descriptor.ImageURL = doc.Image.URL
	}
	if descriptor.ImageURL == "" {
		descriptor.ImageURL = rdfChannelImage(body)
	}

	items := make([]Item, 0, len(doc.Items))
	for _, entry := range doc.Items {
		var published *time.Time
		if entry.DublinCoreExt != nil && len(entry.DublinCoreExt.Date) > 0 {
			published = parseWhen(entry.DublinCoreExt.Date[0])
		}
		if published == nil {
			published = utcPtr(entry.PubDateParsed)
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

// rdfChannelImage pulls the attribute form of the RDF channel image
// (<image rdf:resource="..."/>), which the library does not surface.
func rdfChannelImage(body []byte) string {
	var doc struct {
		Channel struct {
			Image struct {
				Resource string `xml:"resource,attr"`
			} `xml:"image"`
		} `xml:"channel"`
	}
	if err := xml.Unmarshal(body, &doc); err != nil {
		return ""
	}
	return doc.Channel.Image.Resource
}
