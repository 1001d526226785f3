package feed

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/newsroomd/newsroom/internal/storage"
)

func TestDetectSource(t *testing.T) {
	tests := []struct {
		name string
		body string
		url  string
		want storage.SourceType
		ok   bool
	}{
		{
			name: "rss",
			body: `<?xml version="1.0"?><rss version="2.0"><channel></channel></rss>`,
			want: storage.SourceRSS,
			ok:   true,
		},
		{
			name: "rdf",
			body: `<?xml version="1.0"?><rdf:RDF xmlns:rdf="http://www.w3.org/1999/02/22-rdf-syntax-ns#"></rdf:RDF>`,
			want: storage.SourceRDF,
			ok:   true,
		},
		{
			name: "atom",
			body: `<?xml version="1.0"?><feed xmlns="http://www.w3.org/2005/Atom"></feed>`,
			want: storage.SourceAtom,
			ok:   true,
		},
		{
			name: "html doctype",
			body: `<!DOCTYPE html><head></head><body></body>`,
			want: storage.SourceHTML,
			ok:   true,
		},
		{
			name: "html tag",
			body: `<html lang="en"><body></body></html>`,
			want: storage.SourceHTML,
			ok:   true,
		},
		{
			name: "html wins over embedded rss marker",
			body: `<!DOCTYPE html><body>sample with <rss inside</body>`,
			want: storage.SourceHTML,
			ok:   true,
		},
		{
			name: "registered scrape source without markers",
			body: `<article><h2><a href="/a">x</a></h2></article>`,
			url:  "https://gemeente.groningen.nl/actueel/nieuws",
			want: storage.SourceHTML,
			ok:   true,
		},
		{
			name: "unrecognized",
			body: `{"not": "a feed"}`,
			ok:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := DetectSource([]byte(tt.body), tt.url)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestHTMLRSSRef(t *testing.T) {
	t.Run("single reference is followed", func(t *testing.T) {
		body := `<!DOCTYPE html><head>
			<link rel="alternate" type="application/rss+xml" href="https://example.com/feed.xml">
		</head><body></body>`
		href, ok := htmlRSSRef([]byte(body))
		assert.True(t, ok)
		assert.Equal(t, "https://example.com/feed.xml", href)
	})

	t.Run("no reference", func(t *testing.T) {
		_, ok := htmlRSSRef([]byte(`<!DOCTYPE html><body>plain page</body>`))
		assert.False(t, ok)
	})

	t.Run("two references are ambiguous", func(t *testing.T) {
		body := `<!DOCTYPE html><head>
			<link rel="alternate" type="application/rss+xml" href="https://example.com/a.xml">
			<link rel="alternate" type="application/rss+xml" href="https://example.com/b.xml">
		</head>`
		_, ok := htmlRSSRef([]byte(body))
		assert.False(t, ok)
	})

	t.Run("empty href", func(t *testing.T) {
		body := `<!DOCTYPE html><head><link type="application/rss+xml" href=""></head>`
		_, ok := htmlRSSRef([]byte(body))
		assert.False(t, ok)
	})
}
