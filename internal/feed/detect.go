package feed

import (
	"bytes"

	"github.com/PuerkitoBio/goquery"

	"github.com/newsroomd/newsroom/internal/storage"
)

const atomNamespace = "http://www.w3.org/2005/Atom"

func looksLikeHTML(body []byte) bool {
	return bytes.Contains(body, []byte("<!DOCTYPE html>")) || bytes.Contains(body, []byte("<html"))
}

func looksLikeRSS(body []byte) bool {
	return bytes.Contains(body, []byte("<rss"))
}

func looksLikeRDF(body []byte) bool {
	return bytes.Contains(body, []byte("<rdf:RDF xmlns:rdf="))
}

func looksLikeAtom(body []byte) bool {
	return bytes.Contains(body, []byte(atomNamespace))
}

// DetectSource classifies a body the way Resolve dispatches it. HTML
// documents are reported as SourceHTML whether they carry a feed reference
// or belong to a registered scrape source; the second return is false when
// nothing is recognized.
func DetectSource(body []byte, url string) (storage.SourceType, bool) {
	switch {
	case looksLikeHTML(body):
		return storage.SourceHTML, true
	case looksLikeRSS(body):
		return storage.SourceRSS, true
	case looksLikeRDF(body):
		return storage.SourceRDF, true
	case looksLikeAtom(body):
		return storage.SourceAtom, true
	default:
		if _, ok := ScrapeSourceFor(url); ok {
			return storage.SourceHTML, true
		}
		return "", false
	}
}

// htmlRSSRef extracts the referenced feed URL from an HTML document that
// links exactly one <link type="application/rss+xml">. Zero or several
// references yield no redirect.
func htmlRSSRef(body []byte) (string, bool) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", false
	}
	links := doc.Find(`link[type="application/rss+xml"]`)
	if links.Length() != 1 {
		return "", false
	}
	href, ok := links.Attr("href")
	if !ok || href == "" {
		return "", false
	}
	return href, true
}
