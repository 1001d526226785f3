package news

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/newsroomd/newsroom/internal/storage"
)

// faviconsByDomain maps item-link domains to known favicon locations, for
// sources that syndicate content hosted elsewhere.
var faviconsByDomain = map[string]string{
	"www.youtube.com": "https://www.youtube.com/s/desktop/favicon.ico",
	"youtu.be":        "https://www.youtube.com/s/desktop/favicon.ico",
	"www.reddit.com":  "https://www.redditstatic.com/desktop2x/img/favicon/favicon-32x32.png",
}

var faviconPatterns = []struct {
	pattern *regexp.Regexp
	icon    string
}{
	{regexp.MustCompile(`(^|\.)medium\.com$`), "https://medium.com/favicon.ico"},
	{regexp.MustCompile(`(^|\.)substack\.com$`), "https://substack.com/favicon.ico"},
}

// ResolveFavicon picks the favicon for an item link: the feed's own image
// when the link stays on the feed's domain, a table lookup for known
// third-party domains, and the conventional /favicon.ico location
// otherwise. Pure function, no network access.
func ResolveFavicon(f *storage.Feed, link string) string {
	domain := hostOf(link)
	if domain == "" {
		return f.ImageURL
	}

	if domain == hostOf(f.Link) || domain == hostOf(f.URL) {
		if f.ImageURL != "" {
			return f.ImageURL
		}
		return "https://" + domain + "/favicon.ico"
	}

	if icon, ok := faviconsByDomain[domain]; ok {
		return icon
	}
	for _, entry := range faviconPatterns {
		if entry.pattern.MatchString(domain) {
			return entry.icon
		}
	}
	return "https://" + domain + "/favicon.ico"
}

func hostOf(link string) string {
	u, err := url.Parse(strings.TrimSpace(link))
	if err != nil {
		return ""
	}
	return u.Hostname()
}
