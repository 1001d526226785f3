package feed

import (
	"net/url"
	"strings"
)

// maxDescriptionLength caps item descriptions so a feed inlining full
// article HTML cannot balloon storage.
const maxDescriptionLength = 1400

// SanitizeLink canonicalizes an item link so the same resource never shows
// up as two different links across fetches: surrounding whitespace is
// trimmed, duplicated path slashes collapsed, and utm_* tracking parameters
// dropped.
func SanitizeLink(link string) string {
	link = strings.TrimSpace(link)
	if link == "" {
		return link
	}

	u, err := url.Parse(link)
	if err != nil {
		return link
	}

	if u.Path != "" {
		for strings.Contains(u.Path, "//") {
			u.Path = strings.ReplaceAll(u.Path, "//", "/")
		}
	}

	if u.RawQuery != "" {
		q := u.Query()
		for key := range q {
			if strings.HasPrefix(strings.ToLower(key), "utm_") {
				q.Del(key)
			}
		}
		u.RawQuery = q.Encode()
	}

	return u.String()
}

// TruncateDescription enforces the description cap. Truncation counts
// characters, not bytes.
func TruncateDescription(s string) string {
	runes := []rune(s)
	if len(runes) <= maxDescriptionLength {
		return s
	}
	return string(runes[:maxDescriptionLength])
}

// CanonicalFeedURL strips the trailing slash so a feed URL has a single
// identity key in the store.
func CanonicalFeedURL(u string) string {
	return strings.TrimRight(strings.TrimSpace(u), "/")
}
