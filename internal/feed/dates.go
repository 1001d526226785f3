package feed

import (
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// parseWhen parses a freely formatted date string ("Sun, 19 May 2002
// 15:21:36 GMT" and friends) into UTC. Absent or unparseable dates yield
// nil rather than an error.
func parseWhen(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	t, err := dateparse.ParseAny(s)
	if err != nil {
		return nil
	}
	u := t.UTC()
	return &u
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
