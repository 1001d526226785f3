package feed

import (
	"errors"
	"fmt"
)

// ErrNoFeed reports that a document was fetched fine but no feed could be
// recognized in it. Callers surface this as "no feed found", not a failure.
var ErrNoFeed = errors.New("no feed recognized")

// NetworkError wraps transport-level failures (DNS, refused connections,
// timeouts, HTTP error statuses) so callers can tell "unreachable" apart
// from "not a feed".
type NetworkError struct {
	URL string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("fetching %s: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// ParseError wraps malformed-document failures for a recognized format.
type ParseError struct {
	URL string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parsing %s: %v", e.URL, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
