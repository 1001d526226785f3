package feed

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/newsroomd/newsroom/internal/config"
)

// Fetcher performs bounded GET requests against feed sources.
type Fetcher struct {
	client    *http.Client
	userAgent string
}

func NewFetcher(cfg *config.Config) *Fetcher {
	return &Fetcher{
		client: &http.Client{
			Timeout: cfg.Fetch.HTTPTimeout,
		},
		userAgent: cfg.Fetch.UserAgent,
	}
}

// Get fetches the body at url. Transport failures, timeouts and HTTP error
// statuses all come back as *NetworkError.
func (f *Fetcher) Get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml, text/xml, text/html")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &NetworkError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, &NetworkError{URL: url, Err: fmt.Errorf("HTTP error: %d", resp.StatusCode)}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &NetworkError{URL: url, Err: err}
	}
	return body, nil
}
