package ics

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	appLog "famcal/internal/log"
	"famcal/internal/model"
)

// DefaultFetchTimeout bounds a single feed GET when the caller does not
// choose its own timeout.
const DefaultFetchTimeout = 10 * time.Second

const userAgent = "famcald/1.0 (+https://famcal.local)"

// ValidateURL reports whether raw is an acceptable feed URL: after
// trimming it must start with http://, https:// or webcal:// (scheme
// matched case-insensitively). Everything else, including empty and
// whitespace-only strings, is rejected.
func ValidateURL(raw string) bool {
	s := strings.ToLower(strings.TrimSpace(raw))
	return strings.HasPrefix(s, "http://") ||
		strings.HasPrefix(s, "https://") ||
		strings.HasPrefix(s, "webcal://")
}

// NormalizeURL trims raw and rewrites a webcal:// scheme to https://.
// webcal is a subscription-registration convention only; real providers
// (Google Calendar, TeamSnap, ParentSquare) serve the same path over
// https.
func NormalizeURL(raw string) (string, error) {
	if !ValidateURL(raw) {
		return "", fmt.Errorf("%w: %q", ErrInvalidURL, strings.TrimSpace(raw))
	}
	s := strings.TrimSpace(raw)
	if len(s) >= len("webcal://") && strings.EqualFold(s[:len("webcal://")], "webcal://") {
		s = "https://" + s[len("webcal://"):]
	}
	return s, nil
}

// Fetcher retrieves raw feed text over HTTP. One GET per call, no retries
// and no caching: retry policy belongs to the interactive caller and
// caching to the layer around this core.
type Fetcher struct {
	client *http.Client
}

// NewFetcher builds a Fetcher whose requests are bounded by timeout.
// A non-positive timeout falls back to DefaultFetchTimeout.
func NewFetcher(timeout time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}
	return &Fetcher{
		client: &http.Client{Timeout: timeout},
	}
}

// Fetch retrieves the feed's raw iCalendar text. Any non-2xx status,
// network failure or empty body is reported as a *FetchError carrying the
// feed's attribution.
func (f *Fetcher) Fetch(ctx context.Context, feed model.Feed) (string, error) {
	target, err := NormalizeURL(feed.URL)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", &FetchError{FeedID: feed.ID, FeedName: feed.Name, URL: target, Err: err}
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/calendar, text/plain")

	appLog.Debug("feed fetch start", "id", feed.ID, "url", redactURL(target))

	resp, err := f.client.Do(req)
	if err != nil {
		return "", &FetchError{FeedID: feed.ID, FeedName: feed.Name, URL: target, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &FetchError{
			FeedID:   feed.ID,
			FeedName: feed.Name,
			URL:      target,
			Err:      fmt.Errorf("unexpected status %s", resp.Status),
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &FetchError{FeedID: feed.ID, FeedName: feed.Name, URL: target, Err: err}
	}
	if strings.TrimSpace(string(body)) == "" {
		return "", &FetchError{
			FeedID:   feed.ID,
			FeedName: feed.Name,
			URL:      target,
			Err:      fmt.Errorf("feed body is empty"),
		}
	}

	appLog.Debug("feed fetch done", "id", feed.ID, "url", redactURL(target), "bytes", len(body))
	return string(body), nil
}

// redactURL hides path and query when logging feed URLs, which often embed
// private tokens.
func redactURL(u string) string {
	i := strings.Index(u, "://")
	if i < 0 {
		return "...(redacted)"
	}
	rest := u[i+3:]
	if j := strings.IndexByte(rest, '/'); j >= 0 {
		return u[:i+3] + rest[:j] + "/...(redacted)"
	}
	return u
}
