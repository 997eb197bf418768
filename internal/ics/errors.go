package ics

import (
	"errors"
	"fmt"
)

// ErrInvalidURL marks a feed URL rejected before any network call.
var ErrInvalidURL = errors.New("invalid calendar URL")

// ErrNotACalendarFeed marks input that is not iCalendar-shaped at all.
var ErrNotACalendarFeed = errors.New("not an iCalendar feed")

// FetchError attributes a network, status or empty-body failure to one
// feed. It never propagates to sibling feeds during a merge.
type FetchError struct {
	FeedID   string
	FeedName string
	URL      string
	Err      error
}

func (e *FetchError) Error() string {
	name := e.FeedName
	if name == "" {
		name = e.FeedID
	}
	return fmt.Sprintf("fetch calendar %q: %v", name, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// FeedError records any per-feed failure (validation, fetch or parse)
// collected during a multi-feed merge.
type FeedError struct {
	FeedID   string `json:"feedId"`
	FeedName string `json:"feedName"`
	Err      error  `json:"-"`
}

func (e FeedError) Error() string {
	return fmt.Sprintf("feed %q: %v", e.FeedID, e.Err)
}

func (e FeedError) Unwrap() error { return e.Err }
