package model

// Event is one event read from an external calendar feed. Events are built
// fresh on every fetch and never mutated afterwards; identity within a feed
// is the UID.
type Event struct {
	UID         string     `json:"uid"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Location    string     `json:"location,omitempty"`
	StartDate   Date       `json:"startDate"`
	StartTime   *TimeOfDay `json:"startTime,omitempty"`
	EndDate     *Date      `json:"endDate,omitempty"`
	EndTime     *TimeOfDay `json:"endTime,omitempty"`
	AllDay      bool       `json:"isAllDay"`
}

// Feed is a remote calendar subscription. The URL is the feed's identity
// and must use the http, https or webcal scheme.
type Feed struct {
	URL  string `json:"url"`
	ID   string `json:"id"`
	Name string `json:"name"`
}

// TimelineEntry is an Event tagged with the feed it came from. It only
// appears in merged multi-feed output.
type TimelineEntry struct {
	Event
	SourceFeedID   string `json:"sourceFeedId"`
	SourceFeedName string `json:"sourceFeedName"`
}

// Occurrence is one concrete instance of a locally authored recurring
// event. Occurrences are derived on demand from the event's recurrence
// rule and are never stored.
type Occurrence struct {
	AnchorEventID string `json:"anchorEventId"`
	Date          Date   `json:"date"`
	SequenceIndex int    `json:"sequenceIndex"`
}
