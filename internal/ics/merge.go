package ics

import (
	"context"
	"sort"
	"sync"

	appLog "famcal/internal/log"
	"famcal/internal/model"
)

// DefaultMaxConcurrentFetches bounds merge fan-out when the caller does
// not choose its own limit.
const DefaultMaxConcurrentFetches = 6

// Merger fetches several feeds concurrently and folds their events into
// one sorted, per-feed-deduplicated timeline. Every feed is processed in
// isolation: one feed failing never disturbs the others.
type Merger struct {
	fetcher       *Fetcher
	maxConcurrent int
}

// NewMerger builds a Merger. A non-positive maxConcurrent falls back to
// DefaultMaxConcurrentFetches.
func NewMerger(fetcher *Fetcher, maxConcurrent int) *Merger {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrentFetches
	}
	return &Merger{fetcher: fetcher, maxConcurrent: maxConcurrent}
}

// MergeAll fetches, parses and filters every feed and returns the sorted
// union of the succeeding feeds' events, together with one FeedError per
// failed feed. Failures are collected, never returned as a top-level
// error, so a caller can report "N of M calendars failed" without losing
// the events that did load.
//
// Feeds are fetched concurrently up to the merger's limit; each fetch has
// its own timeout and shares no state with its siblings. Cancelling ctx
// abandons in-flight fetches (they have no remote side effects).
func (m *Merger) MergeAll(ctx context.Context, feeds []model.Feed, mode FilterMode, ref model.Date) ([]model.TimelineEntry, []FeedError) {
	type feedResult struct {
		entries []model.TimelineEntry
		err     *FeedError
	}

	results := make([]feedResult, len(feeds))
	sem := make(chan struct{}, m.maxConcurrent)
	var wg sync.WaitGroup

	for i, feed := range feeds {
		wg.Add(1)
		go func(i int, feed model.Feed) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			entries, err := m.collectFeed(ctx, feed, mode, ref)
			if err != nil {
				appLog.Error("feed skipped during merge", err, "id", feed.ID, "url", redactURL(feed.URL))
				results[i] = feedResult{err: &FeedError{FeedID: feed.ID, FeedName: feed.Name, Err: err}}
				return
			}
			results[i] = feedResult{entries: entries}
		}(i, feed)
	}
	wg.Wait()

	var merged []model.TimelineEntry
	var errs []FeedError
	for _, res := range results {
		if res.err != nil {
			errs = append(errs, *res.err)
			continue
		}
		merged = append(merged, res.entries...)
	}

	sortTimeline(merged)
	return merged, errs
}

// collectFeed runs the single-feed pipeline: validate, fetch, parse,
// filter, dedup by UID within the feed (first occurrence wins), and tag
// each event with its source. Events from different feeds are never
// deduplicated against each other; cross-feed identity is not assumed.
func (m *Merger) collectFeed(ctx context.Context, feed model.Feed, mode FilterMode, ref model.Date) ([]model.TimelineEntry, error) {
	raw, err := m.fetcher.Fetch(ctx, feed)
	if err != nil {
		return nil, err
	}

	parsed, err := Parse(raw)
	if err != nil {
		return nil, err
	}

	events := Filter(parsed.Events, mode, ref)

	seen := make(map[string]bool, len(events))
	entries := make([]model.TimelineEntry, 0, len(events))
	for _, ev := range events {
		if seen[ev.UID] {
			continue
		}
		seen[ev.UID] = true
		entries = append(entries, model.TimelineEntry{
			Event:          ev,
			SourceFeedID:   feed.ID,
			SourceFeedName: feed.Name,
		})
	}
	return entries, nil
}

// sortTimeline orders entries ascending by start date, then start time
// with all-day events ahead of timed ones on the same date, then title
// for determinism.
func sortTimeline(entries []model.TimelineEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return eventLess(entries[i].Event, entries[j].Event)
	})
}

// SortEvents applies the timeline ordering to a single feed's events.
func SortEvents(events []model.Event) {
	sort.SliceStable(events, func(i, j int) bool {
		return eventLess(events[i], events[j])
	})
}

func eventLess(a, b model.Event) bool {
	if c := a.StartDate.Compare(b.StartDate); c != 0 {
		return c < 0
	}
	switch {
	case a.StartTime == nil && b.StartTime != nil:
		return true
	case a.StartTime != nil && b.StartTime == nil:
		return false
	case a.StartTime != nil && b.StartTime != nil:
		if c := a.StartTime.Compare(*b.StartTime); c != 0 {
			return c < 0
		}
	}
	return a.Title < b.Title
}
