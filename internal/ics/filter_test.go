package ics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"famcal/internal/model"
)

func day(s string) model.Date {
	d, err := model.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func eventOn(title, start string) model.Event {
	return model.Event{UID: title, Title: title, StartDate: day(start), AllDay: true}
}

func TestParseFilterMode(t *testing.T) {
	for s, want := range map[string]FilterMode{
		"":           FilterAll,
		"all":        FilterAll,
		"upcoming":   FilterUpcoming,
		"this_week":  FilterThisWeek,
		"this_month": FilterThisMonth,
	} {
		got, err := ParseFilterMode(s)
		require.NoError(t, err, "input %q", s)
		assert.Equal(t, want, got, "input %q", s)
	}

	_, err := ParseFilterMode("next_year")
	assert.Error(t, err)
}

func TestFilterWindows(t *testing.T) {
	ref := day("2025-03-15")
	events := []model.Event{
		eventOn("yesterday", "2025-03-14"),
		eventOn("today", "2025-03-15"),
		eventOn("week edge", "2025-03-21"),
		eventOn("past week edge", "2025-03-22"),
		eventOn("month end", "2025-03-31"),
		eventOn("next month", "2025-04-01"),
		eventOn("day thirty", "2025-04-14"),
		eventOn("day thirty one", "2025-04-15"),
	}

	titles := func(evs []model.Event) []string {
		out := make([]string, len(evs))
		for i, ev := range evs {
			out[i] = ev.Title
		}
		return out
	}

	t.Run("all keeps everything including the past", func(t *testing.T) {
		assert.Len(t, Filter(events, FilterAll, ref), len(events))
	})

	t.Run("upcoming is ref through ref+30 inclusive", func(t *testing.T) {
		got := titles(Filter(events, FilterUpcoming, ref))
		assert.Equal(t, []string{"today", "week edge", "past week edge", "month end", "next month", "day thirty"}, got)
	})

	t.Run("this_week is ref through ref+6 inclusive", func(t *testing.T) {
		got := titles(Filter(events, FilterThisWeek, ref))
		assert.Equal(t, []string{"today", "week edge"}, got)
	})

	t.Run("this_month is ref through last day of ref's month", func(t *testing.T) {
		got := titles(Filter(events, FilterThisMonth, ref))
		assert.Equal(t, []string{"today", "week edge", "past week edge", "month end"}, got)
	})
}

func TestFilterThisMonthStartsAtReference(t *testing.T) {
	// An event earlier in the reference month is excluded; the window
	// begins at the reference date, not the first of the month.
	ref := day("2025-03-15")
	events := []model.Event{eventOn("early march", "2025-03-01")}
	assert.Empty(t, Filter(events, FilterThisMonth, ref))
}

func TestFilterEntries(t *testing.T) {
	ref := day("2025-03-15")
	entries := []model.TimelineEntry{
		{Event: eventOn("past", "2025-03-01"), SourceFeedID: "a"},
		{Event: eventOn("in window", "2025-03-16"), SourceFeedID: "a"},
	}

	got := FilterEntries(entries, FilterUpcoming, ref)
	require.Len(t, got, 1)
	assert.Equal(t, "in window", got[0].Title)

	assert.Len(t, FilterEntries(entries, FilterAll, ref), 2)
}
