package ics

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"famcal/internal/model"
)

func TestBuildCalendar(t *testing.T) {
	tod := func(h, m int) *model.TimeOfDay { return &model.TimeOfDay{Hour: h, Minute: m} }
	endDate := day("2025-03-15")

	entries := []model.TimelineEntry{
		{
			Event: model.Event{
				UID:       "holiday",
				Title:     "Spring Break",
				StartDate: day("2025-03-14"),
				AllDay:    true,
			},
			SourceFeedID:   "school",
			SourceFeedName: "School",
		},
		{
			Event: model.Event{
				UID:         "concert",
				Title:       "Spring Concert",
				Description: "Doors at 6",
				Location:    "Auditorium",
				StartDate:   day("2025-03-15"),
				StartTime:   tod(18, 30),
				EndDate:     &endDate,
				EndTime:     tod(20, 0),
			},
			SourceFeedID:   "pta",
			SourceFeedName: "PTA",
		},
	}

	cal := BuildCalendar("Family Calendar", entries)
	out := cal.Serialize()

	assert.Contains(t, out, "BEGIN:VCALENDAR")
	assert.Contains(t, out, "X-WR-CALNAME:Family Calendar")
	assert.Contains(t, out, "UID:school/holiday")
	assert.Contains(t, out, "UID:pta/concert")
	assert.Contains(t, out, "SUMMARY:Spring Concert")
	assert.Contains(t, out, "LOCATION:Auditorium")
	// All-day export uses a VALUE=DATE start.
	assert.Contains(t, out, "DTSTART;VALUE=DATE:20250314")
	assert.Contains(t, out, "DTSTART:20250315T183000Z")
	assert.Contains(t, out, "DTEND:20250315T200000Z")
	assert.Equal(t, 2, strings.Count(out, "BEGIN:VEVENT"))
}

func TestBuildCalendarSameUIDFromDifferentFeeds(t *testing.T) {
	entries := []model.TimelineEntry{
		{Event: model.Event{UID: "game", Title: "Game", StartDate: day("2025-03-20"), AllDay: true}, SourceFeedID: "soccer"},
		{Event: model.Event{UID: "game", Title: "Game", StartDate: day("2025-03-21"), AllDay: true}, SourceFeedID: "baseball"},
	}

	out := BuildCalendar("", entries).Serialize()
	assert.Contains(t, out, "UID:soccer/game")
	assert.Contains(t, out, "UID:baseball/game")
}

func TestBuildCalendarRoundTripsThroughParse(t *testing.T) {
	entries := []model.TimelineEntry{
		{Event: model.Event{UID: "e1", Title: "Field Day", StartDate: day("2025-05-02"), AllDay: true}, SourceFeedID: "school"},
	}

	out := BuildCalendar("Family Calendar", entries).Serialize()
	parsed, err := Parse(out)
	require.NoError(t, err)
	assert.Equal(t, "Family Calendar", parsed.CalendarName)
	require.Len(t, parsed.Events, 1)
	assert.Equal(t, "Field Day", parsed.Events[0].Title)
	assert.Equal(t, "2025-05-02", parsed.Events[0].StartDate.String())
	assert.True(t, parsed.Events[0].AllDay)
}
