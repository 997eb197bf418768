package ics

import (
	"time"

	ical "github.com/arran4/golang-ical"

	"famcal/internal/model"
)

// BuildCalendar renders a merged timeline back out as a single iCalendar
// feed, so the family's unified schedule can itself be subscribed to. This
// is a read-only projection of our own merge result, not a write-back to
// any remote feed.
//
// UIDs are qualified by the source feed so that identical UIDs from
// different feeds stay distinct in the export.
func BuildCalendar(name string, entries []model.TimelineEntry) *ical.Calendar {
	cal := ical.NewCalendar()
	cal.SetProductId("-//famcal//famcald//EN")
	cal.SetMethod(ical.MethodPublish)
	if name != "" {
		cal.SetXWRCalName(name)
	}

	now := time.Now().UTC()
	for _, en := range entries {
		ev := cal.AddEvent(en.SourceFeedID + "/" + en.UID)
		ev.SetDtStampTime(now)
		ev.SetSummary(en.Title)
		if en.Description != "" {
			ev.SetDescription(en.Description)
		}
		if en.Location != "" {
			ev.SetLocation(en.Location)
		}

		if en.AllDay || en.StartTime == nil {
			ev.SetAllDayStartAt(en.StartDate.Time())
			if en.EndDate != nil {
				ev.SetAllDayEndAt(en.EndDate.Time())
			}
		} else {
			ev.SetStartAt(timedUTC(en.StartDate, *en.StartTime))
			if en.EndDate != nil && en.EndTime != nil {
				ev.SetEndAt(timedUTC(*en.EndDate, *en.EndTime))
			}
		}
	}
	return cal
}

func timedUTC(d model.Date, t model.TimeOfDay) time.Time {
	return time.Date(d.Year, d.Month, d.Day, t.Hour, t.Minute, 0, 0, time.UTC)
}
