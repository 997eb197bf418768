package ics

import (
	"fmt"

	"famcal/internal/model"
)

// FilterMode names a date window relative to a reference date.
type FilterMode string

const (
	FilterAll       FilterMode = "all"
	FilterUpcoming  FilterMode = "upcoming"
	FilterThisWeek  FilterMode = "this_week"
	FilterThisMonth FilterMode = "this_month"
)

// ParseFilterMode maps an API string to a FilterMode. The empty string
// means no filtering.
func ParseFilterMode(s string) (FilterMode, error) {
	switch FilterMode(s) {
	case "":
		return FilterAll, nil
	case FilterAll, FilterUpcoming, FilterThisWeek, FilterThisMonth:
		return FilterMode(s), nil
	default:
		return "", fmt.Errorf("unknown date filter %q", s)
	}
}

// window returns the inclusive [from, to] date window for a mode. The
// second return is false for FilterAll (no window).
func (m FilterMode) window(ref model.Date) (model.Date, model.Date, bool) {
	switch m {
	case FilterUpcoming:
		return ref, ref.AddDays(30), true
	case FilterThisWeek:
		return ref, ref.AddDays(6), true
	case FilterThisMonth:
		return ref, ref.LastOfMonth(), true
	default:
		return model.Date{}, model.Date{}, false
	}
}

// Filter keeps the events whose start date falls inside the mode's window
// around ref. Membership is decided on calendar dates only; time-of-day is
// irrelevant. Events starting before ref are always excluded except under
// FilterAll.
func Filter(events []model.Event, mode FilterMode, ref model.Date) []model.Event {
	from, to, bounded := mode.window(ref)
	if !bounded {
		return events
	}
	out := make([]model.Event, 0, len(events))
	for _, ev := range events {
		if ev.StartDate.Before(from) || ev.StartDate.After(to) {
			continue
		}
		out = append(out, ev)
	}
	return out
}

// FilterEntries is Filter over merged timeline entries.
func FilterEntries(entries []model.TimelineEntry, mode FilterMode, ref model.Date) []model.TimelineEntry {
	from, to, bounded := mode.window(ref)
	if !bounded {
		return entries
	}
	out := make([]model.TimelineEntry, 0, len(entries))
	for _, en := range entries {
		if en.StartDate.Before(from) || en.StartDate.After(to) {
			continue
		}
		out = append(out, en)
	}
	return out
}
