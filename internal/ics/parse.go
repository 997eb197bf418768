package ics

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	appLog "famcal/internal/log"
	"famcal/internal/model"
)

// ParsedFeed is the result of parsing one raw iCalendar payload.
type ParsedFeed struct {
	// CalendarName is the feed's X-WR-CALNAME (or NAME) when present.
	CalendarName string
	Events       []model.Event
}

// Parse tokenizes raw iCalendar text into events, tolerating the vendor
// variation seen in real feeds:
//
//   - a VEVENT missing UID gets a synthetic UID hashed from its title and
//     start date, so dedup stays stable across repeated fetches
//   - a VEVENT missing SUMMARY becomes "Untitled Event"
//   - a VEVENT whose DTSTART cannot be read is dropped; the rest of the
//     feed still parses
//   - unknown and extension lines are ignored
//
// Parse fails outright only when the input is not iCalendar-shaped at all
// (no BEGIN:VCALENDAR and no VEVENT blocks), reporting ErrNotACalendarFeed.
func Parse(raw string) (*ParsedFeed, error) {
	lines := unfoldLines(raw)

	shaped := false
	out := &ParsedFeed{}

	var block []contentLine
	inEvent := false

	for _, cl := range lines {
		switch {
		case cl.name == "BEGIN" && strings.EqualFold(cl.value, "VCALENDAR"):
			shaped = true
		case cl.name == "BEGIN" && strings.EqualFold(cl.value, "VEVENT"):
			shaped = true
			inEvent = true
			block = block[:0]
		case cl.name == "END" && strings.EqualFold(cl.value, "VEVENT"):
			if inEvent {
				if ev, ok := buildEvent(block); ok {
					out.Events = append(out.Events, ev)
				}
			}
			inEvent = false
		case inEvent:
			block = append(block, cl)
		case cl.name == "X-WR-CALNAME" && out.CalendarName == "":
			out.CalendarName = unescapeText(cl.value)
		case cl.name == "NAME" && out.CalendarName == "":
			out.CalendarName = unescapeText(cl.value)
		}
	}

	if !shaped {
		return nil, ErrNotACalendarFeed
	}
	return out, nil
}

// contentLine is one unfolded iCalendar line split into its parts.
type contentLine struct {
	name   string
	params map[string]string
	value  string
}

// unfoldLines splits raw text into lines and applies RFC 5545 unfolding:
// a line starting with a space or tab continues the previous one.
func unfoldLines(raw string) []contentLine {
	raw = strings.ReplaceAll(raw, "\r\n", "\n")
	physical := strings.Split(raw, "\n")

	var logical []string
	for _, ln := range physical {
		if ln == "" {
			continue
		}
		if (ln[0] == ' ' || ln[0] == '\t') && len(logical) > 0 {
			logical[len(logical)-1] += ln[1:]
			continue
		}
		logical = append(logical, ln)
	}

	out := make([]contentLine, 0, len(logical))
	for _, ln := range logical {
		if cl, ok := splitContentLine(ln); ok {
			out = append(out, cl)
		}
	}
	return out
}

// splitContentLine parses NAME[;PARAM=VALUE...]:VALUE. Lines without a
// colon are not valid content lines and are dropped.
func splitContentLine(ln string) (contentLine, bool) {
	colon := strings.IndexByte(ln, ':')
	if colon < 0 {
		return contentLine{}, false
	}

	head := ln[:colon]
	value := ln[colon+1:]

	name := head
	var params map[string]string
	if semi := strings.IndexByte(head, ';'); semi >= 0 {
		name = head[:semi]
		params = make(map[string]string)
		for _, p := range strings.Split(head[semi+1:], ";") {
			if eq := strings.IndexByte(p, '='); eq >= 0 {
				key := strings.ToUpper(strings.TrimSpace(p[:eq]))
				params[key] = strings.Trim(p[eq+1:], `"`)
			}
		}
	}

	return contentLine{
		name:   strings.ToUpper(strings.TrimSpace(name)),
		params: params,
		value:  strings.TrimSpace(value),
	}, true
}

// buildEvent assembles one event from its block's lines. The second return
// is false when the block has no usable start date.
func buildEvent(block []contentLine) (model.Event, bool) {
	var ev model.Event
	var start, end *contentLine

	for i := range block {
		cl := block[i]
		switch cl.name {
		case "UID":
			if ev.UID == "" {
				ev.UID = cl.value
			}
		case "SUMMARY":
			if ev.Title == "" {
				ev.Title = unescapeText(cl.value)
			}
		case "DESCRIPTION":
			if ev.Description == "" {
				ev.Description = unescapeText(cl.value)
			}
		case "LOCATION":
			if ev.Location == "" {
				ev.Location = unescapeText(cl.value)
			}
		case "DTSTART":
			if start == nil {
				start = &block[i]
			}
		case "DTEND":
			if end == nil {
				end = &block[i]
			}
		}
	}

	if ev.Title == "" {
		ev.Title = "Untitled Event"
	}

	if start == nil {
		appLog.Debug("dropping event without DTSTART", "title", ev.Title)
		return model.Event{}, false
	}

	startDate, startTime, allDay, err := parseDateTimeValue(start.value, start.params)
	if err != nil {
		appLog.Debug("dropping event with unreadable DTSTART", "title", ev.Title, "value", start.value)
		return model.Event{}, false
	}
	ev.StartDate = startDate
	ev.AllDay = allDay
	if !allDay {
		ev.StartTime = startTime
	}

	if end != nil {
		if endDate, endTime, endAllDay, err := parseDateTimeValue(end.value, end.params); err == nil {
			d := endDate
			ev.EndDate = &d
			if !endAllDay && !allDay {
				ev.EndTime = endTime
			}
		}
	}

	if ev.UID == "" {
		ev.UID = syntheticUID(ev.Title, ev.StartDate)
	}
	return ev, true
}

// parseDateTimeValue normalizes the two DTSTART/DTEND shapes: a bare
// 8-digit date (all-day) or a date-time (trailing Z, explicit offset or a
// TZID parameter). For timed values the calendar date and wall-clock
// hour:minute are taken as written in the feed's stated zone; this core
// never converts between zones.
func parseDateTimeValue(value string, params map[string]string) (model.Date, *model.TimeOfDay, bool, error) {
	v := strings.TrimSpace(value)

	allDay := len(v) == 8 && allDigits(v)
	if strings.EqualFold(params["VALUE"], "DATE") {
		allDay = true
	}

	datePart := v
	var timePart string
	if t := strings.IndexByte(v, 'T'); t >= 0 {
		datePart = v[:t]
		timePart = v[t+1:]
	}

	d, err := parseBasicDate(datePart)
	if err != nil {
		return model.Date{}, nil, false, err
	}
	if allDay || timePart == "" {
		return d, nil, true, nil
	}

	// HHMMSS with an optional trailing Z or numeric offset.
	if len(timePart) < 4 || !allDigits(timePart[:4]) {
		return model.Date{}, nil, false, ErrNotACalendarFeed
	}
	tod := model.TimeOfDay{
		Hour:   int(timePart[0]-'0')*10 + int(timePart[1]-'0'),
		Minute: int(timePart[2]-'0')*10 + int(timePart[3]-'0'),
	}
	if tod.Hour > 23 || tod.Minute > 59 {
		return model.Date{}, nil, false, ErrNotACalendarFeed
	}
	return d, &tod, false, nil
}

func parseBasicDate(s string) (model.Date, error) {
	if len(s) != 8 || !allDigits(s) {
		return model.Date{}, ErrNotACalendarFeed
	}
	year := atoi(s[:4])
	month := atoi(s[4:6])
	day := atoi(s[6:8])
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return model.Date{}, ErrNotACalendarFeed
	}
	return model.NewDate(year, time.Month(month), day), nil
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return len(s) > 0
}

func atoi(s string) int {
	n := 0
	for i := 0; i < len(s); i++ {
		n = n*10 + int(s[i]-'0')
	}
	return n
}

// syntheticUID derives a stable identifier for a UID-less event so that
// repeated fetches of the same feed still dedup.
func syntheticUID(title string, start model.Date) string {
	sum := sha256.Sum256([]byte(title + "\x00" + start.String()))
	return "synthetic-" + hex.EncodeToString(sum[:8])
}

// unescapeText reverses RFC 5545 text escaping.
func unescapeText(s string) string {
	if !strings.ContainsRune(s, '\\') {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' || i+1 == len(s) {
			b.WriteByte(s[i])
			continue
		}
		i++
		switch s[i] {
		case 'n', 'N':
			b.WriteByte('\n')
		default:
			b.WriteByte(s[i])
		}
	}
	return b.String()
}
