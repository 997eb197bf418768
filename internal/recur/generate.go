package recur

import (
	"errors"
	"time"

	"famcal/internal/model"
)

// RangeCap bounds occurrence generation from the caller's side. A rule
// whose end policy is Never must be capped by at least one of the two
// fields; Generate refuses to run unbounded.
type RangeCap struct {
	// Until, when set, stops generation once the next candidate falls
	// after it (inclusive bound).
	Until model.Date
	// MaxCount, when positive, stops generation after that many
	// occurrences.
	MaxCount int
}

// ErrUnboundedRule is returned when a never-ending rule is generated
// without any RangeCap.
var ErrUnboundedRule = errors.New("recurrence rule has no end and no range cap")

// Generate expands a rule anchored at anchor into the ordered list of
// concrete occurrence dates. It is a pure function of its inputs: calling
// it twice with the same arguments yields the same dates.
//
// Month-length edge cases are clamped rather than skipped: a monthly rule
// anchored on the 31st lands on the 30th (or 28th/29th) in shorter months,
// and a yearly rule anchored on Feb 29 lands on Feb 28 in non-leap years.
func Generate(anchor model.Date, rule Rule, rc RangeCap) ([]model.Date, error) {
	if rule.End.Type == EndNever && rc.Until.IsZero() && rc.MaxCount <= 0 {
		return nil, ErrUnboundedRule
	}

	e := &emitter{cap: rc, end: rule.End}

	switch rule.Pattern {
	case Daily:
		for d := anchor; e.emit(d); d = d.AddDays(1) {
		}
	case Weekly:
		if len(rule.DaysOfWeek) == 0 {
			for d := anchor; e.emit(d); d = d.AddDays(7) {
			}
		} else {
			generateWeekly(anchor, rule.DaysOfWeek, e)
		}
	case Monthly:
		for i := 0; ; i++ {
			d := sameDayOfMonth(anchor, i)
			if !e.emit(d) {
				break
			}
		}
	case Yearly:
		for i := 0; ; i++ {
			d := sameDayOfYear(anchor, i)
			if !e.emit(d) {
				break
			}
		}
	default:
		return nil, ErrInvalidRule
	}

	return e.dates, nil
}

// GenerateOccurrences is Generate with each date wrapped as an Occurrence
// attributed to the anchored event.
func GenerateOccurrences(anchorEventID string, anchor model.Date, rule Rule, rc RangeCap) ([]model.Occurrence, error) {
	dates, err := Generate(anchor, rule, rc)
	if err != nil {
		return nil, err
	}
	occs := make([]model.Occurrence, len(dates))
	for i, d := range dates {
		occs[i] = model.Occurrence{AnchorEventID: anchorEventID, Date: d, SequenceIndex: i}
	}
	return occs, nil
}

// emitter accumulates candidate dates and applies the termination rules.
// emit returns false once generation must stop; the candidate that caused
// the stop is not included.
type emitter struct {
	cap   RangeCap
	end   EndPolicy
	dates []model.Date
}

func (e *emitter) emit(d model.Date) bool {
	if e.end.Type == EndOnDate && d.After(e.end.Date) {
		return false
	}
	if !e.cap.Until.IsZero() && d.After(e.cap.Until) {
		return false
	}

	e.dates = append(e.dates, d)

	if e.end.Type == EndAfterCount && len(e.dates) >= e.end.Count {
		return false
	}
	if e.cap.MaxCount > 0 && len(e.dates) >= e.cap.MaxCount {
		return false
	}
	return true
}

// generateWeekly walks week by week from the week containing the anchor,
// emitting each selected weekday in calendar order (Sunday through
// Saturday). Selected days earlier in the anchor's own week are skipped so
// that no occurrence precedes the anchor.
func generateWeekly(anchor model.Date, days []time.Weekday, e *emitter) {
	weekStart := anchor.AddDays(-int(anchor.Weekday())) // Sunday of anchor's week
	for {
		for _, wd := range days {
			d := weekStart.AddDays(int(wd))
			if d.Before(anchor) {
				continue
			}
			if !e.emit(d) {
				return
			}
		}
		weekStart = weekStart.AddDays(7)
	}
}

// sameDayOfMonth returns the anchor's day-of-month in the month i months
// after the anchor, clamped to the target month's length.
func sameDayOfMonth(anchor model.Date, i int) model.Date {
	// Normalize the month offset through time.Date on day 1 so that adding
	// months never rolls over into the following month.
	first := time.Date(anchor.Year, anchor.Month+time.Month(i), 1, 0, 0, 0, 0, time.UTC)
	y, m, _ := first.Date()
	day := anchor.Day
	if max := model.DaysInMonth(y, m); day > max {
		day = max
	}
	return model.Date{Year: y, Month: m, Day: day}
}

// sameDayOfYear returns the anchor's month/day in the year i years after
// the anchor, clamping Feb 29 to Feb 28 when the target year is not a
// leap year.
func sameDayOfYear(anchor model.Date, i int) model.Date {
	y := anchor.Year + i
	day := anchor.Day
	if max := model.DaysInMonth(y, anchor.Month); day > max {
		day = max
	}
	return model.Date{Year: y, Month: anchor.Month, Day: day}
}
