package recur

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"famcal/internal/model"
)

// ErrInvalidRule is wrapped by every rule validation failure.
var ErrInvalidRule = errors.New("invalid recurrence rule")

// MaxEndCount bounds count-limited rules to prevent runaway expansion.
const MaxEndCount = 365

// Pattern is the repeat cadence of a rule.
type Pattern string

const (
	Daily   Pattern = "daily"
	Weekly  Pattern = "weekly"
	Monthly Pattern = "monthly"
	Yearly  Pattern = "yearly"
)

// EndType selects how a rule terminates.
type EndType string

const (
	EndNever      EndType = "never"
	EndOnDate     EndType = "date"
	EndAfterCount EndType = "count"
)

// EndPolicy describes when occurrence generation stops. Date is meaningful
// only for EndOnDate, Count only for EndAfterCount.
type EndPolicy struct {
	Type  EndType
	Date  model.Date
	Count int
}

// Never repeats indefinitely; the caller must bound generation externally.
func Never() EndPolicy { return EndPolicy{Type: EndNever} }

// OnDate stops once the next occurrence would fall after d.
func OnDate(d model.Date) EndPolicy { return EndPolicy{Type: EndOnDate, Date: d} }

// AfterCount stops after n occurrences have been emitted.
func AfterCount(n int) EndPolicy { return EndPolicy{Type: EndAfterCount, Count: n} }

// Rule is a validated repeat pattern for a locally authored event. A Rule
// is immutable once built; it belongs to exactly one event and has no
// lifecycle of its own.
type Rule struct {
	Pattern Pattern

	// DaysOfWeek is meaningful only for weekly rules. Empty means the rule
	// repeats on the anchor date's weekday. Always held in calendar order
	// (Sunday through Saturday).
	DaysOfWeek []time.Weekday

	End EndPolicy
}

// NewRule validates and builds a Rule against the anchor date of the event
// that owns it. All failures wrap ErrInvalidRule.
func NewRule(anchor model.Date, pattern Pattern, daysOfWeek []time.Weekday, end EndPolicy) (Rule, error) {
	switch pattern {
	case Daily, Weekly, Monthly, Yearly:
	default:
		return Rule{}, fmt.Errorf("%w: unknown pattern %q", ErrInvalidRule, pattern)
	}

	var days []time.Weekday
	if pattern == Weekly && len(daysOfWeek) > 0 {
		seen := make(map[time.Weekday]bool)
		for _, wd := range daysOfWeek {
			if wd < time.Sunday || wd > time.Saturday {
				return Rule{}, fmt.Errorf("%w: weekday out of range: %d", ErrInvalidRule, wd)
			}
			if !seen[wd] {
				seen[wd] = true
				days = append(days, wd)
			}
		}
		sort.Slice(days, func(i, j int) bool { return days[i] < days[j] })
	}

	switch end.Type {
	case EndNever:
	case EndOnDate:
		if end.Date.IsZero() {
			return Rule{}, fmt.Errorf("%w: end date is required", ErrInvalidRule)
		}
		if end.Date.Before(anchor) {
			return Rule{}, fmt.Errorf("%w: end date %s precedes anchor %s", ErrInvalidRule, end.Date, anchor)
		}
	case EndAfterCount:
		if end.Count < 1 || end.Count > MaxEndCount {
			return Rule{}, fmt.Errorf("%w: end count %d outside [1, %d]", ErrInvalidRule, end.Count, MaxEndCount)
		}
	default:
		return Rule{}, fmt.Errorf("%w: unknown end type %q", ErrInvalidRule, end.Type)
	}

	return Rule{Pattern: pattern, DaysOfWeek: days, End: end}, nil
}

// RuleInput is the recurrence shape accepted from the authoring UI.
type RuleInput struct {
	Pattern    string   `json:"pattern"`
	DaysOfWeek []string `json:"daysOfWeek,omitempty"`
	EndType    string   `json:"endType"`
	EndDate    string   `json:"endDate,omitempty"`
	EndCount   int      `json:"endCount,omitempty"`
}

// ParseRule validates a RuleInput against the anchor date and builds a
// Rule. Weekday names are full English names, matched case-insensitively.
func ParseRule(anchor model.Date, in RuleInput) (Rule, error) {
	var days []time.Weekday
	for _, name := range in.DaysOfWeek {
		wd, err := parseWeekday(name)
		if err != nil {
			return Rule{}, err
		}
		days = append(days, wd)
	}

	var end EndPolicy
	switch in.EndType {
	case "", string(EndNever):
		end = Never()
	case string(EndOnDate):
		d, err := model.ParseDate(in.EndDate)
		if err != nil {
			return Rule{}, fmt.Errorf("%w: bad end date: %v", ErrInvalidRule, err)
		}
		end = OnDate(d)
	case string(EndAfterCount):
		end = AfterCount(in.EndCount)
	default:
		return Rule{}, fmt.Errorf("%w: unknown end type %q", ErrInvalidRule, in.EndType)
	}

	return NewRule(anchor, Pattern(in.Pattern), days, end)
}

var weekdayNames = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

func parseWeekday(name string) (time.Weekday, error) {
	wd, ok := weekdayNames[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return 0, fmt.Errorf("%w: unrecognized weekday %q", ErrInvalidRule, name)
	}
	return wd, nil
}
