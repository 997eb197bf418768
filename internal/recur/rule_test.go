package recur

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"famcal/internal/model"
)

func date(s string) model.Date {
	d, err := model.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestNewRuleValidation(t *testing.T) {
	anchor := date("2025-04-01")

	tests := []struct {
		name    string
		pattern Pattern
		days    []time.Weekday
		end     EndPolicy
		wantErr bool
	}{
		{name: "daily never", pattern: Daily, end: Never()},
		{name: "weekly with days", pattern: Weekly, days: []time.Weekday{time.Tuesday, time.Thursday}, end: AfterCount(10)},
		{name: "end on anchor date", pattern: Daily, end: OnDate(anchor)},
		{name: "unknown pattern", pattern: Pattern("fortnightly"), end: Never(), wantErr: true},
		{name: "count of zero", pattern: Daily, end: AfterCount(0), wantErr: true},
		{name: "count above cap", pattern: Daily, end: AfterCount(366), wantErr: true},
		{name: "count at cap", pattern: Daily, end: AfterCount(365)},
		{name: "end date before anchor", pattern: Daily, end: OnDate(date("2025-03-31")), wantErr: true},
		{name: "end date missing", pattern: Daily, end: EndPolicy{Type: EndOnDate}, wantErr: true},
		{name: "unknown end type", pattern: Daily, end: EndPolicy{Type: EndType("sometime")}, wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewRule(anchor, tc.pattern, tc.days, tc.end)
			if tc.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidRule)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestNewRuleNormalizesDays(t *testing.T) {
	r, err := NewRule(date("2025-04-01"), Weekly,
		[]time.Weekday{time.Thursday, time.Tuesday, time.Thursday}, Never())
	require.NoError(t, err)
	assert.Equal(t, []time.Weekday{time.Tuesday, time.Thursday}, r.DaysOfWeek)
}

func TestNewRuleIgnoresDaysForNonWeekly(t *testing.T) {
	r, err := NewRule(date("2025-04-01"), Daily, []time.Weekday{time.Monday}, Never())
	require.NoError(t, err)
	assert.Empty(t, r.DaysOfWeek)
}

func TestParseRule(t *testing.T) {
	anchor := date("2025-04-01")

	t.Run("full shape", func(t *testing.T) {
		r, err := ParseRule(anchor, RuleInput{
			Pattern:    "weekly",
			DaysOfWeek: []string{"Monday", "wednesday"},
			EndType:    "date",
			EndDate:    "2025-06-30",
		})
		require.NoError(t, err)
		assert.Equal(t, Weekly, r.Pattern)
		assert.Equal(t, []time.Weekday{time.Monday, time.Wednesday}, r.DaysOfWeek)
		assert.Equal(t, EndOnDate, r.End.Type)
		assert.Equal(t, date("2025-06-30"), r.End.Date)
	})

	t.Run("empty end type means never", func(t *testing.T) {
		r, err := ParseRule(anchor, RuleInput{Pattern: "daily"})
		require.NoError(t, err)
		assert.Equal(t, EndNever, r.End.Type)
	})

	t.Run("count shape", func(t *testing.T) {
		r, err := ParseRule(anchor, RuleInput{Pattern: "monthly", EndType: "count", EndCount: 12})
		require.NoError(t, err)
		assert.Equal(t, 12, r.End.Count)
	})

	t.Run("unrecognized weekday", func(t *testing.T) {
		_, err := ParseRule(anchor, RuleInput{Pattern: "weekly", DaysOfWeek: []string{"Funday"}})
		assert.ErrorIs(t, err, ErrInvalidRule)
	})

	t.Run("count outside range", func(t *testing.T) {
		for _, n := range []int{0, -1, 366} {
			_, err := ParseRule(anchor, RuleInput{Pattern: "daily", EndType: "count", EndCount: n})
			assert.ErrorIs(t, err, ErrInvalidRule, "endCount %d", n)
		}
	})

	t.Run("bad end date", func(t *testing.T) {
		_, err := ParseRule(anchor, RuleInput{Pattern: "daily", EndType: "date", EndDate: "soon"})
		assert.ErrorIs(t, err, ErrInvalidRule)
	})
}
