// Package schedule turns a template's frequency rule into concrete due
// dates for a calendar month. Everything here is pure.
package schedule

import (
	"iter"
	"slices"
	"time"

	"github.com/nhle/obligations/internal/model"
)

// DaysIn returns the number of days in the given month.
func DaysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// ResolveMonthly returns the due date for a day-of-month anchor, clamped
// into the month: anchor 31 in April yields April 30, in a non-leap
// February yields February 28. Anchors below 1 clamp to the 1st.
func ResolveMonthly(year int, month time.Month, dayOfMonth int) time.Time {
	day := min(max(dayOfMonth, 1), DaysIn(year, month))
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// Weekly yields every date in the month falling on the ISO weekday
// (1 = Monday ... 7 = Sunday), in ascending order. Each range over the
// sequence recomputes it. An invalid weekday yields nothing.
func Weekly(year int, month time.Month, weekday int) iter.Seq[time.Time] {
	return func(yield func(time.Time) bool) {
		if !model.ValidWeekday(weekday) {
			return
		}
		target := time.Weekday(weekday % 7)
		first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
		offset := (int(target) - int(first.Weekday()) + 7) % 7
		for d := first.AddDate(0, 0, offset); d.Month() == month; d = d.AddDate(0, 0, 7) {
			if !yield(d) {
				return
			}
		}
	}
}

// ResolveWeekly collects Weekly into a slice.
func ResolveWeekly(year int, month time.Month, weekday int) []time.Time {
	return slices.Collect(Weekly(year, month, weekday))
}

// DueDates returns the dates a template produces in a periodic sweep.
// ONE_OFF templates and templates with a broken anchor produce none.
func DueDates(t model.TaskTemplate, year int, month time.Month) []time.Time {
	switch t.Frequency {
	case model.FrequencyMonthly:
		if t.DayOfMonth == nil || !model.ValidDayOfMonth(*t.DayOfMonth) {
			return nil
		}
		return []time.Time{ResolveMonthly(year, month, *t.DayOfMonth)}
	case model.FrequencyWeekly:
		if t.Weekday == nil {
			return nil
		}
		return ResolveWeekly(year, month, *t.Weekday)
	}
	return nil
}

// Period is a calendar month.
type Period struct {
	Year  int
	Month time.Month
}

func (p Period) Start() time.Time {
	return time.Date(p.Year, p.Month, 1, 0, 0, 0, 0, time.UTC)
}

// End returns the last day of the period.
func (p Period) End() time.Time {
	return time.Date(p.Year, p.Month, DaysIn(p.Year, p.Month), 0, 0, 0, 0, time.UTC)
}

func (p Period) Valid() bool {
	return p.Year >= 1900 && p.Year <= 9999 && p.Month >= time.January && p.Month <= time.December
}

func (p Period) String() string {
	return p.Start().Format("2006-01")
}
