package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/obligations/internal/model"
)

func TestResolveMonthly_Clamps(t *testing.T) {
	tests := []struct {
		name   string
		year   int
		month  time.Month
		anchor int
		want   time.Time
	}{
		{"april 31", 2025, time.April, 31, model.Date(2025, time.April, 30)},
		{"feb non-leap", 2025, time.February, 31, model.Date(2025, time.February, 28)},
		{"feb leap", 2024, time.February, 30, model.Date(2024, time.February, 29)},
		{"feb 29 non-leap", 2023, time.February, 29, model.Date(2023, time.February, 28)},
		{"in range", 2025, time.March, 15, model.Date(2025, time.March, 15)},
		{"january 31", 2025, time.January, 31, model.Date(2025, time.January, 31)},
		{"below range", 2025, time.March, 0, model.Date(2025, time.March, 1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, tt.want.Equal(ResolveMonthly(tt.year, tt.month, tt.anchor)))
		})
	}
}

func TestResolveMonthly_AlwaysWithinMonth(t *testing.T) {
	for year := 2023; year <= 2028; year++ {
		for month := time.January; month <= time.December; month++ {
			last := DaysIn(year, month)
			for anchor := 1; anchor <= 31; anchor++ {
				got := ResolveMonthly(year, month, anchor)
				require.Equal(t, month, got.Month())
				require.Equal(t, year, got.Year())
				require.Equal(t, min(anchor, last), got.Day())
			}
		}
	}
}

func TestResolveWeekly_FourOrFiveMatchingDates(t *testing.T) {
	for year := 2024; year <= 2026; year++ {
		for month := time.January; month <= time.December; month++ {
			for weekday := 1; weekday <= 7; weekday++ {
				dates := ResolveWeekly(year, month, weekday)
				require.GreaterOrEqual(t, len(dates), 4)
				require.LessOrEqual(t, len(dates), 5)
				for i, d := range dates {
					require.Equal(t, time.Weekday(weekday%7), d.Weekday())
					require.Equal(t, month, d.Month())
					if i > 0 {
						require.True(t, d.After(dates[i-1]))
					}
				}
			}
		}
	}
}

func TestResolveWeekly_KnownMonth(t *testing.T) {
	// March 2025 starts on a Saturday.
	mondays := ResolveWeekly(2025, time.March, 1)
	require.Len(t, mondays, 5)
	assert.Equal(t, 3, mondays[0].Day())
	assert.Equal(t, 31, mondays[4].Day())

	sundays := ResolveWeekly(2025, time.March, 7)
	require.Len(t, sundays, 5)
	assert.Equal(t, 2, sundays[0].Day())

	assert.Empty(t, ResolveWeekly(2025, time.March, 0))
	assert.Empty(t, ResolveWeekly(2025, time.March, 8))
}

func TestWeekly_Restartable(t *testing.T) {
	seq := Weekly(2025, time.June, 3)
	var first, second []time.Time
	for d := range seq {
		first = append(first, d)
	}
	for d := range seq {
		second = append(second, d)
	}
	assert.Equal(t, first, second)
}

func TestDueDates(t *testing.T) {
	day := 31
	weekday := 5
	monthly := model.TaskTemplate{Frequency: model.FrequencyMonthly, DayOfMonth: &day}
	weekly := model.TaskTemplate{Frequency: model.FrequencyWeekly, Weekday: &weekday}
	oneOff := model.TaskTemplate{Frequency: model.FrequencyOneOff}
	broken := model.TaskTemplate{Frequency: model.FrequencyMonthly}

	got := DueDates(monthly, 2025, time.November)
	require.Len(t, got, 1)
	assert.True(t, model.Date(2025, time.November, 30).Equal(got[0]))

	assert.Len(t, DueDates(weekly, 2025, time.January), 5)
	assert.Empty(t, DueDates(oneOff, 2025, time.January))
	assert.Empty(t, DueDates(broken, 2025, time.January))
}

func TestPeriod(t *testing.T) {
	p := Period{Year: 2024, Month: time.February}
	assert.True(t, p.Valid())
	assert.Equal(t, "2024-02", p.String())
	assert.Equal(t, 29, p.End().Day())
	assert.False(t, Period{Year: 2024, Month: 13}.Valid())
}
