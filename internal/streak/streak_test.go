package streak

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harshilgor/testtaker-sub001/internal/attempt"
)

var today = Day{Year: 2026, Month: time.March, Day: 1}

func TestCalculate(t *testing.T) {
	d := func(n int) Day { return today.AddDays(n) }
	tests := []struct {
		name    string
		dates   []Day
		current int
		longest int
	}{
		{"empty", nil, 0, 0},
		{"three consecutive ending today", []Day{d(-2), d(-1), d(0)}, 3, 3},
		{"gap before yesterday", []Day{d(-3), d(-1), d(0)}, 2, 2},
		{"alive from yesterday", []Day{d(-2), d(-1)}, 2, 2},
		{"broken two days ago", []Day{d(-4), d(-3), d(-2)}, 0, 3},
		{"longest in the past", []Day{d(-10), d(-9), d(-8), d(-7), d(0)}, 1, 4},
		{"duplicates and unsorted", []Day{d(0), d(-1), d(0), d(-1)}, 2, 2},
		{"across month boundary", []Day{d(-1), d(-2), d(-3)}, 3, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := Calculate(tt.dates, today)
			assert.Equal(t, tt.current, st.Current)
			assert.Equal(t, tt.longest, st.Longest)
			assert.GreaterOrEqual(t, st.Longest, st.Current)
		})
	}
}

func TestCalculate_DoesNotMutateInput(t *testing.T) {
	in := []Day{today, today.AddDays(-1)}
	Calculate(in, today)
	assert.Equal(t, today, in[0])
}

func TestBuildCalendar_MinPerDayAndZone(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	// 02:00 UTC on March 2 is still March 1 in New York.
	late := time.Date(2026, 3, 2, 2, 0, 0, 0, time.UTC)
	var events []attempt.Event
	for i := range 5 {
		events = append(events, attempt.Event{ID: string(rune('a' + i)), OccurredAt: late})
	}
	events = append(events, attempt.Event{ID: "z", OccurredAt: late.Add(24 * time.Hour)})

	assert.Equal(t, []Day{{2026, time.March, 1}}, BuildCalendar(events, ny, 5))
	assert.Equal(t, []Day{{2026, time.March, 2}}, BuildCalendar(events, time.UTC, 5))
	assert.Equal(t, []Day{{2026, time.March, 2}, {2026, time.March, 3}}, BuildCalendar(events, time.UTC, 0))
}

func TestMerge_LongestNeverDecreases(t *testing.T) {
	prev := State{Current: 1, Longest: 9}
	next := Calculate([]Day{today}, today)
	assert.Equal(t, 9, Merge(prev, next).Longest)
}

func TestDay_TextRoundTrip(t *testing.T) {
	b, err := json.Marshal(State{ActivityDates: []Day{today}})
	require.NoError(t, err)
	assert.Contains(t, string(b), `"2026-03-01"`)

	var st State
	require.NoError(t, json.Unmarshal(b, &st))
	assert.Equal(t, []Day{today}, st.ActivityDates)
}

func TestDay_AddDaysLeapYear(t *testing.T) {
	d := Day{Year: 2028, Month: time.February, Day: 28}
	assert.Equal(t, "2028-02-29", d.AddDays(1).String())
	assert.Equal(t, "2028-03-01", d.AddDays(2).String())
}
