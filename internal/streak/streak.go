package streak

import (
	"slices"
	"time"

	"github.com/harshilgor/testtaker-sub001/internal/attempt"
)

// DefaultMinPerDay is the number of attempts a day needs to count toward a streak.
const DefaultMinPerDay = 5

// State is the streak summary for one user.
type State struct {
	Current       int   `json:"current"`
	Longest       int   `json:"longest"`
	ActivityDates []Day `json:"activity_dates"`
}

// BuildCalendar returns the sorted, unique days in loc on which at least
// minPerDay attempts occurred. minPerDay below 1 is treated as 1.
func BuildCalendar(events []attempt.Event, loc *time.Location, minPerDay int) []Day {
	if minPerDay < 1 {
		minPerDay = 1
	}
	counts := make(map[Day]int)
	for _, e := range events {
		counts[DayOf(e.OccurredAt, loc)]++
	}
	days := make([]Day, 0, len(counts))
	for d, n := range counts {
		if n >= minPerDay {
			days = append(days, d)
		}
	}
	sortDays(days)
	return days
}

// Calculate derives the streak state from a set of activity dates as seen on
// today. The current streak runs backward from today when today has activity,
// otherwise from yesterday; a streak last extended before yesterday is broken.
func Calculate(dates []Day, today Day) State {
	days := slices.Clone(dates)
	sortDays(days)
	days = slices.Compact(days)

	st := State{ActivityDates: days}
	if len(days) == 0 {
		return st
	}

	run := 1
	st.Longest = 1
	for i := 1; i < len(days); i++ {
		if days[i-1].AddDays(1) == days[i] {
			run++
		} else {
			run = 1
		}
		st.Longest = max(st.Longest, run)
	}

	present := make(map[Day]bool, len(days))
	for _, d := range days {
		present[d] = true
	}
	cursor := today
	if !present[cursor] {
		cursor = today.AddDays(-1)
	}
	for present[cursor] {
		st.Current++
		cursor = cursor.AddDays(-1)
	}
	return st
}

// Merge keeps Longest from regressing when a recomputed state is built from a
// partial view of history.
func Merge(prev, next State) State {
	next.Longest = max(next.Longest, prev.Longest, next.Current)
	return next
}

func sortDays(days []Day) {
	slices.SortFunc(days, func(a, b Day) int {
		switch {
		case a.Before(b):
			return -1
		case b.Before(a):
			return 1
		default:
			return 0
		}
	})
}
