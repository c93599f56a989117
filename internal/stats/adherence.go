package stats

import (
	"time"

	"wehabit/internal/model"
)

// DayCount is the number of completions recorded on one calendar date.
type DayCount struct {
	Date  time.Time
	Count int
}

// ISOWeekday maps t to 1=Mon..7=Sun.
func ISOWeekday(t time.Time) int {
	wd := int(t.Weekday())
	if wd == 0 {
		return 7
	}
	return wd
}

// WeekStart returns the Monday of the ISO week containing t.
func WeekStart(t time.Time) time.Time {
	c := Civil(t)
	return c.AddDate(0, 0, -(ISOWeekday(c) - 1))
}

// AboveNorm counts completions outside the schedule.
//
// With an explicit weekday set, every completion on a day outside the set
// counts. With a weekly goal, each ISO week contributes the completions beyond
// the goal. Without either mode the result is 0.
func AboveNorm(s model.Schedule, counts []DayCount) int {
	total := 0
	switch {
	case len(s.Weekdays) > 0:
		for _, dc := range counts {
			if !s.HasWeekday(ISOWeekday(dc.Date)) {
				total += dc.Count
			}
		}
	case s.WeeklyGoal > 0:
		weeks := make(map[time.Time]int)
		for _, dc := range counts {
			weeks[WeekStart(dc.Date)] += dc.Count
		}
		for _, n := range weeks {
			if extra := n - s.WeeklyGoal; extra > 0 {
				total += extra
			}
		}
	}
	return total
}

// WeekCount counts the distinct dates falling in the ISO week of ref.
func WeekCount(dates []time.Time, ref time.Time) int {
	start := WeekStart(ref)
	end := start.AddDate(0, 0, 7)
	n := 0
	for _, d := range uniqueSorted(dates) {
		if !d.Before(start) && d.Before(end) {
			n++
		}
	}
	return n
}
