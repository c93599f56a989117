// Package stats holds the pure computations over completion dates: streaks and
// schedule adherence. Nothing here touches storage; callers load the ledger and
// pass dates in.
package stats

import (
	"fmt"
	"sort"
	"time"

	"wehabit/internal/model"
)

const day = 24 * time.Hour

// Civil truncates t to its calendar date, expressed as UTC midnight.
func Civil(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDates converts stored YYYY-MM-DD dates.
func ParseDates(raw []string) ([]time.Time, error) {
	out := make([]time.Time, 0, len(raw))
	for _, s := range raw {
		t, err := model.ParseDate(s)
		if err != nil {
			return nil, fmt.Errorf("parse date %q: %w", s, err)
		}
		out = append(out, t)
	}
	return out, nil
}

// Window restricts a computation to dates on or after Since. The zero Window is unrestricted.
type Window struct {
	Since time.Time
}

// Lookback is the window of the last days calendar days before today, both ends included.
func Lookback(today time.Time, days int) Window {
	if days <= 0 {
		return Window{}
	}
	return Window{Since: Civil(today).AddDate(0, 0, -days)}
}

func (w Window) contains(t time.Time) bool {
	return w.Since.IsZero() || !t.Before(w.Since)
}

// LongestRun returns the length of the longest run of consecutive calendar
// dates. Order and duplicates in the input do not matter.
func LongestRun(dates []time.Time) int {
	days := uniqueSorted(dates)
	if len(days) == 0 {
		return 0
	}
	best, run := 1, 1
	for i := 1; i < len(days); i++ {
		if days[i].Sub(days[i-1]) == day {
			run++
			if run > best {
				best = run
			}
			continue
		}
		run = 1
	}
	return best
}

// IndividualStreak is the longest run of one user's completions within w.
//
// This is the value reported as "current streak": it is the longest run over
// the window, not the run ending today.
func IndividualStreak(dates []time.Time, w Window) int {
	return LongestRun(filter(dates, w))
}

// JointStreak is the longest run of dates on which every participant completed.
// With a single participant it equals that participant's individual streak.
func JointStreak(byParticipant [][]time.Time, w Window) int {
	switch len(byParticipant) {
	case 0:
		return 0
	case 1:
		return IndividualStreak(byParticipant[0], w)
	}
	common := make(map[time.Time]int)
	for _, dates := range byParticipant {
		for _, d := range uniqueSorted(filter(dates, w)) {
			common[d]++
		}
	}
	var shared []time.Time
	for d, n := range common {
		if n == len(byParticipant) {
			shared = append(shared, d)
		}
	}
	return LongestRun(shared)
}

func filter(dates []time.Time, w Window) []time.Time {
	out := make([]time.Time, 0, len(dates))
	for _, d := range dates {
		if w.contains(Civil(d)) {
			out = append(out, d)
		}
	}
	return out
}

func uniqueSorted(dates []time.Time) []time.Time {
	seen := make(map[time.Time]bool, len(dates))
	out := make([]time.Time, 0, len(dates))
	for _, d := range dates {
		c := Civil(d)
		if seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}
