package service

import "time"

// Clock supplies the current time. Services never call time.Now directly.
type Clock func() time.Time

// SystemClock is the wall clock.
func SystemClock() time.Time { return time.Now() }

// today returns the calendar date of now in loc.
func today(clock Clock, loc *time.Location) string {
	return clock().In(loc).Format("2006-01-02")
}
