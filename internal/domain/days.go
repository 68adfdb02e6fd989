package domain

import "time"

// DaysBetween returns the whole calendar-day difference between from and to,
// ignoring the time of day. An application sent at 23:00 yesterday is one day
// old this morning.
func DaysBetween(from, to time.Time) int {
	f := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, from.Location())
	t := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, to.Location())
	return int(t.Sub(f).Round(24*time.Hour) / (24 * time.Hour))
}
