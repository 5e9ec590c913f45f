package timeutil

import (
	"fmt"
	"time"
)

// ParseClock parses a wall-clock time string in HH:MM format.
func ParseClock(s string) (hour, minute int, err error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid clock time %q: %w", s, err)
	}
	return t.Hour(), t.Minute(), nil
}

// Clock formats a time as HH:MM.
func Clock(t time.Time) string {
	return t.Format("15:04")
}

// MinutesBetween returns the signed number of minutes from b to a within a day.
// Positive means a is later in the day than b.
func MinutesBetween(a, b string) (int, error) {
	ah, am, err := ParseClock(a)
	if err != nil {
		return 0, err
	}
	bh, bm, err := ParseClock(b)
	if err != nil {
		return 0, err
	}
	return (ah*60 + am) - (bh*60 + bm), nil
}

// At returns the instant on the same calendar day as base with the given clock time.
func At(base time.Time, hour, minute int) time.Time {
	return time.Date(base.Year(), base.Month(), base.Day(), hour, minute, 0, 0, base.Location())
}
