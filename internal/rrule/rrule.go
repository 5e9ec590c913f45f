// Package rrule wraps teambition/rrule-go for the repeating triggers carried
// by scheduled notifications. Weekly reminders are stored as RFC 5545 RRULE
// strings and advanced to their next occurrence after every fire.
package rrule

import (
	"fmt"
	"strings"
	"time"

	"github.com/teambition/rrule-go"
)

var weekdayNames = map[time.Weekday]string{
	time.Sunday:    "SU",
	time.Monday:    "MO",
	time.Tuesday:   "TU",
	time.Wednesday: "WE",
	time.Thursday:  "TH",
	time.Friday:    "FR",
	time.Saturday:  "SA",
}

// Weekly builds the RRULE string for a reminder repeating every week on the
// given weekday at hour:minute.
func Weekly(weekday time.Weekday, hour, minute int) string {
	return fmt.Sprintf("FREQ=WEEKLY;BYDAY=%s;BYHOUR=%d;BYMINUTE=%d", weekdayNames[weekday], hour, minute)
}

// Parse parses an RFC 5545 RRULE string anchored at dtstart.
func Parse(ruleStr string, dtstart time.Time) (*rrule.RRule, error) {
	ruleStr = strings.TrimPrefix(ruleStr, "RRULE:")

	opt, err := rrule.StrToROption(ruleStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse RRULE: %w", err)
	}

	// Anchor the rule in the local timezone so BYHOUR/BYMINUTE mean wall-clock
	// time regardless of how dtstart was produced.
	opt.Dtstart = time.Date(
		dtstart.Year(), dtstart.Month(), dtstart.Day(),
		dtstart.Hour(), dtstart.Minute(), dtstart.Second(), dtstart.Nanosecond(),
		time.Local,
	)
	return rrule.NewRRule(*opt)
}

// NextOccurrence returns the first occurrence of the rule at or after the
// given time, or nil if the rule has no further occurrences.
func NextOccurrence(ruleStr string, dtstart time.Time, after time.Time) (*time.Time, error) {
	rule, err := Parse(ruleStr, dtstart)
	if err != nil {
		return nil, err
	}

	next := rule.After(after.In(time.Local), true)
	if next.IsZero() {
		return nil, nil
	}
	return &next, nil
}

// NextOccurrenceStrict returns the first occurrence strictly after the given
// time. Use this to advance a repeating trigger past the occurrence that just
// fired.
func NextOccurrenceStrict(ruleStr string, dtstart time.Time, after time.Time) (*time.Time, error) {
	rule, err := Parse(ruleStr, dtstart)
	if err != nil {
		return nil, err
	}

	next := rule.After(after.In(time.Local), false)
	if next.IsZero() {
		return nil, nil
	}
	return &next, nil
}
