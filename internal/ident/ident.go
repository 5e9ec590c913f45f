// Package ident builds deterministic notification identifiers. Scheduling the
// same logical timer twice always yields the same identifier, so the device's
// upsert-by-identifier semantics deduplicate for free, and cancellation can
// match by substring or prefix without a lookup table.
package ident

import (
	"fmt"
	"strings"
	"time"
)

// stripColon turns "09:00" into "0900".
func stripColon(clock string) string {
	return strings.ReplaceAll(clock, ":", "")
}

// Medicine returns the identifier for a one-shot same-day reminder:
// medicine_{medicineID}_{HHMM}_{YYYY-MM-DD}.
func Medicine(medicineID, clock string, date time.Time) string {
	return fmt.Sprintf("medicine_%s_%s_%s", medicineID, stripColon(clock), date.Format("2006-01-02"))
}

// Weekly returns the identifier for a repeating weekly reminder:
// weekly_{medicineID}_{HHMM}_{weekday}.
func Weekly(medicineID, clock string, weekday time.Weekday) string {
	return fmt.Sprintf("weekly_%s_%s_%d", medicineID, stripColon(clock), int(weekday))
}

// Missed returns the identifier for a catch-up reminder covering a dose window
// that recently elapsed: missed_{medicineID}_{HHMM}_{YYYY-MM-DD}.
func Missed(medicineID, clock string, date time.Time) string {
	return fmt.Sprintf("missed_%s_%s_%s", medicineID, stripColon(clock), date.Format("2006-01-02"))
}

// Funny returns the identifier for one attempt of a follow-up nag chain:
// funny_{logID}_{attempt}. Attempt number, not time, is what keeps identifiers
// unique within a chain.
func Funny(logID string, attempt int) string {
	return fmt.Sprintf("funny_%s_%d", logID, attempt)
}

// FunnyPrefix returns the prefix shared by every attempt in a log's nag chain.
func FunnyPrefix(logID string) string {
	return fmt.Sprintf("funny_%s_", logID)
}

// BelongsToMedicine reports whether an identifier was derived from the given
// medicine, regardless of kind.
func BelongsToMedicine(identifier, medicineID string) bool {
	return strings.Contains(identifier, "_"+medicineID+"_")
}

// BelongsToChain reports whether an identifier is part of the nag chain for the
// given log.
func BelongsToChain(identifier, logID string) bool {
	return strings.HasPrefix(identifier, FunnyPrefix(logID))
}
