package models

import (
	"fmt"
	"time"
)

// LogStatus is the acknowledgement state of one dose log entry.
type LogStatus string

const (
	// StatusPending means the dose is scheduled but its reminder has not fired.
	StatusPending LogStatus = "pending"
	// StatusDue means the reminder fired and the user has not acknowledged it.
	// A due log keeps its follow-up nag chain alive.
	StatusDue LogStatus = "due"
	// StatusTaken and StatusSkipped are user acknowledgements.
	StatusTaken   LogStatus = "taken"
	StatusSkipped LogStatus = "skipped"
	// StatusMissed marks a dose window that elapsed without acknowledgement.
	StatusMissed LogStatus = "missed"
)

// Valid reports whether s is a known status value.
func (s LogStatus) Valid() bool {
	switch s {
	case StatusPending, StatusDue, StatusTaken, StatusSkipped, StatusMissed:
		return true
	}
	return false
}

// Terminal reports whether a dose log in this status needs no further nagging.
func (s LogStatus) Terminal() bool {
	switch s {
	case StatusTaken, StatusSkipped, StatusMissed:
		return true
	}
	return false
}

// legalTransitions: pending→due→{taken,skipped}, with missed as a terminal side
// path and taken/skipped reachable directly from pending (the user can tick the
// box before the reminder fires).
var legalTransitions = map[LogStatus][]LogStatus{
	StatusPending: {StatusDue, StatusTaken, StatusSkipped, StatusMissed},
	StatusDue:     {StatusTaken, StatusSkipped, StatusMissed},
}

// CanTransition reports whether moving from s to next is a legal status change.
func (s LogStatus) CanTransition(next LogStatus) bool {
	for _, t := range legalTransitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

// CheckTransition returns an error describing an illegal status change, nil
// otherwise.
func (s LogStatus) CheckTransition(next LogStatus) error {
	if !next.Valid() {
		return fmt.Errorf("unknown log status %q", next)
	}
	if !s.CanTransition(next) {
		return fmt.Errorf("illegal log status transition %s -> %s", s, next)
	}
	return nil
}

// MedicineLog is one medicine/time/day instance requiring acknowledgement.
type MedicineLog struct {
	ID            string     `json:"id"`
	UserID        string     `json:"user_id"`
	MedicineID    string     `json:"medicine_id"`
	ScheduledTime time.Time  `json:"scheduled_time"`
	TakenTime     *time.Time `json:"taken_time"`
	Status        LogStatus  `json:"status"`
	Notes         string     `json:"notes"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}
