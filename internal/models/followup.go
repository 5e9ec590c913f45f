package models

import "time"

// FollowupRecord is one armed attempt of a nag chain, persisted so the chain
// can be repaired after a restart. Display fields are carried so the
// notification can be regenerated if the device evicted the timer.
type FollowupRecord struct {
	LogID        string    `json:"log_id"`
	Attempt      int       `json:"attempt"`
	ScheduledAt  time.Time `json:"scheduled_at"`
	MedicineName string    `json:"medicine_name"`
	Dosage       string    `json:"dosage"`
	TimeString   string    `json:"time_string"`
}
