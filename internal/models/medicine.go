package models

import "time"

// Medicine is the schedule specification for one medicine. Times are HH:MM
// strings, DaysOfWeek uses 0 = Sunday through 6 = Saturday.
type Medicine struct {
	ID         string     `json:"id"`
	UserID     string     `json:"user_id"`
	Name       string     `json:"name"`
	Dosage     string     `json:"dosage"`
	Frequency  string     `json:"frequency"`
	Times      []string   `json:"times"`
	DaysOfWeek []int      `json:"days_of_week"`
	StartDate  time.Time  `json:"start_date"`
	EndDate    *time.Time `json:"end_date"`
	Notes      string     `json:"notes"`
	IsActive   bool       `json:"is_active"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// ActiveOn reports whether the medicine's schedule covers the given day.
// Inactive medicines and days outside [StartDate, EndDate] produce no timers.
func (m *Medicine) ActiveOn(day time.Time) bool {
	if !m.IsActive {
		return false
	}
	d := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	start := time.Date(m.StartDate.Year(), m.StartDate.Month(), m.StartDate.Day(), 0, 0, 0, 0, day.Location())
	if d.Before(start) {
		return false
	}
	if m.EndDate != nil {
		end := time.Date(m.EndDate.Year(), m.EndDate.Month(), m.EndDate.Day(), 0, 0, 0, 0, day.Location())
		if d.After(end) {
			return false
		}
	}
	return true
}

// ScheduledOn reports whether the given weekday is part of the schedule.
func (m *Medicine) ScheduledOn(weekday time.Weekday) bool {
	for _, d := range m.DaysOfWeek {
		if d == int(weekday) {
			return true
		}
	}
	return false
}
