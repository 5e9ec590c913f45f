// Package scheduler computes and registers the device timers for a medicine's
// current schedule: one exact-time timer per future time-of-day today, a
// catch-up timer for a slot that elapsed within the missed window, and one
// repeating weekly timer per (time, other weekday) pair.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/medimind/medimind/internal/ident"
	"github.com/medimind/medimind/internal/models"
	"github.com/medimind/medimind/internal/notify"
	"github.com/medimind/medimind/internal/rrule"
	"github.com/medimind/medimind/internal/timeutil"
)

const (
	// DefaultMissedCutoffMinutes bounds how far in the past a time-of-day can
	// be and still get a catch-up timer. Older slots are skipped entirely.
	DefaultMissedCutoffMinutes = 60
	// DefaultMissedDelay is how soon after scheduling a catch-up timer fires.
	DefaultMissedDelay = 30 * time.Second
)

type Scheduler struct {
	device              notify.Device
	missedCutoffMinutes int
	missedDelay         time.Duration
	now                 func() time.Time
}

func New(device notify.Device, missedCutoffMinutes int, missedDelay time.Duration) *Scheduler {
	if missedCutoffMinutes <= 0 {
		missedCutoffMinutes = DefaultMissedCutoffMinutes
	}
	if missedDelay <= 0 {
		missedDelay = DefaultMissedDelay
	}
	return &Scheduler{
		device:              device,
		missedCutoffMinutes: missedCutoffMinutes,
		missedDelay:         missedDelay,
		now:                 time.Now,
	}
}

// Schedule cancels every live timer belonging to the medicine, then registers
// the full timer set for its current schedule. Calling it twice converges to
// the same live set. It returns the identifiers that were registered; a
// failure to register one timer is logged and does not abort the rest.
func (s *Scheduler) Schedule(ctx context.Context, med *models.Medicine) ([]string, error) {
	// Stale timers from a previous version of the schedule must be gone
	// before any new registration.
	if err := s.CancelForMedicine(ctx, med.ID); err != nil {
		return nil, fmt.Errorf("failed to clear existing timers for %s: %w", med.ID, err)
	}

	now := s.now()
	if !med.ActiveOn(now) {
		log.Printf("Medicine %s (%s) is inactive or outside its date range, no timers", med.Name, med.ID)
		return nil, nil
	}

	var registered []string
	for _, timeStr := range med.Times {
		hour, minute, err := timeutil.ParseClock(timeStr)
		if err != nil {
			log.Printf("Medicine %s has malformed time %q, skipping: %v", med.ID, timeStr, err)
			continue
		}

		if med.ScheduledOn(now.Weekday()) {
			diff, _ := timeutil.MinutesBetween(timeStr, timeutil.Clock(now))
			switch {
			case diff > 0:
				n := s.reminderNotification(med, timeStr)
				n.Identifier = ident.Medicine(med.ID, timeStr, now)
				n.Trigger = notify.Trigger{At: timeutil.At(now, hour, minute)}
				registered = s.register(ctx, n, registered)
			case diff >= -s.missedCutoffMinutes:
				n := s.missedNotification(med, timeStr)
				n.Identifier = ident.Missed(med.ID, timeStr, now)
				n.Trigger = notify.Trigger{At: now.Add(s.missedDelay)}
				registered = s.register(ctx, n, registered)
			default:
				// The dose window fully elapsed; notifying now would only
				// confuse.
				log.Printf("Medicine %s time %s passed %d minutes ago, skipping", med.ID, timeStr, -diff)
			}
		}

		for _, day := range med.DaysOfWeek {
			weekday := time.Weekday(day)
			if weekday == now.Weekday() {
				continue
			}
			n := s.reminderNotification(med, timeStr)
			n.Identifier = ident.Weekly(med.ID, timeStr, weekday)
			n.Trigger = notify.Trigger{Rule: rrule.Weekly(weekday, hour, minute)}
			registered = s.register(ctx, n, registered)
		}
	}

	log.Printf("Scheduled %d timers for medicine %s (%s)", len(registered), med.Name, med.ID)
	return registered, nil
}

// register attempts one device registration, logging and continuing on
// failure so one broken timer never blocks the rest of the schedule.
func (s *Scheduler) register(ctx context.Context, n notify.Notification, acc []string) []string {
	if err := s.device.Register(ctx, n); err != nil {
		log.Printf("Failed to register timer %s: %v", n.Identifier, err)
		return acc
	}
	return append(acc, n.Identifier)
}

func (s *Scheduler) reminderNotification(med *models.Medicine, timeStr string) notify.Notification {
	return notify.Notification{
		Title: "Medicine Reminder",
		Body:  fmt.Sprintf("Time to take %s - %s", med.Name, med.Dosage),
		Payload: notify.Payload{
			Kind:         notify.KindReminder,
			MedicineID:   med.ID,
			MedicineName: med.Name,
			Dosage:       med.Dosage,
			Time:         timeStr,
		},
	}
}

func (s *Scheduler) missedNotification(med *models.Medicine, timeStr string) notify.Notification {
	return notify.Notification{
		Title: "Missed Medicine Reminder",
		Body:  fmt.Sprintf("You missed taking %s at %s. Please take it now.", med.Name, timeStr),
		Payload: notify.Payload{
			Kind:         notify.KindMissed,
			MedicineID:   med.ID,
			MedicineName: med.Name,
			Dosage:       med.Dosage,
			Time:         timeStr,
		},
	}
}

// ScheduleAll schedules every given medicine, logging per-medicine failures
// and continuing. Used at startup to rebuild the timer set from storage.
func (s *Scheduler) ScheduleAll(ctx context.Context, meds []*models.Medicine) {
	for _, med := range meds {
		if _, err := s.Schedule(ctx, med); err != nil {
			log.Printf("Failed to schedule medicine %s: %v", med.ID, err)
		}
	}
}

// CancelForMedicine cancels every live timer whose identifier was derived from
// the medicine. Safe to call when none exist.
func (s *Scheduler) CancelForMedicine(ctx context.Context, medicineID string) error {
	live, err := s.device.ListLive(ctx)
	if err != nil {
		return fmt.Errorf("failed to list live timers: %w", err)
	}
	for _, id := range live {
		if !ident.BelongsToMedicine(id, medicineID) {
			continue
		}
		if err := s.device.Cancel(ctx, id); err != nil {
			log.Printf("Failed to cancel timer %s: %v", id, err)
		}
	}
	return nil
}

// CancelAll cancels every live timer unconditionally.
func (s *Scheduler) CancelAll(ctx context.Context) error {
	live, err := s.device.ListLive(ctx)
	if err != nil {
		return fmt.Errorf("failed to list live timers: %w", err)
	}
	for _, id := range live {
		if err := s.device.Cancel(ctx, id); err != nil {
			log.Printf("Failed to cancel timer %s: %v", id, err)
		}
	}
	return nil
}
