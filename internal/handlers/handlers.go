// Package handlers connects fired notifications and user actions to the
// scheduling core. Every fired notification is dispatched on its payload
// kind; unrecognized kinds are logged, never dropped silently.
package handlers

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/medimind/medimind/internal/models"
	"github.com/medimind/medimind/internal/notify"
)

type Scheduler interface {
	Schedule(ctx context.Context, med *models.Medicine) ([]string, error)
	CancelForMedicine(ctx context.Context, medicineID string) error
}

type Escalator interface {
	Arm(ctx context.Context, logID, medicineName, dosage, timeStr string) error
	HandleFire(ctx context.Context, p notify.Payload) error
	StopChain(ctx context.Context, logID string) error
}

type LogStore interface {
	EnsureTodayLog(ctx context.Context, medicineID, timeStr string, now time.Time) (*models.MedicineLog, error)
	MarkDue(ctx context.Context, logID string) error
	MarkTaken(ctx context.Context, logID string) error
	MarkSkipped(ctx context.Context, logID string) error
	MarkMissed(ctx context.Context, logID string) error
	ListOpenByMedicine(ctx context.Context, medicineID string) ([]*models.MedicineLog, error)
}

type Handlers struct {
	logs       LogStore
	scheduler  Scheduler
	escalation Escalator
	now        func() time.Time
}

func New(logs LogStore, sched Scheduler, esc Escalator) *Handlers {
	return &Handlers{
		logs:       logs,
		scheduler:  sched,
		escalation: esc,
		now:        time.Now,
	}
}

// HandleFired dispatches one fired notification. It satisfies
// notify.FireHandler.
func (h *Handlers) HandleFired(ctx context.Context, n notify.Notification) {
	switch n.Payload.Kind {
	case notify.KindReminder:
		h.reminderFired(ctx, n.Payload)
	case notify.KindFunny:
		if err := h.escalation.HandleFire(ctx, n.Payload); err != nil {
			log.Printf("Failed to process followup fire %s: %v", n.Identifier, err)
		}
	case notify.KindMissed:
		h.missedFired(ctx, n.Payload)
	default:
		log.Printf("Unrecognized notification kind %q (identifier %s)", n.Payload.Kind, n.Identifier)
	}
}

// reminderFired makes sure the day's dose log exists, marks it due, and arms
// its nag chain. A log already past pending (acknowledged early, or the
// reminder fired twice) changes nothing.
func (h *Handlers) reminderFired(ctx context.Context, p notify.Payload) {
	lg, err := h.logs.EnsureTodayLog(ctx, p.MedicineID, p.Time, h.now())
	if err != nil {
		log.Printf("Failed to resolve log for medicine %s at %s: %v", p.MedicineID, p.Time, err)
		return
	}
	if lg.Status != models.StatusPending {
		log.Printf("Log %s is already %s, nothing to nag about", lg.ID, lg.Status)
		return
	}

	if err := h.logs.MarkDue(ctx, lg.ID); err != nil {
		log.Printf("Failed to mark log %s due: %v", lg.ID, err)
		return
	}
	if err := h.escalation.Arm(ctx, lg.ID, p.MedicineName, p.Dosage, p.Time); err != nil {
		log.Printf("Failed to arm followup chain for log %s: %v", lg.ID, err)
	}
}

// missedFired records an elapsed dose window. The log is marked missed unless
// the user already acknowledged it.
func (h *Handlers) missedFired(ctx context.Context, p notify.Payload) {
	lg, err := h.logs.EnsureTodayLog(ctx, p.MedicineID, p.Time, h.now())
	if err != nil {
		log.Printf("Failed to resolve log for medicine %s at %s: %v", p.MedicineID, p.Time, err)
		return
	}
	if lg.Status.Terminal() {
		log.Printf("Log %s is already %s, missed notice needs no state change", lg.ID, lg.Status)
		return
	}

	if err := h.logs.MarkMissed(ctx, lg.ID); err != nil {
		log.Printf("Failed to mark log %s missed: %v", lg.ID, err)
		return
	}
	log.Printf("Marked log %s missed for medicine %s at %s", lg.ID, p.MedicineID, p.Time)
}

// MedicineSaved reschedules a created or edited medicine. Any nag chains for
// its open logs are stopped first so a stale chain never outlives an edit.
func (h *Handlers) MedicineSaved(ctx context.Context, med *models.Medicine) ([]string, error) {
	h.stopOpenChains(ctx, med.ID)
	ids, err := h.scheduler.Schedule(ctx, med)
	if err != nil {
		return nil, fmt.Errorf("failed to schedule medicine %s: %w", med.ID, err)
	}
	return ids, nil
}

// MedicineDeleted cancels everything belonging to a deleted medicine.
func (h *Handlers) MedicineDeleted(ctx context.Context, medicineID string) error {
	h.stopOpenChains(ctx, medicineID)
	if err := h.scheduler.CancelForMedicine(ctx, medicineID); err != nil {
		return fmt.Errorf("failed to cancel timers for medicine %s: %w", medicineID, err)
	}
	return nil
}

func (h *Handlers) stopOpenChains(ctx context.Context, medicineID string) {
	open, err := h.logs.ListOpenByMedicine(ctx, medicineID)
	if err != nil {
		log.Printf("Failed to list open logs for medicine %s: %v", medicineID, err)
		return
	}
	for _, lg := range open {
		if err := h.escalation.StopChain(ctx, lg.ID); err != nil {
			log.Printf("Failed to stop followup chain for log %s: %v", lg.ID, err)
		}
	}
}

// MarkTaken acknowledges a dose. The chain is stopped before the status
// flips so a follow-up firing mid-acknowledgement cannot re-arm.
func (h *Handlers) MarkTaken(ctx context.Context, logID string) error {
	if err := h.escalation.StopChain(ctx, logID); err != nil {
		log.Printf("Failed to stop followup chain for log %s: %v", logID, err)
	}
	return h.logs.MarkTaken(ctx, logID)
}

// MarkSkipped records that the user chose to skip the dose.
func (h *Handlers) MarkSkipped(ctx context.Context, logID string) error {
	if err := h.escalation.StopChain(ctx, logID); err != nil {
		log.Printf("Failed to stop followup chain for log %s: %v", logID, err)
	}
	return h.logs.MarkSkipped(ctx, logID)
}
