// Package escalation drives the follow-up nag chain: once a reminder fires
// and its dose log is due, a follow-up timer is armed at a fixed interval,
// and every fire either re-arms the next attempt or stops when the log
// reaches a terminal status. Chains are journaled to the ledger so they can
// be repaired after a restart.
package escalation

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/medimind/medimind/internal/ident"
	"github.com/medimind/medimind/internal/ledger"
	"github.com/medimind/medimind/internal/models"
	"github.com/medimind/medimind/internal/notify"
)

const (
	// DefaultInterval is the delay between nag attempts.
	DefaultInterval = 4 * time.Minute
	// generateTimeout bounds the AI call for message variety; the chain never
	// stalls waiting on it.
	generateTimeout = 10 * time.Second
	// maxMessageLen rejects runaway generated responses.
	maxMessageLen = 100
)

// StatusReader reports the current acknowledgement state of a dose log.
type StatusReader interface {
	GetStatus(ctx context.Context, logID string) (models.LogStatus, error)
}

// MessageGenerator produces nag message text. Optional: any error falls back
// to the local pool.
type MessageGenerator interface {
	FunnyMessage(ctx context.Context, medicineName string) (string, error)
}

var fallbackMessages = []string{
	"Oops! You forgot your medicine 🕒",
	"Did you just ghost your pills? Tick that box now 😅",
	"Your medicine is waiting… don't keep it hanging!",
	"Pill check! Your medicine is getting lonely 😂",
	"Time for your daily dose of responsibility! 💊",
	"Your medicine called, it said 'where are you?' 📞",
	"Tick that checkbox or your medicine will be sad 😢",
	"Medicine time! Don't make your pills wait ⏰",
	"Your pills are getting impatient! ⏰",
	"Medicine reminder: Your health is calling! 📱",
	"Don't forget your daily superhero dose! 💪",
	"Your medicine is doing a waiting dance 🕺",
	"Time to be a responsible adult! 💊",
	"Your pills miss you already 😢",
	"Medicine check-in time! ✅",
	"Your health routine is incomplete without this! 🎯",
	"Don't let your medicine feel abandoned! 🏠",
	"Time for your daily health boost! ⚡",
	"Your medicine is getting worried about you 😰",
	"Tick that box and make your medicine happy! 😊",
}

type Engine struct {
	device   notify.Device
	logs     StatusReader
	store    ledger.Store
	gen      MessageGenerator
	interval time.Duration
	now      func() time.Time

	mu sync.Mutex
	// counts tracks the highest armed attempt per log.
	counts map[string]int
	// guards is the per-session idempotency set keyed by full identifier,
	// protecting against double delivery of the same fire event.
	guards map[string]struct{}
	// followups mirrors the persisted ledger.
	followups map[string][]models.FollowupRecord
}

// New builds an engine. gen may be nil, in which case only the local message
// pool is used.
func New(device notify.Device, logs StatusReader, store ledger.Store, gen MessageGenerator, interval time.Duration) *Engine {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Engine{
		device:    device,
		logs:      logs,
		store:     store,
		gen:       gen,
		interval:  interval,
		now:       time.Now,
		counts:    make(map[string]int),
		guards:    make(map[string]struct{}),
		followups: make(map[string][]models.FollowupRecord),
	}
}

// Load reads the persisted ledger into memory. Call once at startup, before
// Reconcile.
func (e *Engine) Load(ctx context.Context) error {
	followups, err := e.store.Read(ctx)
	if err != nil {
		return fmt.Errorf("failed to load followup ledger: %w", err)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.followups = followups
	for logID, recs := range followups {
		for _, rec := range recs {
			if rec.Attempt > e.counts[logID] {
				e.counts[logID] = rec.Attempt
			}
		}
	}
	log.Printf("Loaded %d followup chains from ledger", len(followups))
	return nil
}

// Arm starts the nag chain for a dose log. A chain that is already live is
// left untouched: callers are expected to stop before restarting, and a
// duplicate arm is harmless by design.
func (e *Engine) Arm(ctx context.Context, logID, medicineName, dosage, timeStr string) error {
	e.mu.Lock()
	already := e.counts[logID] > 0
	e.mu.Unlock()
	if already {
		log.Printf("Followup chain for log %s is already armed, skipping", logID)
		return nil
	}
	return e.armAttempt(ctx, models.FollowupRecord{
		LogID:        logID,
		Attempt:      1,
		MedicineName: medicineName,
		Dosage:       dosage,
		TimeString:   timeStr,
	})
}

// HandleFire processes one fired follow-up notification: if the log is still
// due the next attempt is armed, otherwise the chain ends.
func (e *Engine) HandleFire(ctx context.Context, p notify.Payload) error {
	status, err := e.logs.GetStatus(ctx, p.LogID)
	if err != nil {
		return fmt.Errorf("failed to read status of log %s: %w", p.LogID, err)
	}

	if status == models.StatusDue {
		return e.armAttempt(ctx, models.FollowupRecord{
			LogID:        p.LogID,
			Attempt:      p.Attempt + 1,
			MedicineName: p.MedicineName,
			Dosage:       p.Dosage,
			TimeString:   p.Time,
		})
	}

	log.Printf("Log %s is no longer due (status: %s), stopping followups", p.LogID, status)
	// The chain is done; drop its ledger entry so reconciliation never
	// resurrects it.
	return e.StopChain(ctx, p.LogID)
}

// armAttempt registers one follow-up timer and journals it. The deterministic
// identifier makes a duplicate call for the same attempt a no-op.
func (e *Engine) armAttempt(ctx context.Context, rec models.FollowupRecord) error {
	identifier := ident.Funny(rec.LogID, rec.Attempt)

	// Reserve the guard before touching the device so a concurrent duplicate
	// delivery of the same fire cannot slip past while registration is in
	// flight.
	e.mu.Lock()
	if _, dup := e.guards[identifier]; dup {
		e.mu.Unlock()
		log.Printf("Followup %s already scheduled this session, skipping", identifier)
		return nil
	}
	e.guards[identifier] = struct{}{}
	e.mu.Unlock()

	rec.ScheduledAt = e.now().Add(e.interval)
	n := notify.Notification{
		Identifier: identifier,
		Title:      "Medicine Reminder",
		Body:       e.message(ctx, rec.MedicineName),
		Payload: notify.Payload{
			Kind:         notify.KindFunny,
			MedicineName: rec.MedicineName,
			Dosage:       rec.Dosage,
			Time:         rec.TimeString,
			LogID:        rec.LogID,
			Attempt:      rec.Attempt,
		},
		Trigger: notify.Trigger{At: rec.ScheduledAt},
	}
	if err := e.device.Register(ctx, n); err != nil {
		e.mu.Lock()
		delete(e.guards, identifier)
		e.mu.Unlock()
		return fmt.Errorf("failed to register followup %s: %w", identifier, err)
	}

	e.mu.Lock()
	if rec.Attempt > e.counts[rec.LogID] {
		e.counts[rec.LogID] = rec.Attempt
	}
	e.followups[rec.LogID] = append(e.followups[rec.LogID], rec)
	snapshot := e.snapshotLocked()
	e.mu.Unlock()

	if err := e.store.Write(ctx, snapshot); err != nil {
		// The timer is live; a persistence failure only weakens restart
		// repair, so keep going.
		log.Printf("Failed to persist followup ledger: %v", err)
	}
	log.Printf("Armed followup %s at %s", identifier, rec.ScheduledAt.Format("15:04:05"))
	return nil
}

// StopChain cancels every live timer of the log's nag chain and drops its
// ledger entry. Safe to call for a log with no chain.
func (e *Engine) StopChain(ctx context.Context, logID string) error {
	live, err := e.device.ListLive(ctx)
	if err != nil {
		return fmt.Errorf("failed to list live timers: %w", err)
	}
	cancelled := 0
	for _, id := range live {
		if !ident.BelongsToChain(id, logID) {
			continue
		}
		if err := e.device.Cancel(ctx, id); err != nil {
			log.Printf("Failed to cancel followup %s: %v", id, err)
			continue
		}
		cancelled++
	}

	e.mu.Lock()
	for id := range e.guards {
		if ident.BelongsToChain(id, logID) {
			delete(e.guards, id)
		}
	}
	delete(e.counts, logID)
	_, had := e.followups[logID]
	delete(e.followups, logID)
	snapshot := e.snapshotLocked()
	e.mu.Unlock()

	if had {
		if err := e.store.Write(ctx, snapshot); err != nil {
			return fmt.Errorf("failed to persist followup ledger: %w", err)
		}
	}
	if cancelled > 0 || had {
		log.Printf("Stopped followup chain for log %s (%d timers cancelled)", logID, cancelled)
	}
	return nil
}

// Reset clears every chain and the ledger. Used by the full cancel-everything
// path.
func (e *Engine) Reset(ctx context.Context) error {
	e.mu.Lock()
	e.counts = make(map[string]int)
	e.guards = make(map[string]struct{})
	e.followups = make(map[string][]models.FollowupRecord)
	e.mu.Unlock()
	if err := e.store.Write(ctx, map[string][]models.FollowupRecord{}); err != nil {
		return fmt.Errorf("failed to clear followup ledger: %w", err)
	}
	return nil
}

// Reconcile re-registers every journaled follow-up whose timer is missing
// from the device's live set, repairing OS eviction and process restarts. A
// bad record is logged and skipped; it never aborts the rest.
func (e *Engine) Reconcile(ctx context.Context) error {
	live, err := e.device.ListLive(ctx)
	if err != nil {
		return fmt.Errorf("failed to list live timers: %w", err)
	}
	liveSet := make(map[string]struct{}, len(live))
	for _, id := range live {
		liveSet[id] = struct{}{}
	}

	e.mu.Lock()
	pending := make([]models.FollowupRecord, 0)
	for _, recs := range e.followups {
		pending = append(pending, recs...)
	}
	e.mu.Unlock()

	repaired := 0
	for _, rec := range pending {
		identifier := ident.Funny(rec.LogID, rec.Attempt)
		if _, ok := liveSet[identifier]; ok {
			continue
		}
		// The original delay has necessarily elapsed; fire again a short
		// interval from now with a freshly computed message.
		n := notify.Notification{
			Identifier: identifier,
			Title:      "Medicine Reminder",
			Body:       e.message(ctx, rec.MedicineName),
			Payload: notify.Payload{
				Kind:         notify.KindFunny,
				MedicineName: rec.MedicineName,
				Dosage:       rec.Dosage,
				Time:         rec.TimeString,
				LogID:        rec.LogID,
				Attempt:      rec.Attempt,
			},
			Trigger: notify.Trigger{At: e.now().Add(e.interval)},
		}
		if err := e.device.Register(ctx, n); err != nil {
			log.Printf("Failed to re-register followup %s: %v", identifier, err)
			continue
		}
		e.mu.Lock()
		e.guards[identifier] = struct{}{}
		e.mu.Unlock()
		repaired++
	}
	if repaired > 0 {
		log.Printf("Reconciliation re-registered %d followup timers", repaired)
	}
	return nil
}

// Attempts returns the number of attempts armed so far for a log.
func (e *Engine) Attempts(logID string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.counts[logID]
}

// snapshotLocked copies the followup map for persistence. Caller holds e.mu.
func (e *Engine) snapshotLocked() map[string][]models.FollowupRecord {
	snapshot := make(map[string][]models.FollowupRecord, len(e.followups))
	for logID, recs := range e.followups {
		snapshot[logID] = append([]models.FollowupRecord(nil), recs...)
	}
	return snapshot
}

// message picks the notification body: generated text when a generator is
// configured and answers in time with something sane, otherwise the local
// pool.
func (e *Engine) message(ctx context.Context, medicineName string) string {
	if e.gen != nil {
		genCtx, cancel := context.WithTimeout(ctx, generateTimeout)
		msg, err := e.gen.FunnyMessage(genCtx, medicineName)
		cancel()
		if err == nil {
			msg = strings.TrimSpace(msg)
			if msg != "" && len(msg) < maxMessageLen {
				return msg
			}
		} else {
			log.Printf("Message generation failed, using fallback: %v", err)
		}
	}
	return fallbackMessages[rand.Intn(len(fallbackMessages))]
}
