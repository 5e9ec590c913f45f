package notify

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/medimind/medimind/internal/rrule"
)

// TimerDevice arms one in-process timer per registered notification. On fire
// it hands the notification to the fire handler, delivers it through the sink,
// and either forgets it (one-shot) or advances it to the next occurrence of
// its rule (repeating).
type TimerDevice struct {
	sink Sink

	mu      sync.Mutex
	handler FireHandler
	timers  map[string]*armedTimer
	closed  bool
}

type armedTimer struct {
	notification Notification
	timer        *time.Timer
}

func NewTimerDevice(sink Sink) *TimerDevice {
	return &TimerDevice{
		sink:   sink,
		timers: make(map[string]*armedTimer),
	}
}

// OnFire sets the handler invoked whenever a timer fires. Must be called
// before any registration.
func (d *TimerDevice) OnFire(h FireHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handler = h
}

func (d *TimerDevice) Register(ctx context.Context, n Notification) error {
	fireAt, err := d.nextFire(n.Trigger, time.Now())
	if err != nil {
		return fmt.Errorf("cannot register %s: %w", n.Identifier, err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return fmt.Errorf("device is closed")
	}

	// Upsert: a second registration under the same identifier replaces the
	// first timer instead of duplicating it.
	if existing, ok := d.timers[n.Identifier]; ok {
		existing.timer.Stop()
	}

	delay := time.Until(fireAt)
	if delay < 0 {
		delay = 0
	}
	id := n.Identifier
	entry := &armedTimer{notification: n}
	entry.timer = time.AfterFunc(delay, func() { d.fire(id) })
	d.timers[id] = entry
	return nil
}

// nextFire resolves a trigger to its next absolute fire instant.
func (d *TimerDevice) nextFire(t Trigger, now time.Time) (time.Time, error) {
	if !t.Repeats() {
		if t.At.IsZero() {
			return time.Time{}, fmt.Errorf("one-shot trigger has no fire time")
		}
		return t.At, nil
	}
	next, err := rrule.NextOccurrence(t.Rule, now, now)
	if err != nil {
		return time.Time{}, err
	}
	if next == nil {
		return time.Time{}, fmt.Errorf("rule %q has no upcoming occurrence", t.Rule)
	}
	return *next, nil
}

func (d *TimerDevice) fire(identifier string) {
	d.mu.Lock()
	entry, ok := d.timers[identifier]
	if !ok || d.closed {
		d.mu.Unlock()
		return
	}
	n := entry.notification

	if n.Trigger.Repeats() {
		// Re-arm for the next occurrence before handing off.
		now := time.Now()
		next, err := rrule.NextOccurrenceStrict(n.Trigger.Rule, now, now)
		if err != nil || next == nil {
			log.Printf("Timer %s cannot be re-armed, dropping: %v", identifier, err)
			delete(d.timers, identifier)
		} else {
			entry.timer = time.AfterFunc(time.Until(*next), func() { d.fire(identifier) })
		}
	} else {
		delete(d.timers, identifier)
	}
	handler := d.handler
	d.mu.Unlock()

	ctx := context.Background()
	if handler != nil {
		handler(ctx, n)
	}
	if d.sink != nil {
		if err := d.sink.Deliver(ctx, n); err != nil {
			log.Printf("Failed to deliver notification %s: %v", identifier, err)
		}
	}
}

func (d *TimerDevice) Cancel(ctx context.Context, identifier string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if entry, ok := d.timers[identifier]; ok {
		entry.timer.Stop()
		delete(d.timers, identifier)
	}
	return nil
}

func (d *TimerDevice) ListLive(ctx context.Context) ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	ids := make([]string, 0, len(d.timers))
	for id := range d.timers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (d *TimerDevice) GetAllLive(ctx context.Context) ([]Notification, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	ns := make([]Notification, 0, len(d.timers))
	for _, entry := range d.timers {
		ns = append(ns, entry.notification)
	}
	sort.Slice(ns, func(i, j int) bool { return ns[i].Identifier < ns[j].Identifier })
	return ns, nil
}

// Close stops every armed timer. Timers that already fired may still complete
// their handler.
func (d *TimerDevice) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	for id, entry := range d.timers {
		entry.timer.Stop()
		delete(d.timers, id)
	}
}
