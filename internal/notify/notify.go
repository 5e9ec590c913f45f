// Package notify models the device notification surface: timers registered
// under deterministic identifiers that later fire and deliver a message. The
// scheduler and escalation engine talk only to the Device interface; the live
// timer list held by the device is the source of truth for cancellation and
// reconciliation, never an in-memory cache.
package notify

import (
	"context"
	"time"
)

// Payload kinds dispatched on when a notification fires.
const (
	KindReminder = "reminder"
	KindFunny    = "funny_reminder"
	KindMissed   = "missed"
)

// Payload is the opaque data delivered when a timer fires.
type Payload struct {
	Kind         string `json:"kind"`
	MedicineID   string `json:"medicine_id"`
	MedicineName string `json:"medicine_name"`
	Dosage       string `json:"dosage"`
	Time         string `json:"time"`
	LogID        string `json:"log_id"`
	Attempt      int    `json:"attempt,omitempty"`
}

// Trigger describes when a notification fires. Exactly one of At or Rule is
// set: At for a one-shot timer, Rule (an RFC 5545 RRULE string) for a
// repeating one.
type Trigger struct {
	At   time.Time `json:"at,omitempty"`
	Rule string    `json:"rule,omitempty"`
}

// Repeats reports whether the trigger re-arms itself after firing.
func (t Trigger) Repeats() bool {
	return t.Rule != ""
}

// Notification is one schedulable unit.
type Notification struct {
	Identifier string  `json:"identifier"`
	Title      string  `json:"title"`
	Body       string  `json:"body"`
	Payload    Payload `json:"payload"`
	Trigger    Trigger `json:"trigger"`
}

// Device registers and cancels timers. Register with an identifier that is
// already live replaces the existing timer (upsert), and Cancel of an unknown
// identifier is a no-op, never an error.
type Device interface {
	Register(ctx context.Context, n Notification) error
	Cancel(ctx context.Context, identifier string) error
	ListLive(ctx context.Context) ([]string, error)
	GetAllLive(ctx context.Context) ([]Notification, error)
}

// Sink delivers a fired notification to the user.
type Sink interface {
	Deliver(ctx context.Context, n Notification) error
}

// FireHandler receives a notification at the moment it fires, before delivery
// concerns; it dispatches on the payload kind.
type FireHandler func(ctx context.Context, n Notification)
